package eventsourcing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidCommand is returned when a command fails validation before an event is produced.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrHandlingCommandFailed is returned when a command handler fails for a reason other than validation.
	ErrHandlingCommandFailed = errors.New("handling command failed")

	// ErrStoreFailure is returned when publishing an event or saving a state could not complete.
	ErrStoreFailure = errors.New("store failure")

	// ErrDuplicateEvent is returned when an event with the same id was already published.
	ErrDuplicateEvent = errors.New("event with this id was already published")

	// ErrConcurrentModification is returned when the stored state index does not match the expected index.
	ErrConcurrentModification = errors.New("concurrent modification, state index has changed")

	// ErrProjectionIncomplete is returned when an event was published but not all affected states were persisted.
	ErrProjectionIncomplete = errors.New("event published but projection incomplete")

	// ErrIndexNotAdvancedByOne is returned when a projector changed a state index by anything other than one.
	ErrIndexNotAdvancedByOne = errors.New("projector must advance the state index by exactly one")

	// ErrNoIdentityResolver is returned when a service is constructed without an identity resolver.
	ErrNoIdentityResolver = errors.New("identity resolver must not be nil")

	// ErrNilCollaborator is returned when a service is constructed with a nil handler, store, projector or repository.
	ErrNilCollaborator = errors.New("collaborator must not be nil")

	// ErrEmptyEventID is returned when an event without id is published.
	ErrEmptyEventID = errors.New("event id must not be empty")

	// ErrEmptyStateID is returned when a state without identity is saved.
	ErrEmptyStateID = errors.New("state id must not be empty")

	// ErrInvalidPayloadJSON is returned when the payload of a stored event is not valid JSON.
	ErrInvalidPayloadJSON = errors.New("payload json is not valid")

	// ErrInvalidMetadataJSON is returned when the metadata of a stored event is not valid JSON.
	ErrInvalidMetadataJSON = errors.New("metadata json is not valid")

	// ErrMarshalingEventFailed is returned when an event can not be serialized into a StoredEvent.
	ErrMarshalingEventFailed = errors.New("marshaling event failed")

	// ErrDecodingEventFailed is returned when a StoredEvent can not be decoded during replay.
	ErrDecodingEventFailed = errors.New("decoding stored event failed")
)

// ProjectionError reports a save failure that happened after the event was durably published.
// The event stays recorded; the pending identities can be projected again with Service.Project.
type ProjectionError struct {
	EventID   string
	Persisted []string
	Pending   []string
	Err       error
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf(
		"%s: event %q, pending states [%s]: %v",
		ErrProjectionIncomplete.Error(),
		e.EventID,
		strings.Join(e.Pending, ", "),
		e.Err,
	)
}

// Unwrap makes ProjectionError match both ErrProjectionIncomplete and its cause with errors.Is.
func (e *ProjectionError) Unwrap() []error {
	return []error{ErrProjectionIncomplete, e.Err}
}
