package eventsourcing

import (
	"context"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// SequenceNumber is the position of an event in the total order of an event store.
type SequenceNumber = uint64

// StoredEvents is an alias type for a slice of StoredEvent
type StoredEvents = []StoredEvent

// StoredEvent is a DTO (data transfer object) used by event store engines to persist events and read them back.
//
// It is built on scalars to be completely agnostic of the implementation of events in the client code.
//
// While its properties are exported, it should only be constructed with the supplied factory methods:
//   - BuildStoredEvent
//   - StoredEventFrom
type StoredEvent struct {
	SequenceNumber SequenceNumber
	EventID        string
	EventName      string
	EventVersion   int
	OccurredAt     time.Time
	PayloadJSON    []byte
	MetadataJSON   []byte
}

// BuildStoredEvent is a factory method for StoredEvent.
//
// It populates the StoredEvent with the given scalar input, the SequenceNumber is assigned by the engine.
// Returns an error if eventID is empty or if payloadJSON or metadataJSON are not valid JSON.
func BuildStoredEvent(
	eventID string,
	eventName string,
	eventVersion int,
	occurredAt time.Time,
	payloadJSON []byte,
	metadataJSON []byte,
) (StoredEvent, error) {

	if eventID == "" {
		return StoredEvent{}, ErrEmptyEventID
	}

	if !jsoniter.ConfigFastest.Valid(payloadJSON) {
		return StoredEvent{}, ErrInvalidPayloadJSON
	}

	if !jsoniter.ConfigFastest.Valid(metadataJSON) {
		return StoredEvent{}, ErrInvalidMetadataJSON
	}

	return StoredEvent{
		EventID:      eventID,
		EventName:    eventName,
		EventVersion: eventVersion,
		OccurredAt:   occurredAt,
		PayloadJSON:  payloadJSON,
		MetadataJSON: metadataJSON,
	}, nil
}

// StoredEventFrom serializes an Event into a StoredEvent.
// The metadata is built from the context, see EventMetadataFor.
func StoredEventFrom(ctx context.Context, event Event) (StoredEvent, error) {
	if event.EventID() == "" {
		return StoredEvent{}, ErrEmptyEventID
	}

	payloadJSON, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(event)
	if err != nil {
		return StoredEvent{}, errors.Join(ErrMarshalingEventFailed, err)
	}

	metadataJSON, err := jsoniter.ConfigFastest.Marshal(EventMetadataFor(ctx, event))
	if err != nil {
		return StoredEvent{}, errors.Join(ErrMarshalingEventFailed, err)
	}

	return BuildStoredEvent(
		event.EventID(),
		event.EventName(),
		event.EventVersion(),
		event.OccurredAt(),
		payloadJSON,
		metadataJSON,
	)
}

// DecodeJSON returns an EventDecoder that unmarshals the payload of a StoredEvent into E.
// Stored events with another name fail with ErrDecodingEventFailed.
func DecodeJSON[E Event](eventName string) EventDecoder[E] {
	return func(stored StoredEvent) (E, error) {
		var event E

		if stored.EventName != eventName {
			return event, errors.Join(ErrDecodingEventFailed, errors.New("unexpected event name: "+stored.EventName))
		}

		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(stored.PayloadJSON, &event); err != nil {
			return event, errors.Join(ErrDecodingEventFailed, err)
		}

		return event, nil
	}
}
