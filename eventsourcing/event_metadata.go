package eventsourcing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// ErrMappingToEventMetadataFailed is returned when metadata conversion fails.
var ErrMappingToEventMetadataFailed = errors.New("mapping to event metadata failed")

// MessageID represents a unique message identifier.
type MessageID = string

// CausationID represents the ID of the command that caused this event.
type CausationID = string

// CorrelationID represents the ID correlating related events.
type CorrelationID = string

// EventMetadata contains event tracking information.
type EventMetadata struct {
	MessageID     MessageID
	CausationID   CausationID
	CorrelationID CorrelationID
}

type metadataContextKey string

const (
	causationIDKey   metadataContextKey = "eventsourcing.causation_id"
	correlationIDKey metadataContextKey = "eventsourcing.correlation_id"
)

// WithCorrelationID returns a context carrying the correlation id that is stored with every event published under it.
func WithCorrelationID(ctx context.Context, correlationID CorrelationID) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// WithCausationID returns a context carrying the causation id, the Service sets it to the command id before publishing.
func WithCausationID(ctx context.Context, causationID CausationID) context.Context {
	return context.WithValue(ctx, causationIDKey, causationID)
}

// EventMetadataFor builds the metadata for an event published under ctx.
//
// The MessageID is a name-based uuid of the event id, so it is stable across retries.
// A missing correlation id is replaced by a random uuid.
func EventMetadataFor(ctx context.Context, event Event) EventMetadata {
	causationID, _ := ctx.Value(causationIDKey).(CausationID)

	correlationID, ok := ctx.Value(correlationIDKey).(CorrelationID)
	if !ok || correlationID == "" {
		correlationID = uuid.New().String()
	}

	return EventMetadata{
		MessageID:     uuid.NewSHA1(uuid.NameSpaceOID, []byte(event.EventID())).String(),
		CausationID:   causationID,
		CorrelationID: correlationID,
	}
}

// EventMetadataFrom extracts EventMetadata from a StoredEvent.
func EventMetadataFrom(storedEvent StoredEvent) (EventMetadata, error) {
	metadata := new(EventMetadata)
	err := jsoniter.ConfigFastest.Unmarshal(storedEvent.MetadataJSON, metadata)
	if err != nil {
		return EventMetadata{}, errors.Join(ErrMappingToEventMetadataFailed, err)
	}

	return *metadata, nil
}
