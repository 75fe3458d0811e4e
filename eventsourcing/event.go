package eventsourcing

import (
	"time"
)

// Command is a transient intent to change the system.
// Commands are never persisted, the CommandID is the root of the idempotency chain.
type Command interface {
	CommandID() string
}

// Event is the durable, immutable record of something that happened.
type Event interface {
	EventID() string
	EventName() string
	EventVersion() int
	OccurredAt() time.Time
}

// EventHeader carries the fields every Event has and implements the Event interface.
// Embed it into concrete event types.
type EventHeader struct {
	ID        string    `json:"id"`
	Name      string    `json:"eventName"`
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// BuildEventHeader is a factory method for EventHeader.
func BuildEventHeader(id string, name string, version int, timestamp time.Time) EventHeader {
	return EventHeader{
		ID:        id,
		Name:      name,
		Version:   version,
		Timestamp: timestamp,
	}
}

func (h EventHeader) EventID() string {
	return h.ID
}

func (h EventHeader) EventName() string {
	return h.Name
}

func (h EventHeader) EventVersion() int {
	return h.Version
}

func (h EventHeader) OccurredAt() time.Time {
	return h.Timestamp
}

// DeriveEventID derives the id of an event from the id of the command that produced it.
// The derivation is deterministic, so a retried command yields the same event id.
func DeriveEventID(prefix string, commandID string) string {
	if prefix == "" {
		return commandID
	}

	return prefix + "-" + commandID
}
