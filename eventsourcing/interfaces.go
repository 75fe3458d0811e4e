package eventsourcing

import "context"

// CommandHandler turns a command into exactly one event.
// It must validate the command and return an error matching ErrInvalidCommand instead of building an event.
// It must not touch the event store or the state repository.
type CommandHandler[C Command, E Event] interface {
	Handle(ctx context.Context, command C) (E, error)
}

// CommandHandlerFunc adapts a plain function to the CommandHandler interface.
type CommandHandlerFunc[C Command, E Event] func(ctx context.Context, command C) (E, error)

// Handle calls f(ctx, command).
func (f CommandHandlerFunc[C, E]) Handle(ctx context.Context, command C) (E, error) {
	return f(ctx, command)
}

// EventStore is the append-only durability boundary.
// Publish must only return nil once the event is durable. A second event with the same id must fail
// with ErrDuplicateEvent, all other failures should match ErrStoreFailure.
type EventStore interface {
	Publish(ctx context.Context, event Event) error
}

// EventReader is implemented by event stores that support replay.
// ReadFrom returns up to limit events with a sequence number greater than after, in sequence order.
type EventReader interface {
	ReadFrom(ctx context.Context, after SequenceNumber, limit int) (StoredEvents, error)
}

// Projector folds one event into one state.
// It must be pure, return the state unchanged when the event does not concern it,
// and advance the index by exactly one when it mutates the state.
type Projector[E Event, S State] interface {
	Project(state S, event E) S
}

// ProjectorFunc adapts a plain function to the Projector interface.
type ProjectorFunc[E Event, S State] func(state S, event E) S

// Project calls f(state, event).
func (f ProjectorFunc[E, S]) Project(state S, event E) S {
	return f(state, event)
}

// StateRepository keeps the latest projected state per identity.
//
// Get returns a zero-value state with the given identity and index 0 when nothing is stored.
// Save must fail with ErrConcurrentModification when the stored index differs from expectedIndex,
// where a missing state counts as index 0.
type StateRepository[S State] interface {
	Get(ctx context.Context, id string) (S, error)
	Save(ctx context.Context, state S, expectedIndex uint64) error
}

// IdentityResolver maps an event to the identities of the states it affects.
type IdentityResolver[E Event] func(event E) []string

// EventDecoder rebuilds a typed event from its stored form, used for replay.
type EventDecoder[E Event] func(stored StoredEvent) (E, error)
