package memoryengine

import (
	"context"
	"fmt"
	"sync"

	"github.com/esaucy/esaucy-go/eventsourcing"
)

// EventStore is an append-only in-memory event log.
type EventStore struct {
	mu      sync.RWMutex
	events  eventsourcing.StoredEvents
	byID    map[string]struct{}
	options engineOptions
}

// NewEventStore creates an empty EventStore.
func NewEventStore(options ...Option) (*EventStore, error) {
	es := &EventStore{
		byID: make(map[string]struct{}),
	}

	if err := applyOptions(&es.options, options); err != nil {
		return nil, err
	}

	return es, nil
}

// Publish appends the event and assigns the next sequence number.
// An event whose id is already in the log fails with eventsourcing.ErrDuplicateEvent and the log is unchanged.
func (es *EventStore) Publish(ctx context.Context, event eventsourcing.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored, err := eventsourcing.StoredEventFrom(ctx, event)
	if err != nil {
		return err
	}

	es.mu.Lock()
	defer es.mu.Unlock()

	if _, exists := es.byID[stored.EventID]; exists {
		es.options.logInfo(ctx, logMsgDuplicateEvent, logAttrEventID, stored.EventID)
		return fmt.Errorf("%w: %s", eventsourcing.ErrDuplicateEvent, stored.EventID)
	}

	stored.SequenceNumber = eventsourcing.SequenceNumber(len(es.events) + 1)
	es.events = append(es.events, stored)
	es.byID[stored.EventID] = struct{}{}

	es.options.logDebug(ctx, logMsgEventPublished,
		logAttrEventID, stored.EventID,
		logAttrEventName, stored.EventName,
		logAttrSequenceNumber, stored.SequenceNumber)

	return nil
}

// ReadFrom returns up to limit events with a sequence number greater than after.
func (es *EventStore) ReadFrom(ctx context.Context, after eventsourcing.SequenceNumber, limit int) (eventsourcing.StoredEvents, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	es.mu.RLock()
	defer es.mu.RUnlock()

	// sequence numbers are dense and start at 1, so after is also the slice offset
	if after >= eventsourcing.SequenceNumber(len(es.events)) {
		return eventsourcing.StoredEvents{}, nil
	}

	end := len(es.events)
	if limit > 0 && int(after)+limit < end {
		end = int(after) + limit
	}

	batch := make(eventsourcing.StoredEvents, end-int(after))
	copy(batch, es.events[after:end])

	return batch, nil
}

// Len returns the number of published events.
func (es *EventStore) Len() int {
	es.mu.RLock()
	defer es.mu.RUnlock()

	return len(es.events)
}
