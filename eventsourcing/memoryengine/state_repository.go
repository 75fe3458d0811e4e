package memoryengine

import (
	"context"
	"fmt"
	"sync"

	"github.com/esaucy/esaucy-go/eventsourcing"
)

// StateRepository keeps the latest state per identity in a map.
// Missing states are created by the zero-state factory passed to NewStateRepository.
type StateRepository[S eventsourcing.State] struct {
	mu      sync.RWMutex
	states  map[string]S
	initial func(id string) S
	options engineOptions
}

// NewStateRepository creates an empty StateRepository.
// initial must return the state with the given identity and index 0.
func NewStateRepository[S eventsourcing.State](initial func(id string) S, options ...Option) (*StateRepository[S], error) {
	if initial == nil {
		return nil, ErrNilInitialStateFactory
	}

	r := &StateRepository[S]{
		states:  make(map[string]S),
		initial: initial,
	}

	if err := applyOptions(&r.options, options); err != nil {
		return nil, err
	}

	return r, nil
}

// Get returns the stored state, or the initial state when nothing was saved for id.
func (r *StateRepository[S]) Get(ctx context.Context, id string) (S, error) {
	if err := ctx.Err(); err != nil {
		var empty S
		return empty, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if state, ok := r.states[id]; ok {
		return state, nil
	}

	return r.initial(id), nil
}

// Save stores state if the stored index still equals expectedIndex.
func (r *StateRepository[S]) Save(ctx context.Context, state S, expectedIndex uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := state.StateID()
	if id == "" {
		return eventsourcing.ErrEmptyStateID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var currentIndex uint64
	if current, ok := r.states[id]; ok {
		currentIndex = current.StateIndex()
	}

	if currentIndex != expectedIndex {
		r.options.logInfo(ctx, logMsgConcurrencyConflict,
			logAttrStateID, id,
			logAttrExpectedIndex, expectedIndex,
			logAttrStoredIndex, currentIndex)

		return fmt.Errorf("%w: state %q expected index %d, stored index %d",
			eventsourcing.ErrConcurrentModification, id, expectedIndex, currentIndex)
	}

	r.states[id] = state

	r.options.logDebug(ctx, logMsgStateSaved, logAttrStateID, id, logAttrStateIndex, state.StateIndex())

	return nil
}

// Len returns the number of stored states.
func (r *StateRepository[S]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.states)
}
