package eventsourcing_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/esaucy/esaucy-go/eventsourcing"
	"github.com/esaucy/esaucy-go/eventsourcing/memoryengine"
)

const eventNameMoved = "Moved"

var fixedTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

type moveCmd struct {
	ID     string
	From   string
	To     string
	Amount int64
}

func (c moveCmd) CommandID() string { return c.ID }

type moved struct {
	EventHeader
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

func newMoved(c moveCmd) moved {
	return moved{
		EventHeader: BuildEventHeader(DeriveEventID("moved", c.ID), eventNameMoved, 1, fixedTime),
		From:        c.From,
		To:          c.To,
		Amount:      c.Amount,
	}
}

type balance struct {
	ID     string
	Index  uint64
	Amount int64
}

func (b balance) StateID() string    { return b.ID }
func (b balance) StateIndex() uint64 { return b.Index }

func newBalance(id string) balance { return balance{ID: id} }

var handleMove = CommandHandlerFunc[moveCmd, moved](func(_ context.Context, c moveCmd) (moved, error) {
	if c.Amount <= 0 {
		return moved{}, fmt.Errorf("%w: amount must be positive", ErrInvalidCommand)
	}

	return newMoved(c), nil
})

var projectMove = ProjectorFunc[moved, balance](func(b balance, e moved) balance {
	switch b.ID {
	case e.From:
		b.Amount -= e.Amount
	case e.To:
		b.Amount += e.Amount
	default:
		return b
	}

	b.Index++

	return b
})

func resolveMove(e moved) []string {
	return []string{e.From, e.To}
}

// fixture wires a Service over the in-memory engines.
type fixture struct {
	store      *memoryengine.EventStore
	repository *memoryengine.StateRepository[balance]
}

func newFixture() fixture {
	store, err := memoryengine.NewEventStore()
	if err != nil {
		panic(err)
	}

	repository, err := memoryengine.NewStateRepository(newBalance)
	if err != nil {
		panic(err)
	}

	return fixture{store: store, repository: repository}
}

func (f fixture) service(options ...Option) *Service[moveCmd, moved, balance] {
	return f.serviceWith(f.store, f.repository, options...)
}

func (f fixture) serviceWith(
	store EventStore,
	repository StateRepository[balance],
	options ...Option,
) *Service[moveCmd, moved, balance] {

	service, err := NewService[moveCmd, moved, balance](handleMove, store, projectMove, repository, resolveMove, options...)
	if err != nil {
		panic(err)
	}

	return service
}

// failingStore fails every Publish with err.
type failingStore struct {
	err error
}

func (s failingStore) Publish(_ context.Context, _ Event) error {
	return s.err
}

// cancelingStore cancels the caller's context right after the event is durable.
type cancelingStore struct {
	EventStore
	cancel context.CancelFunc
}

func (s cancelingStore) Publish(ctx context.Context, event Event) error {
	err := s.EventStore.Publish(ctx, event)
	s.cancel()

	return err
}

// flakyRepository injects Save failures for selected identities.
type flakyRepository struct {
	StateRepository[balance]
	mu        sync.Mutex
	failSaves map[string]error
	conflicts map[string]int
}

func newFlakyRepository(inner StateRepository[balance]) *flakyRepository {
	return &flakyRepository{
		StateRepository: inner,
		failSaves:       map[string]error{},
		conflicts:       map[string]int{},
	}
}

func (r *flakyRepository) failSavesOf(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failSaves[id] = err
}

func (r *flakyRepository) healSavesOf(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.failSaves, id)
}

func (r *flakyRepository) conflictOnNextSaves(id string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conflicts[id] = n
}

func (r *flakyRepository) Save(ctx context.Context, state balance, expectedIndex uint64) error {
	r.mu.Lock()
	if err, ok := r.failSaves[state.ID]; ok {
		r.mu.Unlock()
		return err
	}

	if r.conflicts[state.ID] > 0 {
		r.conflicts[state.ID]--
		r.mu.Unlock()
		return ErrConcurrentModification
	}
	r.mu.Unlock()

	return r.StateRepository.Save(ctx, state, expectedIndex)
}

var errDiskFull = errors.New("disk full")
