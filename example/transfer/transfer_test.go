package transfer_test

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esaucy/esaucy-go/eventsourcing"
	"github.com/esaucy/esaucy-go/eventsourcing/memoryengine"
	"github.com/esaucy/esaucy-go/example/transfer"
)

var fakeClock = time.Unix(1700000000, 0).UTC()

type environment struct {
	store      *memoryengine.EventStore
	repository *memoryengine.StateRepository[transfer.AccountBalance]
	service    *transfer.Service
}

func setupEnvironment(t *testing.T, options ...eventsourcing.Option) environment {
	t.Helper()

	store, err := memoryengine.NewEventStore()
	require.NoError(t, err)

	repository, err := memoryengine.NewStateRepository(transfer.NewAccountBalance)
	require.NoError(t, err)

	handler := transfer.NewHandler(transfer.WithClock(func() time.Time { return fakeClock }))

	service, err := transfer.NewService(handler, store, repository, options...)
	require.NoError(t, err)

	return environment{store: store, repository: repository, service: service}
}

func (e environment) balance(t *testing.T, accountID string) transfer.AccountBalance {
	t.Helper()

	state, err := e.service.GetState(context.Background(), accountID)
	require.NoError(t, err)

	return state
}

func Test_Transfer_SingleTransferMovesAmount(t *testing.T) {
	// arrange
	env := setupEnvironment(t)
	command := transfer.BuildCreateTransaction(uuid.New(), "A", "B", 50)

	// act
	result, err := env.service.Execute(context.Background(), command)

	// assert
	require.NoError(t, err)
	assert.Equal(t, eventsourcing.StageCompleted, result.Stage)
	assert.Equal(t, int64(50), result.Event.Amount)
	assert.Equal(t, "transaction-"+command.TransactionID, result.Event.EventID())
	assert.Equal(t, fakeClock, result.Event.OccurredAt())
	assert.Equal(t, transfer.AccountBalance{AccountID: "A", Index: 1, Balance: -50}, env.balance(t, "A"))
	assert.Equal(t, transfer.AccountBalance{AccountID: "B", Index: 1, Balance: 50}, env.balance(t, "B"))
}

func Test_Transfer_SequentialTransfersAccumulate(t *testing.T) {
	// arrange
	env := setupEnvironment(t)
	ctx := context.Background()

	// act
	_, firstErr := env.service.Execute(ctx, transfer.BuildCreateTransaction(uuid.New(), "A", "B", 30))
	_, secondErr := env.service.Execute(ctx, transfer.BuildCreateTransaction(uuid.New(), "A", "B", 20))

	// assert
	require.NoError(t, firstErr)
	require.NoError(t, secondErr)
	assert.Equal(t, transfer.AccountBalance{AccountID: "A", Index: 2, Balance: -50}, env.balance(t, "A"))
	assert.Equal(t, transfer.AccountBalance{AccountID: "B", Index: 2, Balance: 50}, env.balance(t, "B"))
}

func Test_Transfer_NegativeAmountIsRejected(t *testing.T) {
	// arrange
	env := setupEnvironment(t)

	// act
	result, err := env.service.Execute(context.Background(), transfer.BuildCreateTransaction(uuid.New(), "A", "B", -5))

	// assert
	assert.ErrorIs(t, err, eventsourcing.ErrInvalidCommand)
	assert.False(t, result.IsPublished())
	assert.Zero(t, env.store.Len())
	assert.Zero(t, env.repository.Len())
}

func Test_Transfer_ZeroAmountIsAccepted(t *testing.T) {
	env := setupEnvironment(t)

	_, err := env.service.Execute(context.Background(), transfer.BuildCreateTransaction(uuid.New(), "A", "B", 0))

	require.NoError(t, err)
	assert.Equal(t, transfer.AccountBalance{AccountID: "A", Index: 1}, env.balance(t, "A"))
	assert.Equal(t, transfer.AccountBalance{AccountID: "B", Index: 1}, env.balance(t, "B"))
}

func Test_Transfer_RetriedTransactionIsDuplicate(t *testing.T) {
	// arrange
	env := setupEnvironment(t)
	command := transfer.BuildCreateTransaction(uuid.New(), "A", "B", 10)

	// act
	_, firstErr := env.service.Execute(context.Background(), command)
	_, secondErr := env.service.Execute(context.Background(), command)

	// assert
	require.NoError(t, firstErr)
	assert.ErrorIs(t, secondErr, eventsourcing.ErrDuplicateEvent)
	assert.Equal(t, 1, env.store.Len())
	assert.Equal(t, int64(-10), env.balance(t, "A").Balance)
}

func Test_Transfer_BalancesAreConserved(t *testing.T) {
	// arrange
	env := setupEnvironment(t)
	ctx := context.Background()
	accounts := []string{"A", "B", "C", "D"}
	random := rand.New(rand.NewSource(7))

	// act
	for i := 0; i < 200; i++ {
		from := accounts[random.Intn(len(accounts))]
		to := accounts[random.Intn(len(accounts))]
		if from == to {
			continue
		}

		_, err := env.service.Execute(ctx, transfer.BuildCreateTransaction(uuid.New(), from, to, random.Int63n(10_000)))
		require.NoError(t, err)
	}

	// assert
	var sum int64
	var indexes uint64
	for _, account := range accounts {
		state := env.balance(t, account)
		sum += state.Balance
		indexes += state.Index
	}

	assert.Zero(t, sum)
	assert.Equal(t, uint64(2*env.store.Len()), indexes)
}

func Test_Transfer_ConcurrentTransfersOnSameAccountsAreAllApplied(t *testing.T) {
	// arrange
	env := setupEnvironment(t,
		eventsourcing.WithRetryOptions(
			eventsourcing.WithMaxAttempts(500),
			eventsourcing.WithBaseDelay(50*time.Microsecond),
			eventsourcing.WithMaxDelay(2*time.Millisecond),
		),
	)
	ctx := context.Background()
	const transfers = 50

	// act
	var wg sync.WaitGroup
	errs := make(chan error, transfers)

	for i := 0; i < transfers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := "A", "B"
			if i%2 == 0 {
				from, to = to, from
			}
			_, err := env.service.Execute(ctx, transfer.BuildCreateTransaction(uuid.New(), from, to, int64(i+1)))
			errs <- err
		}(i)
	}

	wg.Wait()
	close(errs)

	// assert
	for err := range errs {
		require.NoError(t, err)
	}

	a := env.balance(t, "A")
	b := env.balance(t, "B")

	assert.Equal(t, uint64(transfers), a.Index)
	assert.Equal(t, uint64(transfers), b.Index)
	assert.Zero(t, a.Balance+b.Balance)
	assert.Equal(t, int64(25), b.Balance) // A->B moves 2+4+...+50, B->A moves 1+3+...+49
}

func Test_Transfer_ReplayRebuildsBalances(t *testing.T) {
	// arrange
	env := setupEnvironment(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := env.service.Execute(ctx, transfer.BuildCreateTransaction(uuid.New(), "A", fmt.Sprintf("acc-%d", i%3), int64(i*10)))
		require.NoError(t, err)
	}

	fresh := setupEnvironment(t)

	// act
	replayed, err := fresh.service.Replay(ctx, env.store, transfer.DecodeTransactionCreated)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 10, replayed)

	for _, account := range []string{"A", "acc-0", "acc-1", "acc-2"} {
		assert.Equal(t, env.balance(t, account), fresh.balance(t, account), account)
	}
}

func Test_NewService_RejectsNilHandler(t *testing.T) {
	store, err := memoryengine.NewEventStore()
	require.NoError(t, err)
	repository, err := memoryengine.NewStateRepository(transfer.NewAccountBalance)
	require.NoError(t, err)

	_, err = transfer.NewService(nil, store, repository)

	assert.ErrorIs(t, err, eventsourcing.ErrNilCollaborator)
}
