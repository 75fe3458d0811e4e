package eventsourcing_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/esaucy/esaucy-go/eventsourcing"
	"github.com/esaucy/esaucy-go/testutil/testdoubles"
)

func Test_NewService_RejectsMissingCollaborators(t *testing.T) {
	f := newFixture()

	_, err := NewService[moveCmd, moved, balance](nil, f.store, projectMove, f.repository, resolveMove)
	assert.ErrorIs(t, err, ErrNilCollaborator)

	_, err = NewService[moveCmd, moved, balance](handleMove, nil, projectMove, f.repository, resolveMove)
	assert.ErrorIs(t, err, ErrNilCollaborator)

	_, err = NewService[moveCmd, moved, balance](handleMove, f.store, nil, f.repository, resolveMove)
	assert.ErrorIs(t, err, ErrNilCollaborator)

	_, err = NewService[moveCmd, moved, balance](handleMove, f.store, projectMove, nil, resolveMove)
	assert.ErrorIs(t, err, ErrNilCollaborator)

	_, err = NewService[moveCmd, moved, balance](handleMove, f.store, projectMove, f.repository, nil)
	assert.ErrorIs(t, err, ErrNoIdentityResolver)

	_, err = NewService[moveCmd, moved, balance](handleMove, f.store, projectMove, f.repository, resolveMove, WithReplayBatchSize(0))
	assert.ErrorIs(t, err, ErrInvalidReplayBatchSize)

	_, err = NewService[moveCmd, moved, balance](handleMove, f.store, projectMove, f.repository, resolveMove,
		WithRetryOptions(WithMaxAttempts(0)))
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)

	_, err = NewService[moveCmd, moved, balance](handleMove, f.store, projectMove, f.repository, resolveMove,
		WithMetrics(testdoubles.NewMetricsCollectorSpy()), WithRetryOptions(WithJitterFactor(2)))
	assert.ErrorIs(t, err, ErrInvalidJitterFactor)
	assert.Equal(t, 0, f.store.Len())
}

func Test_Execute_PublishesAndProjectsAllAffectedStates(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := newFixture()
	service := f.service()

	// act
	result, err := service.Execute(ctx, moveCmd{ID: "c-1", From: "a", To: "b", Amount: 30})

	// assert
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, result.Stage)
	assert.Equal(t, "moved-c-1", result.Event.EventID())
	assert.Equal(t, []balance{{ID: "a", Index: 1, Amount: -30}, {ID: "b", Index: 1, Amount: 30}}, result.States)
	assert.Equal(t, 2, result.RetryAttempts)
	assert.Equal(t, 1, f.store.Len())

	a, err := service.GetState(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, balance{ID: "a", Index: 1, Amount: -30}, a)
}

func Test_Execute_InvalidCommandLeavesNoTrace(t *testing.T) {
	// arrange
	f := newFixture()
	service := f.service()

	// act
	result, err := service.Execute(context.Background(), moveCmd{ID: "c-1", From: "a", To: "b", Amount: -5})

	// assert
	assert.ErrorIs(t, err, ErrInvalidCommand)
	assert.NotErrorIs(t, err, ErrHandlingCommandFailed)
	assert.Equal(t, StageReceived, result.Stage)
	assert.False(t, result.IsPublished())
	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, 0, f.repository.Len())
}

func Test_Execute_WrapsUnexpectedHandlerErrors(t *testing.T) {
	// arrange
	f := newFixture()
	handler := CommandHandlerFunc[moveCmd, moved](func(context.Context, moveCmd) (moved, error) {
		return moved{}, errors.New("clock unavailable")
	})
	service, err := NewService[moveCmd, moved, balance](handler, f.store, projectMove, f.repository, resolveMove)
	require.NoError(t, err)

	// act
	_, err = service.Execute(context.Background(), moveCmd{ID: "c-1", From: "a", To: "b", Amount: 5})

	// assert
	assert.ErrorIs(t, err, ErrHandlingCommandFailed)
	assert.Equal(t, 0, f.store.Len())
}

func Test_Execute_RetriedCommandIsRejectedAsDuplicate(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := newFixture()
	service := f.service()
	command := moveCmd{ID: "c-1", From: "a", To: "b", Amount: 30}
	_, err := service.Execute(ctx, command)
	require.NoError(t, err)

	// act
	result, err := service.Execute(ctx, command)

	// assert
	assert.ErrorIs(t, err, ErrDuplicateEvent)
	assert.Equal(t, StageHandled, result.Stage)
	assert.Equal(t, 1, f.store.Len())

	b, err := service.GetState(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, balance{ID: "b", Index: 1, Amount: 30}, b)
}

func Test_Execute_StoreFailureProjectsNothing(t *testing.T) {
	// arrange
	f := newFixture()
	service := f.serviceWith(failingStore{err: errors.New("connection reset")}, f.repository)

	// act
	result, err := service.Execute(context.Background(), moveCmd{ID: "c-1", From: "a", To: "b", Amount: 30})

	// assert
	assert.ErrorIs(t, err, ErrStoreFailure)
	assert.Equal(t, StageHandled, result.Stage)
	assert.Equal(t, 0, f.repository.Len())
}

func Test_Execute_ReportsPartialProjection(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := newFixture()
	repository := newFlakyRepository(f.repository)
	repository.failSavesOf("b", errDiskFull)
	service := f.serviceWith(f.store, repository)

	// act
	result, err := service.Execute(ctx, moveCmd{ID: "c-1", From: "a", To: "b", Amount: 30})

	// assert
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProjectionIncomplete)
	assert.ErrorIs(t, err, ErrStoreFailure)
	assert.ErrorIs(t, err, errDiskFull)
	assert.True(t, result.IsPublished())

	var projectionErr *ProjectionError
	require.ErrorAs(t, err, &projectionErr)
	assert.Equal(t, "moved-c-1", projectionErr.EventID)
	assert.Equal(t, []string{"a"}, projectionErr.Persisted)
	assert.Equal(t, []string{"b"}, projectionErr.Pending)
	assert.Equal(t, 1, f.store.Len())
}

func Test_Project_CompletesPartialProjection(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := newFixture()
	repository := newFlakyRepository(f.repository)
	repository.failSavesOf("b", errDiskFull)
	service := f.serviceWith(f.store, repository)
	failed, err := service.Execute(ctx, moveCmd{ID: "c-1", From: "a", To: "b", Amount: 30})
	var projectionErr *ProjectionError
	require.ErrorAs(t, err, &projectionErr)
	repository.healSavesOf("b")

	// act
	result, err := service.Project(ctx, failed.Event, projectionErr.Pending...)

	// assert
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, result.Stage)
	assert.Equal(t, []balance{{ID: "b", Index: 1, Amount: 30}}, result.States)

	a, err := service.GetState(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, balance{ID: "a", Index: 1, Amount: -30}, a)

	b, err := service.GetState(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, balance{ID: "b", Index: 1, Amount: 30}, b)
	assert.Zero(t, a.Amount+b.Amount)
}

func Test_Project_IgnoresIdentitiesTheEventDoesNotAffect(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := newFixture()
	service := f.service()
	event := newMoved(moveCmd{ID: "c-1", From: "a", To: "b", Amount: 30})

	// act
	result, err := service.Project(ctx, event, "b", "z")

	// assert
	require.NoError(t, err)
	assert.Equal(t, []balance{{ID: "b", Index: 1, Amount: 30}}, result.States)
	assert.Equal(t, 1, f.repository.Len())
}

func Test_Project_WithoutIdentitiesProjectsAllResolved(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := newFixture()
	service := f.service()
	event := newMoved(moveCmd{ID: "c-1", From: "a", To: "b", Amount: 30})

	// act
	result, err := service.Project(ctx, event)

	// assert
	require.NoError(t, err)
	assert.Equal(t, []balance{{ID: "a", Index: 1, Amount: -30}, {ID: "b", Index: 1, Amount: 30}}, result.States)
}

func Test_Execute_RetriesConcurrentModification(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := newFixture()
	repository := newFlakyRepository(f.repository)
	repository.conflictOnNextSaves("a", 2)
	service := f.serviceWith(f.store, repository, WithRetryOptions(WithBaseDelay(time.Millisecond)))

	// act
	result, err := service.Execute(ctx, moveCmd{ID: "c-1", From: "a", To: "b", Amount: 30})

	// assert
	require.NoError(t, err)
	assert.Equal(t, 4, result.RetryAttempts)
	assert.Len(t, result.States, 2)
}

func Test_Execute_GivesUpAfterMaxAttempts(t *testing.T) {
	// arrange
	f := newFixture()
	repository := newFlakyRepository(f.repository)
	repository.conflictOnNextSaves("a", 100)
	service := f.serviceWith(f.store, repository, WithRetryOptions(WithMaxAttempts(3), WithBaseDelay(time.Millisecond)))

	// act
	result, err := service.Execute(context.Background(), moveCmd{ID: "c-1", From: "a", To: "b", Amount: 30})

	// assert
	assert.ErrorIs(t, err, ErrProjectionIncomplete)
	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.Equal(t, 3, result.RetryAttempts)

	var projectionErr *ProjectionError
	require.ErrorAs(t, err, &projectionErr)
	assert.Empty(t, projectionErr.Persisted)
	assert.Equal(t, []string{"a", "b"}, projectionErr.Pending)
}

func Test_Execute_RejectsProjectorSkippingIndexes(t *testing.T) {
	// arrange
	f := newFixture()
	skipping := ProjectorFunc[moved, balance](func(b balance, _ moved) balance {
		b.Index += 2
		return b
	})
	service, err := NewService[moveCmd, moved, balance](handleMove, f.store, skipping, f.repository, resolveMove)
	require.NoError(t, err)

	// act
	_, err = service.Execute(context.Background(), moveCmd{ID: "c-1", From: "a", To: "b", Amount: 30})

	// assert
	assert.ErrorIs(t, err, ErrIndexNotAdvancedByOne)
	assert.ErrorIs(t, err, ErrProjectionIncomplete)
	assert.Equal(t, 0, f.repository.Len())
}

func Test_Execute_UnaffectedStatesAreNotPersisted(t *testing.T) {
	// arrange
	f := newFixture()
	resolveThird := func(e moved) []string { return []string{e.From, "c", e.To} }
	service, err := NewService[moveCmd, moved, balance](handleMove, f.store, projectMove, f.repository, resolveThird)
	require.NoError(t, err)

	// act
	result, err := service.Execute(context.Background(), moveCmd{ID: "c-1", From: "a", To: "b", Amount: 30})

	// assert
	require.NoError(t, err)
	assert.Len(t, result.States, 2)
	assert.Equal(t, 2, f.repository.Len())
}

func Test_Execute_ProjectsRepeatedIdentityOnce(t *testing.T) {
	// arrange
	f := newFixture()
	service := f.service()

	// act
	result, err := service.Execute(context.Background(), moveCmd{ID: "c-1", From: "a", To: "a", Amount: 30})

	// assert
	require.NoError(t, err)
	assert.Equal(t, []balance{{ID: "a", Index: 1, Amount: -30}}, result.States)
}

func Test_Execute_FailsOnCanceledContextBeforeHandling(t *testing.T) {
	// arrange
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := newFixture()

	// act
	result, err := f.service().Execute(ctx, moveCmd{ID: "c-1", From: "a", To: "b", Amount: 30})

	// assert
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StageReceived, result.Stage)
	assert.Equal(t, 0, f.store.Len())
}

func Test_Execute_CompletesProjectionWhenCanceledAfterPublish(t *testing.T) {
	// arrange
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture()
	service := f.serviceWith(cancelingStore{EventStore: f.store, cancel: cancel}, f.repository)

	// act
	result, err := service.Execute(ctx, moveCmd{ID: "c-1", From: "a", To: "b", Amount: 30})

	// assert
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, result.Stage)
	assert.Equal(t, 2, f.repository.Len())
}

func Test_Execute_ConcurrentCommandsLoseNoUpdates(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := newFixture()
	service := f.service(WithRetryOptions(WithMaxAttempts(200), WithBaseDelay(100*time.Microsecond), WithMaxDelay(5*time.Millisecond)))
	const commands = 40

	// act
	var wg sync.WaitGroup
	errs := make(chan error, commands)

	for i := 0; i < commands; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			from, to := "a", "b"
			if i%2 == 1 {
				from, to = "b", "a"
			}

			_, err := service.Execute(ctx, moveCmd{ID: fmt.Sprintf("c-%d", i), From: from, To: to, Amount: int64(i + 1)})
			errs <- err
		}(i)
	}

	wg.Wait()
	close(errs)

	// assert
	for err := range errs {
		require.NoError(t, err)
	}

	a, err := service.GetState(ctx, "a")
	require.NoError(t, err)
	b, err := service.GetState(ctx, "b")
	require.NoError(t, err)

	assert.Equal(t, uint64(commands), a.Index)
	assert.Equal(t, uint64(commands), b.Index)
	assert.Equal(t, int64(0), a.Amount+b.Amount)
	assert.Equal(t, commands, f.store.Len())
}

func Test_Execute_RecordsObservability(t *testing.T) {
	// arrange
	f := newFixture()
	metrics := testdoubles.NewMetricsCollectorSpy()
	tracing := testdoubles.NewTracingCollectorSpy()
	logs := testdoubles.NewLogHandlerSpy(false)
	logger := slog.New(logs)
	service := f.service(WithMetrics(metrics), WithTracing(tracing), WithLogger(logger), WithContextualLogger(logger))

	// act
	_, err := service.Execute(context.Background(), moveCmd{ID: "c-1", From: "a", To: "b", Amount: 30})
	require.NoError(t, err)
	_, err = service.Execute(context.Background(), moveCmd{ID: "c-2", From: "a", To: "b", Amount: 0})
	require.ErrorIs(t, err, ErrInvalidCommand)

	// assert
	assert.True(t, metrics.HasDurationRecordForMetric(MetricExecuteDuration).WithOperation("execute").WithStatus("success").Assert())
	assert.True(t, metrics.HasCounterRecordForMetric(MetricCommands).WithStatus("success").WithLabel("stage", "completed").Assert())
	assert.True(t, metrics.HasCounterRecordForMetric(MetricCommands).WithStatus("rejected").WithLabel("stage", "received").Assert())

	span, found := tracing.FindSpan("eventsourcing.execute")
	require.True(t, found)
	assert.True(t, span.Finished)
	assert.Equal(t, "success", span.Status)
	assert.Equal(t, "c-1", span.StartAttributes["command_id"])
	assert.Equal(t, "moved-c-1", span.EndAttributes["event_id"])
	assert.Equal(t, "2", span.EndAttributes["state_count"])

	completed, found := logs.FindLog(slog.LevelInfo, "command completed")
	require.True(t, found)
	assert.Equal(t, "c-1", completed["command_id"].String())
	assert.True(t, logs.HasLog(slog.LevelWarn, "command rejected"))
	assert.True(t, logs.HasLog(slog.LevelDebug, "state projected"))
}

func Test_Execute_RecordsProjectionConflicts(t *testing.T) {
	// arrange
	f := newFixture()
	metrics := testdoubles.NewMetricsCollectorSpy()
	repository := newFlakyRepository(f.repository)
	repository.conflictOnNextSaves("b", 1)
	service := f.serviceWith(f.store, repository, WithMetrics(metrics), WithRetryOptions(WithBaseDelay(time.Millisecond)))

	// act
	_, err := service.Execute(context.Background(), moveCmd{ID: "c-1", From: "a", To: "b", Amount: 30})

	// assert
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.CountCounterRecordsForMetric(MetricProjectionConflicts))
	assert.True(t, metrics.HasCounterRecordForMetric(MetricRetryAttempts).WithOperation("project").Assert())
}
