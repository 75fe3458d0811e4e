package eventsourcing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/esaucy/esaucy-go/eventsourcing"
	"github.com/esaucy/esaucy-go/testutil/testdoubles"
)

func Test_RetryWithExponentialBackoff_Success_NoRetries(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		return nil
	}

	meta, err := RetryWithExponentialBackoff(ctx, fn)

	assert.NoError(t, err)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, 1, meta.Attempts)
	assert.Equal(t, time.Duration(0), meta.TotalDelay)
	assert.Equal(t, "none", meta.LastErrorType)
	assert.False(t, meta.RetriesExhausted)
}

func Test_RetryWithExponentialBackoff_RetryOnConcurrentModification(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		if callCount < 3 {
			return ErrConcurrentModification
		}
		return nil
	}

	meta, err := RetryWithExponentialBackoff(ctx, fn, WithBaseDelay(time.Millisecond))

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
	assert.Equal(t, 3, meta.Attempts)
	assert.Greater(t, meta.TotalDelay, time.Duration(0))
	assert.Equal(t, "none", meta.LastErrorType)
}

func Test_RetryWithExponentialBackoff_FailsFastOnPermanentError(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		return errors.Join(ErrStoreFailure, errors.New("connection refused"))
	}

	meta, err := RetryWithExponentialBackoff(ctx, fn)

	assert.ErrorIs(t, err, ErrStoreFailure)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, "store_failure", meta.LastErrorType)
	assert.False(t, meta.RetriesExhausted)
}

func Test_RetryWithExponentialBackoff_ExhaustsAttempts(t *testing.T) {
	ctx := context.Background()
	callCount := 0
	metrics := testdoubles.NewMetricsCollectorSpy()

	fn := func(_ context.Context) error {
		callCount++
		return ErrConcurrentModification
	}

	meta, err := RetryWithExponentialBackoff(ctx, fn,
		WithMaxAttempts(3),
		WithBaseDelay(time.Millisecond),
		WithJitterFactor(0),
		WithRetryMetrics(metrics, "project"),
	)

	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.Equal(t, 3, callCount)
	assert.Equal(t, 3, meta.Attempts)
	assert.True(t, meta.RetriesExhausted)
	assert.Equal(t, "concurrent_modification", meta.LastErrorType)
	assert.Equal(t, 2, metrics.CountDurationRecordsForMetric(MetricRetryDelay))
	assert.Equal(t, 2, metrics.CountCounterRecordsForMetric(MetricRetryAttempts))
	assert.True(t, metrics.HasCounterRecordForMetric(MetricMaxRetriesReached).
		WithOperation("project").
		WithLabel("final_error_type", "concurrent_modification").
		Assert())
}

func Test_RetryWithExponentialBackoff_CapsDelay(t *testing.T) {
	ctx := context.Background()

	fn := func(_ context.Context) error {
		return ErrConcurrentModification
	}

	meta, err := RetryWithExponentialBackoff(ctx, fn,
		WithMaxAttempts(40),
		WithBaseDelay(time.Millisecond),
		WithMaxDelay(time.Millisecond),
		WithJitterFactor(0),
	)

	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.Equal(t, 39*time.Millisecond, meta.TotalDelay)
}

func Test_RetryWithExponentialBackoff_StopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		cancel()
		return ErrConcurrentModification
	}

	meta, err := RetryWithExponentialBackoff(ctx, fn, WithBaseDelay(time.Second))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, "context_canceled", meta.LastErrorType)
}

func Test_RetryWithExponentialBackoff_InvalidOptions(t *testing.T) {
	ctx := context.Background()
	fn := func(_ context.Context) error { return nil }

	_, err := RetryWithExponentialBackoff(ctx, fn, WithMaxAttempts(0))
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)

	_, err = RetryWithExponentialBackoff(ctx, fn, WithBaseDelay(-1*time.Second))
	assert.ErrorIs(t, err, ErrNegativeBaseDelay)

	_, err = RetryWithExponentialBackoff(ctx, fn, WithMaxDelay(0))
	assert.ErrorIs(t, err, ErrInvalidMaxDelay)

	_, err = RetryWithExponentialBackoff(ctx, fn, WithJitterFactor(1.5))
	assert.ErrorIs(t, err, ErrInvalidJitterFactor)

	_, err = RetryWithExponentialBackoff(ctx, fn, WithRetryMetrics(nil, "project"))
	assert.ErrorIs(t, err, ErrNilMetricsCollector)

	_, err = RetryWithExponentialBackoff(ctx, fn, WithRetryMetrics(testdoubles.NewMetricsCollectorSpy(), ""))
	require.ErrorIs(t, err, ErrEmptyOperation)
}
