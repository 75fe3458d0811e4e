package redisengine

import (
	"context"
	"errors"
	"time"

	"github.com/esaucy/esaucy-go/eventsourcing"
)

// Metric names recorded by the Redis engine.
const (
	MetricSaveDuration         = "staterepository_save_duration_seconds"
	MetricConcurrencyConflicts = "staterepository_concurrency_conflicts_total"
	MetricRedisErrors          = "staterepository_redis_errors_total"
)

const (
	spanNameSave = "staterepository.save"

	spanAttrOperation  = "operation"
	spanAttrStateID    = "state_id"
	spanAttrStateIndex = "state_index"
	spanAttrErrorType  = "error_type"

	statusSuccess  = "success"
	statusError    = "error"
	statusConflict = "conflict"

	logMsgConcurrencyConflict = "concurrency conflict detected"
	logMsgStateSaved          = "state saved"
	logMsgRedisFailed         = "redis command failed"
	logAttrError              = "error"
	logAttrStateID            = "state_id"
	logAttrStateIndex         = "state_index"
	logAttrExpectedIndex      = "expected_index"
	logAttrOperation          = "operation"
)

// failed logs err, counts it as redis error and returns it joined with ErrStoreFailure.
func (r *StateRepository[S]) failed(ctx context.Context, operation, errorType string, err error, args ...any) error {
	r.logError(ctx, err, append(args, logAttrOperation, operation)...)
	r.incrementCounter(ctx, MetricRedisErrors, map[string]string{
		spanAttrOperation: operation,
		"status":          statusError,
		spanAttrErrorType: errorType,
	})

	return errors.Join(eventsourcing.ErrStoreFailure, err)
}

func (r *StateRepository[S]) logDebug(ctx context.Context, msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}

	if r.contextualLogger != nil {
		r.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

func (r *StateRepository[S]) logInfo(ctx context.Context, msg string, args ...any) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}

	if r.contextualLogger != nil {
		r.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

func (r *StateRepository[S]) logError(ctx context.Context, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	if r.logger != nil {
		r.logger.Error(logMsgRedisFailed, allArgs...)
	}

	if r.contextualLogger != nil {
		r.contextualLogger.ErrorContext(ctx, logMsgRedisFailed, allArgs...)
	}
}

func (r *StateRepository[S]) recordDuration(ctx context.Context, metric string, duration time.Duration, operation, status string) {
	if r.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"status":          status,
	}

	if contextualCollector, ok := r.metricsCollector.(eventsourcing.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, duration, labels)
	} else {
		r.metricsCollector.RecordDuration(metric, duration, labels)
	}
}

func (r *StateRepository[S]) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if r.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := r.metricsCollector.(eventsourcing.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
	} else {
		r.metricsCollector.IncrementCounter(metric, labels)
	}
}

func (r *StateRepository[S]) startSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, eventsourcing.SpanContext) {
	if r.tracingCollector == nil {
		return ctx, nil
	}

	return r.tracingCollector.StartSpan(ctx, name, attrs)
}

func (r *StateRepository[S]) finishSpan(span eventsourcing.SpanContext, status string, attrs map[string]string) {
	if r.tracingCollector == nil || span == nil {
		return
	}

	r.tracingCollector.FinishSpan(span, status, attrs)
}
