package sqlstore

import (
	"context"
	"math"
	"time"

	"github.com/esaucy/esaucy-go/eventsourcing"
)

// Metric names recorded by the SQL engines.
const (
	MetricPublishDuration      = "eventstore_publish_duration_seconds"
	MetricReadDuration         = "eventstore_read_duration_seconds"
	MetricSaveDuration         = "staterepository_save_duration_seconds"
	MetricDatabaseErrors       = "eventstore_database_errors_total"
	MetricConcurrencyConflicts = "staterepository_concurrency_conflicts_total"
	MetricDuplicateEvents      = "eventstore_duplicate_events_total"
)

const (
	operationPublish = "publish"
	operationRead    = "read"
	operationGet     = "get"
	operationSave    = "save"

	spanNamePublish = "eventstore.publish"
	spanNameRead    = "eventstore.read"
	spanNameSave    = "staterepository.save"

	spanAttrOperation    = "operation"
	spanAttrEventID      = "event_id"
	spanAttrEventName    = "event_name"
	spanAttrStateID      = "state_id"
	spanAttrEventCount   = "event_count"
	spanAttrErrorType    = "error_type"
	spanAttrRowsAffected = "rows_affected"

	statusSuccess   = "success"
	statusError     = "error"
	statusDuplicate = "duplicate"
	statusConflict  = "conflict"

	errorTypeBuildQuery   = "build_query"
	errorTypeDatabaseExec = "database_exec"
	errorTypeScan         = "row_scan"
	errorTypeRowsAffected = "rows_affected"
	errorTypeMarshal      = "marshal"

	logMsgBuildQueryFailed    = "failed to build sql statement"
	logMsgDBExecFailed        = "database execution failed"
	logMsgDBQueryFailed       = "database query execution failed"
	logMsgScanRowFailed       = "failed to scan database row"
	logMsgRowsAffectedFailed  = "failed to get rows affected count"
	logMsgCloseRowsFailed     = "failed to close database rows"
	logMsgDuplicateEvent      = "duplicate event rejected"
	logMsgConcurrencyConflict = "concurrency conflict detected"
	logMsgSQLExecuted         = "executed sql for: "
	logAttrError              = "error"
	logAttrQuery              = "query"
	logAttrDurationMS         = "duration_ms"
	logAttrEventID            = "event_id"
	logAttrStateID            = "state_id"
	logAttrExpectedIndex      = "expected_index"
	logAttrRowsAffected       = "rows_affected"
	logAttrOperation          = "operation"
)

func (o Options) logQueryWithDuration(ctx context.Context, query string, operation string, duration time.Duration) {
	args := []any{logAttrDurationMS, toMilliseconds(duration), logAttrQuery, query}

	if o.logger != nil {
		o.logger.Debug(logMsgSQLExecuted+operation, args...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+operation, args...)
	}
}

func (o Options) logInfo(ctx context.Context, msg string, args ...any) {
	if o.logger != nil {
		o.logger.Info(msg, args...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

func (o Options) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	if o.logger != nil {
		o.logger.Error(msg, allArgs...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	}
}

// failed logs the error, counts it as database error and returns it.
func (o Options) failed(ctx context.Context, msg string, operation string, errorType string, err error, args ...any) error {
	o.logError(ctx, msg, err, append(args, logAttrOperation, operation)...)
	o.incrementCounter(ctx, MetricDatabaseErrors, map[string]string{
		spanAttrOperation: operation,
		"status":          statusError,
		spanAttrErrorType: errorType,
	})

	return err
}

func (o Options) recordDuration(ctx context.Context, metric string, duration time.Duration, operation, status string) {
	if o.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		"status":          status,
	}

	if contextualCollector, ok := o.metricsCollector.(eventsourcing.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, duration, labels)
	} else {
		o.metricsCollector.RecordDuration(metric, duration, labels)
	}
}

func (o Options) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if o.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := o.metricsCollector.(eventsourcing.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
	} else {
		o.metricsCollector.IncrementCounter(metric, labels)
	}
}

func (o Options) startSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, eventsourcing.SpanContext) {
	if o.tracingCollector == nil {
		return ctx, nil
	}

	return o.tracingCollector.StartSpan(ctx, name, attrs)
}

func (o Options) finishSpan(span eventsourcing.SpanContext, status string, attrs map[string]string) {
	if o.tracingCollector == nil || span == nil {
		return
	}

	o.tracingCollector.FinishSpan(span, status, attrs)
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
