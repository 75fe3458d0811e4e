package eventsourcing

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"
)

// Metric names recorded by the Service and its retry loop.
const (
	MetricExecuteDuration     = "eventsourcing_execute_duration_seconds"
	MetricReplayDuration      = "eventsourcing_replay_duration_seconds"
	MetricCommands            = "eventsourcing_commands_total"
	MetricProjectionConflicts = "eventsourcing_projection_conflicts_total"
	MetricRetryAttempts       = "eventsourcing_retry_attempts_total"
	MetricRetryDelay          = "eventsourcing_retry_delay_seconds"
	MetricMaxRetriesReached   = "eventsourcing_max_retries_reached_total"
)

// Status values used for metric labels and span status.
const (
	statusSuccess    = "success"
	statusError      = "error"
	statusRejected   = "rejected"
	statusDuplicate  = "duplicate"
	statusIncomplete = "incomplete"
)

const (
	operationExecute = "execute"
	operationProject = "project"
	operationReplay  = "replay"

	spanNameExecute = "eventsourcing.execute"
	spanNameProject = "eventsourcing.project"
	spanNameReplay  = "eventsourcing.replay"

	spanAttrCommandID  = "command_id"
	spanAttrEventID    = "event_id"
	spanAttrStage      = "stage"
	spanAttrStateCount = "state_count"
	spanAttrEventCount = "event_count"

	labelOperation      = "operation"
	labelStatus         = "status"
	labelStage          = "stage"
	labelErrorType      = "error_type"
	labelFinalErrorType = "final_error_type"
	labelAttemptNumber  = "attempt_number"
	labelConflictType   = "conflict_type"

	logMsgCommandCompleted     = "command completed"
	logMsgCommandRejected      = "command rejected"
	logMsgDuplicateEvent       = "event already published"
	logMsgCommandFailed        = "command failed"
	logMsgProjectionIncomplete = "event published but projection incomplete"
	logMsgStateProjected       = "state projected"
	logMsgConcurrentMod        = "concurrent modification detected"
	logMsgReplayCompleted      = "replay completed"
	logMsgReplayFailed         = "replay failed"

	logAttrError         = "error"
	logAttrOperation     = "operation"
	logAttrCommandID     = "command_id"
	logAttrEventID       = "event_id"
	logAttrStateID       = "state_id"
	logAttrStateIndex    = "state_index"
	logAttrExpectedIndex = "expected_index"
	logAttrStage         = "stage"
	logAttrStateCount    = "state_count"
	logAttrRetryAttempts = "retry_attempts"
	logAttrEventCount    = "event_count"
	logAttrDurationMS    = "duration_ms"
)

// observe logs, measures and finishes the span of one Execute or Project call.
func (s *Service[C, E, S]) observe(
	ctx context.Context,
	span SpanContext,
	operation string,
	commandID string,
	result Result[E, S],
	err error,
	duration time.Duration,
) {

	status := statusOf(err)

	args := []any{logAttrOperation, operation, logAttrStage, result.Stage.String()}
	if commandID != "" {
		args = append(args, logAttrCommandID, commandID)
	}

	spanAttrs := map[string]string{spanAttrStage: result.Stage.String()}

	if result.Stage >= StageHandled {
		args = append(args, logAttrEventID, result.Event.EventID())
		spanAttrs[spanAttrEventID] = result.Event.EventID()
	}

	switch status {
	case statusSuccess:
		args = append(args,
			logAttrStateCount, len(result.States),
			logAttrRetryAttempts, result.RetryAttempts,
			logAttrDurationMS, toMilliseconds(duration))
		spanAttrs[spanAttrStateCount] = strconv.Itoa(len(result.States))
		s.logInfo(ctx, logMsgCommandCompleted, args...)

	case statusRejected:
		s.logWarn(ctx, logMsgCommandRejected, append(args, logAttrError, err.Error())...)

	case statusDuplicate:
		s.logWarn(ctx, logMsgDuplicateEvent, args...)

	case statusIncomplete:
		s.logError(ctx, logMsgProjectionIncomplete, err, args...)

	default:
		s.logError(ctx, logMsgCommandFailed, err, args...)
	}

	s.recordDuration(ctx, MetricExecuteDuration, duration, operation, status)
	s.incrementCounter(ctx, MetricCommands, map[string]string{
		labelOperation: operation,
		labelStatus:    status,
		labelStage:     result.Stage.String(),
	})
	s.finishSpan(span, status, spanAttrs)
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return statusSuccess
	case errors.Is(err, ErrInvalidCommand):
		return statusRejected
	case errors.Is(err, ErrDuplicateEvent):
		return statusDuplicate
	case errors.Is(err, ErrProjectionIncomplete):
		return statusIncomplete
	default:
		return statusError
	}
}

func (s *Service[C, E, S]) recordConflict(ctx context.Context, id string, expectedIndex uint64) {
	s.logWarn(ctx, logMsgConcurrentMod, logAttrStateID, id, logAttrExpectedIndex, expectedIndex)
	s.incrementCounter(ctx, MetricProjectionConflicts, map[string]string{
		labelOperation:    operationProject,
		labelConflictType: "state_index",
	})
}

func (s *Service[C, E, S]) logDebug(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

func (s *Service[C, E, S]) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

func (s *Service[C, E, S]) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.WarnContext(ctx, msg, args...)
	}
}

func (s *Service[C, E, S]) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	if s.logger != nil {
		s.logger.Error(msg, allArgs...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	}
}

func (s *Service[C, E, S]) recordDuration(ctx context.Context, metric string, duration time.Duration, operation, status string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelOperation: operation,
		labelStatus:    status,
	}

	if contextualCollector, ok := s.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, duration, labels)
	} else {
		s.metricsCollector.RecordDuration(metric, duration, labels)
	}
}

func (s *Service[C, E, S]) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if s.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := s.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
	} else {
		s.metricsCollector.IncrementCounter(metric, labels)
	}
}

func (s *Service[C, E, S]) startSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext) {
	if s.tracingCollector == nil {
		return ctx, nil
	}

	return s.tracingCollector.StartSpan(ctx, name, attrs)
}

func (s *Service[C, E, S]) finishSpan(span SpanContext, status string, attrs map[string]string) {
	if s.tracingCollector == nil || span == nil {
		return
	}

	s.tracingCollector.FinishSpan(span, status, attrs)
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
