package eventsourcing

import "errors"

const defaultReplayBatchSize = 500

// ErrInvalidReplayBatchSize is returned when the replay batch size is not positive.
var ErrInvalidReplayBatchSize = errors.New("replay batch size must be positive")

type serviceOptions struct {
	retryOptions     []RetryOption
	replayBatchSize  int
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

// Option defines a functional option for configuring a Service.
type Option func(*serviceOptions) error

// WithRetryOptions configures the bounded retry of get-project-save on ErrConcurrentModification.
func WithRetryOptions(options ...RetryOption) Option {
	return func(o *serviceOptions) error {
		o.retryOptions = append(o.retryOptions, options...)
		return nil
	}
}

// WithReplayBatchSize sets how many stored events Replay reads per batch.
func WithReplayBatchSize(size int) Option {
	return func(o *serviceOptions) error {
		if size <= 0 {
			return ErrInvalidReplayBatchSize
		}

		o.replayBatchSize = size

		return nil
	}
}

// WithLogger sets the logger for the Service.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: per-state projection details
// Info level: completed commands with durations and retry attempts
// Warn level: concurrent modifications that will be retried, rejected commands
// Error level: store failures and incomplete projections.
func WithLogger(logger Logger) Option {
	return func(o *serviceOptions) error {
		o.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Service.
// It receives the same messages as the Logger, with the context for trace correlation.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(o *serviceOptions) error {
		o.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Service.
// Execute durations, command outcomes, projection conflicts and retry metrics are recorded.
func WithMetrics(collector MetricsCollector) Option {
	return func(o *serviceOptions) error {
		o.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Service.
// A span is created for every Execute, Project and Replay call.
func WithTracing(collector TracingCollector) Option {
	return func(o *serviceOptions) error {
		o.tracingCollector = collector
		return nil
	}
}
