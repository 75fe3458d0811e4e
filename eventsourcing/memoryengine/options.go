package memoryengine

import (
	"context"
	"errors"

	"github.com/esaucy/esaucy-go/eventsourcing"
)

const (
	logMsgEventPublished      = "event published"
	logMsgDuplicateEvent      = "duplicate event rejected"
	logMsgStateSaved          = "state saved"
	logMsgConcurrencyConflict = "concurrency conflict detected"
	logAttrEventID            = "event_id"
	logAttrEventName          = "event_name"
	logAttrSequenceNumber     = "sequence_number"
	logAttrStateID            = "state_id"
	logAttrStateIndex         = "state_index"
	logAttrExpectedIndex      = "expected_index"
	logAttrStoredIndex        = "stored_index"
)

// ErrNilInitialStateFactory is returned when a StateRepository is created without a zero-state factory.
var ErrNilInitialStateFactory = errors.New("initial state factory must not be nil")

type engineOptions struct {
	logger           eventsourcing.Logger
	contextualLogger eventsourcing.ContextualLogger
}

// Option defines a functional option for the in-memory engines.
type Option func(*engineOptions) error

// WithLogger sets the logger.
// Debug level: published events and saved states. Info level: duplicates and concurrency conflicts.
func WithLogger(logger eventsourcing.Logger) Option {
	return func(o *engineOptions) error {
		o.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger.
func WithContextualLogger(logger eventsourcing.ContextualLogger) Option {
	return func(o *engineOptions) error {
		o.contextualLogger = logger
		return nil
	}
}

func applyOptions(o *engineOptions, options []Option) error {
	for _, option := range options {
		if err := option(o); err != nil {
			return err
		}
	}

	return nil
}

func (o engineOptions) logDebug(ctx context.Context, msg string, args ...any) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

func (o engineOptions) logInfo(ctx context.Context, msg string, args ...any) {
	if o.logger != nil {
		o.logger.Info(msg, args...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.InfoContext(ctx, msg, args...)
	}
}
