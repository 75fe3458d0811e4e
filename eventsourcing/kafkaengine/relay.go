package kafkaengine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/esaucy/esaucy-go/eventsourcing"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = time.Second
	defaultWriteTimeout = 10 * time.Second

	logMsgBatchForwarded = "events forwarded"
	logMsgForwardFailed  = "forwarding events failed"
	logAttrCount         = "count"
	logAttrCursor        = "cursor"
	logAttrError         = "error"
)

var (
	// ErrNilEventReader is returned when a Relay is created without an event reader.
	ErrNilEventReader = errors.New("event reader must not be nil")

	// ErrNilMessageWriter is returned when a Relay is created without a message writer.
	ErrNilMessageWriter = errors.New("message writer must not be nil")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("batch size must be positive")

	// ErrInvalidPollInterval is returned when the poll interval is not positive.
	ErrInvalidPollInterval = errors.New("poll interval must be positive")

	// ErrForwardingFailed is returned when the broker did not accept a batch.
	ErrForwardingFailed = errors.New("forwarding events failed")
)

// MessageWriter is the part of *kafka.Writer the Relay needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewWriter returns a *kafka.Writer for topic that waits for all in-sync replicas.
// Messages are balanced by key hash so that a given event id always lands on the same partition.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

// Relay forwards stored events to Kafka at least once, in sequence order.
type Relay struct {
	reader           eventsourcing.EventReader
	writer           MessageWriter
	batchSize        int
	pollInterval     time.Duration
	writeTimeout     time.Duration
	logger           eventsourcing.Logger
	contextualLogger eventsourcing.ContextualLogger

	mu     sync.Mutex
	cursor eventsourcing.SequenceNumber
}

// Option defines a functional option for configuring a Relay.
type Option func(*Relay) error

// WithBatchSize sets how many events are read and written per batch.
func WithBatchSize(size int) Option {
	return func(r *Relay) error {
		if size <= 0 {
			return ErrInvalidBatchSize
		}

		r.batchSize = size

		return nil
	}
}

// WithPollInterval sets how long Run waits after the store had nothing new.
func WithPollInterval(interval time.Duration) Option {
	return func(r *Relay) error {
		if interval <= 0 {
			return ErrInvalidPollInterval
		}

		r.pollInterval = interval

		return nil
	}
}

// WithStartAfter lets the relay resume after an already forwarded sequence number.
func WithStartAfter(sequenceNumber eventsourcing.SequenceNumber) Option {
	return func(r *Relay) error {
		r.cursor = sequenceNumber
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger eventsourcing.Logger) Option {
	return func(r *Relay) error {
		r.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger.
func WithContextualLogger(logger eventsourcing.ContextualLogger) Option {
	return func(r *Relay) error {
		r.contextualLogger = logger
		return nil
	}
}

// NewRelay creates a Relay that starts at the beginning of the event log unless WithStartAfter is given.
func NewRelay(reader eventsourcing.EventReader, writer MessageWriter, options ...Option) (*Relay, error) {
	if reader == nil {
		return nil, ErrNilEventReader
	}

	if writer == nil {
		return nil, ErrNilMessageWriter
	}

	relay := &Relay{
		reader:       reader,
		writer:       writer,
		batchSize:    defaultBatchSize,
		pollInterval: defaultPollInterval,
		writeTimeout: defaultWriteTimeout,
	}

	for _, option := range options {
		if err := option(relay); err != nil {
			return nil, err
		}
	}

	return relay, nil
}

// Cursor returns the sequence number of the last forwarded event.
func (r *Relay) Cursor() eventsourcing.SequenceNumber {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.cursor
}

// Forward writes the next batch of stored events and returns how many were forwarded.
// The cursor only moves when the whole batch was written, a failed batch is retried on the next call.
func (r *Relay) Forward(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	batch, err := r.reader.ReadFrom(ctx, r.cursor, r.batchSize)
	if err != nil {
		r.logError(ctx, err)
		return 0, err
	}

	if len(batch) == 0 {
		return 0, nil
	}

	messages := make([]kafka.Message, 0, len(batch))
	for _, stored := range batch {
		messages = append(messages, MessageFrom(stored))
	}

	writeCtx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	if err = r.writer.WriteMessages(writeCtx, messages...); err != nil {
		r.logError(ctx, err)
		return 0, errors.Join(ErrForwardingFailed, err)
	}

	r.cursor = batch[len(batch)-1].SequenceNumber
	r.logDebug(ctx, logMsgBatchForwarded, logAttrCount, len(batch), logAttrCursor, r.cursor)

	return len(batch), nil
}

// Run forwards batches until ctx is done. It keeps going after a failed batch and waits one poll
// interval whenever there was nothing to forward or the batch failed.
func (r *Relay) Run(ctx context.Context) error {
	for {
		forwarded, err := r.Forward(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err == nil && forwarded > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.pollInterval):
		}
	}
}

func (r *Relay) logDebug(ctx context.Context, msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}

	if r.contextualLogger != nil {
		r.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

func (r *Relay) logError(ctx context.Context, err error) {
	args := []any{logAttrError, err.Error(), logAttrCursor, r.cursor}

	if r.logger != nil {
		r.logger.Error(logMsgForwardFailed, args...)
	}

	if r.contextualLogger != nil {
		r.contextualLogger.ErrorContext(ctx, logMsgForwardFailed, args...)
	}
}
