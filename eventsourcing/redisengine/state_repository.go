package redisengine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	jsoniter "github.com/json-iterator/go"

	"github.com/esaucy/esaucy-go/eventsourcing"
)

const (
	defaultKeyPrefix = "esaucy:state:"
	fieldData        = "data"

	operationGet  = "get"
	operationSave = "save"

	errorTypeRedis   = "redis_command"
	errorTypeMarshal = "marshal"
)

var (
	// ErrNilClient is returned when a StateRepository is created without a redis client.
	ErrNilClient = errors.New("redis client must not be nil")

	// ErrNilInitialStateFactory is returned when a StateRepository is created without a zero-state factory.
	ErrNilInitialStateFactory = errors.New("initial state factory must not be nil")

	// ErrEmptyKeyPrefix is returned when an empty key prefix is configured.
	ErrEmptyKeyPrefix = errors.New("key prefix must not be empty")
)

// compareAndSet writes index and data if the stored index (0 when missing) equals ARGV[1].
// Returns 1 on success and 0 on a mismatch.
var compareAndSet = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'index')
if not current then
	current = '0'
end
if current ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'index', ARGV[2], 'data', ARGV[3])
return 1
`)

// StateRepository keeps the latest state per identity in Redis hashes.
type StateRepository[S eventsourcing.State] struct {
	client           redis.UniversalClient
	initial          func(id string) S
	keyPrefix        string
	logger           eventsourcing.Logger
	contextualLogger eventsourcing.ContextualLogger
	metricsCollector eventsourcing.MetricsCollector
	tracingCollector eventsourcing.TracingCollector
}

// Option defines a functional option for configuring the Redis engine.
type Option func(*config) error

type config struct {
	keyPrefix        string
	logger           eventsourcing.Logger
	contextualLogger eventsourcing.ContextualLogger
	metricsCollector eventsourcing.MetricsCollector
	tracingCollector eventsourcing.TracingCollector
}

// WithKeyPrefix sets the prefix of the state keys, the default is "esaucy:state:".
func WithKeyPrefix(prefix string) Option {
	return func(c *config) error {
		if prefix == "" {
			return ErrEmptyKeyPrefix
		}

		c.keyPrefix = prefix

		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger eventsourcing.Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger.
func WithContextualLogger(logger eventsourcing.ContextualLogger) Option {
	return func(c *config) error {
		c.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector.
// Save durations, concurrency conflicts and redis errors are recorded.
func WithMetrics(collector eventsourcing.MetricsCollector) Option {
	return func(c *config) error {
		c.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector, a span is created for every Save.
func WithTracing(collector eventsourcing.TracingCollector) Option {
	return func(c *config) error {
		c.tracingCollector = collector
		return nil
	}
}

// NewStateRepository creates a StateRepository on client.
// initial must return the state with the given identity and index 0.
func NewStateRepository[S eventsourcing.State](
	client redis.UniversalClient,
	initial func(id string) S,
	options ...Option,
) (*StateRepository[S], error) {

	if client == nil {
		return nil, ErrNilClient
	}

	if initial == nil {
		return nil, ErrNilInitialStateFactory
	}

	c := config{keyPrefix: defaultKeyPrefix}
	for _, option := range options {
		if err := option(&c); err != nil {
			return nil, err
		}
	}

	return &StateRepository[S]{
		client:           client,
		initial:          initial,
		keyPrefix:        c.keyPrefix,
		logger:           c.logger,
		contextualLogger: c.contextualLogger,
		metricsCollector: c.metricsCollector,
		tracingCollector: c.tracingCollector,
	}, nil
}

// Get returns the stored state, or the initial state when the key does not exist.
func (r *StateRepository[S]) Get(ctx context.Context, id string) (S, error) {
	var state S

	data, err := r.client.HGet(ctx, r.key(id), fieldData).Bytes()
	if errors.Is(err, redis.Nil) {
		return r.initial(id), nil
	}

	if err != nil {
		return state, r.failed(ctx, operationGet, errorTypeRedis, err, logAttrStateID, id)
	}

	if err = jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &state); err != nil {
		return state, r.failed(ctx, operationGet, errorTypeMarshal, err, logAttrStateID, id)
	}

	return state, nil
}

// Save writes state if the stored index still equals expectedIndex.
func (r *StateRepository[S]) Save(ctx context.Context, state S, expectedIndex uint64) error {
	id := state.StateID()
	if id == "" {
		return eventsourcing.ErrEmptyStateID
	}

	ctx, span := r.startSpan(ctx, spanNameSave, map[string]string{
		spanAttrOperation: operationSave,
		spanAttrStateID:   id,
	})

	start := time.Now()
	status, err := r.save(ctx, id, state, expectedIndex)

	r.recordDuration(ctx, MetricSaveDuration, time.Since(start), operationSave, status)
	r.finishSpan(span, status, map[string]string{spanAttrStateIndex: strconv.FormatUint(state.StateIndex(), 10)})

	return err
}

func (r *StateRepository[S]) save(ctx context.Context, id string, state S, expectedIndex uint64) (string, error) {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(state)
	if err != nil {
		return statusError, r.failed(ctx, operationSave, errorTypeMarshal, err, logAttrStateID, id)
	}

	swapped, err := compareAndSet.Run(ctx, r.client, []string{r.key(id)},
		strconv.FormatUint(expectedIndex, 10),
		strconv.FormatUint(state.StateIndex(), 10),
		data,
	).Int()
	if err != nil {
		return statusError, r.failed(ctx, operationSave, errorTypeRedis, err, logAttrStateID, id)
	}

	if swapped == 0 {
		r.logInfo(ctx, logMsgConcurrencyConflict, logAttrStateID, id, logAttrExpectedIndex, expectedIndex)
		r.incrementCounter(ctx, MetricConcurrencyConflicts, map[string]string{
			spanAttrOperation: operationSave,
			"conflict_type":   "state_index",
		})

		return statusConflict, fmt.Errorf("%w: state %q expected index %d", eventsourcing.ErrConcurrentModification, id, expectedIndex)
	}

	r.logDebug(ctx, logMsgStateSaved, logAttrStateID, id, logAttrStateIndex, state.StateIndex())

	return statusSuccess, nil
}

func (r *StateRepository[S]) key(id string) string {
	return r.keyPrefix + id
}
