package sqlstore

import (
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration

	"github.com/esaucy/esaucy-go/eventsourcing"
)

// Supported goqu dialects.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

const (
	DefaultEventsTableName = "events"
	DefaultStatesTableName = "states"
)

var (
	// ErrNilDatabaseConnection is returned when an engine is created without a database connection.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrEmptyTableName is returned when an empty table name is configured.
	ErrEmptyTableName = errors.New("table name must not be empty")

	// ErrUnsupportedDialect is returned for dialects other than postgres and sqlite3.
	ErrUnsupportedDialect = errors.New("unsupported sql dialect")

	// ErrNilInitialStateFactory is returned when a StateRepository is created without a zero-state factory.
	ErrNilInitialStateFactory = errors.New("initial state factory must not be nil")
)

// Options holds the configuration shared by EventStore and StateRepository.
type Options struct {
	eventsTableName  string
	statesTableName  string
	logger           eventsourcing.Logger
	contextualLogger eventsourcing.ContextualLogger
	metricsCollector eventsourcing.MetricsCollector
	tracingCollector eventsourcing.TracingCollector
	clock            func() time.Time
}

// Option defines a functional option for the SQL engines.
type Option func(*Options) error

// WithEventsTableName sets the name of the events table.
func WithEventsTableName(tableName string) Option {
	return func(o *Options) error {
		if tableName == "" {
			return ErrEmptyTableName
		}

		o.eventsTableName = tableName

		return nil
	}
}

// WithStatesTableName sets the name of the states table.
func WithStatesTableName(tableName string) Option {
	return func(o *Options) error {
		if tableName == "" {
			return ErrEmptyTableName
		}

		o.statesTableName = tableName

		return nil
	}
}

// WithLogger sets the logger.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Info level: duplicates and concurrency conflicts (production-safe)
// Error level: failures that cause operation failures.
func WithLogger(logger eventsourcing.Logger) Option {
	return func(o *Options) error {
		o.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger, it receives the same messages as the Logger.
func WithContextualLogger(logger eventsourcing.ContextualLogger) Option {
	return func(o *Options) error {
		o.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector.
// Statement durations, database errors and concurrency conflicts are recorded.
func WithMetrics(collector eventsourcing.MetricsCollector) Option {
	return func(o *Options) error {
		o.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector. A span is created for every publish, read and save.
func WithTracing(collector eventsourcing.TracingCollector) Option {
	return func(o *Options) error {
		o.tracingCollector = collector
		return nil
	}
}

// WithClock sets the clock used for the updated_at column of the states table.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) error {
		if clock != nil {
			o.clock = clock
		}

		return nil
	}
}

func buildOptions(options []Option) (Options, error) {
	o := Options{
		eventsTableName: DefaultEventsTableName,
		statesTableName: DefaultStatesTableName,
		clock:           time.Now,
	}

	for _, option := range options {
		if err := option(&o); err != nil {
			return Options{}, err
		}
	}

	return o, nil
}

// EventsTableName returns the configured events table name.
func (o Options) EventsTableName() string {
	return o.eventsTableName
}

// StatesTableName returns the configured states table name.
func (o Options) StatesTableName() string {
	return o.statesTableName
}

// ResolveTableNames applies options and returns the configured table names, used for schema creation.
func ResolveTableNames(options ...Option) (string, string, error) {
	o, err := buildOptions(options)
	if err != nil {
		return "", "", err
	}

	return o.eventsTableName, o.statesTableName, nil
}

func dialectFor(name string) (goqu.DialectWrapper, error) {
	switch name {
	case DialectPostgres, DialectSQLite:
		return goqu.Dialect(name), nil
	default:
		return goqu.DialectWrapper{}, errors.Join(ErrUnsupportedDialect, errors.New(name))
	}
}
