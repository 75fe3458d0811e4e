package postgresengine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/esaucy/esaucy-go/eventsourcing"
	"github.com/esaucy/esaucy-go/eventsourcing/internal/adapters"
	"github.com/esaucy/esaucy-go/eventsourcing/internal/sqlstore"
)

// EventStore is the PostgreSQL event store, it implements eventsourcing.EventStore and eventsourcing.EventReader.
type EventStore = sqlstore.EventStore

// StateRepository is the PostgreSQL state repository, it implements eventsourcing.StateRepository.
type StateRepository[S eventsourcing.State] = sqlstore.StateRepository[S]

// Option configures the PostgreSQL engines.
type Option = sqlstore.Option

var (
	WithEventsTableName  = sqlstore.WithEventsTableName
	WithStatesTableName  = sqlstore.WithStatesTableName
	WithLogger           = sqlstore.WithLogger
	WithContextualLogger = sqlstore.WithContextualLogger
	WithMetrics          = sqlstore.WithMetrics
	WithTracing          = sqlstore.WithTracing
	WithClock            = sqlstore.WithClock
)

var (
	// ErrNilDatabaseConnection is returned when an engine is created without a database connection.
	ErrNilDatabaseConnection = sqlstore.ErrNilDatabaseConnection

	// ErrEmptyTableName is returned when an empty table name is configured.
	ErrEmptyTableName = sqlstore.ErrEmptyTableName
)

// NewEventStoreFromPGXPool creates a new EventStore using a pgx Pool with optional configuration.
func NewEventStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return sqlstore.NewEventStore(adapters.NewPGXAdapter(db), sqlstore.DialectPostgres, options...)
}

// NewEventStoreFromSQLDB creates a new EventStore using a sql.DB with optional configuration.
func NewEventStoreFromSQLDB(db *sql.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return sqlstore.NewEventStore(adapters.NewSQLAdapter(db), sqlstore.DialectPostgres, options...)
}

// NewEventStoreFromSQLX creates a new EventStore using a sqlx.DB with optional configuration.
func NewEventStoreFromSQLX(db *sqlx.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return sqlstore.NewEventStore(adapters.NewSQLXAdapter(db), sqlstore.DialectPostgres, options...)
}

// NewStateRepositoryFromPGXPool creates a new StateRepository using a pgx Pool.
// initial must return the state with the given identity and index 0.
func NewStateRepositoryFromPGXPool[S eventsourcing.State](
	db *pgxpool.Pool,
	initial func(id string) S,
	options ...Option,
) (*StateRepository[S], error) {

	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return sqlstore.NewStateRepository(adapters.NewPGXAdapter(db), sqlstore.DialectPostgres, initial, options...)
}

// NewStateRepositoryFromSQLDB creates a new StateRepository using a sql.DB.
func NewStateRepositoryFromSQLDB[S eventsourcing.State](
	db *sql.DB,
	initial func(id string) S,
	options ...Option,
) (*StateRepository[S], error) {

	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return sqlstore.NewStateRepository(adapters.NewSQLAdapter(db), sqlstore.DialectPostgres, initial, options...)
}

// NewStateRepositoryFromSQLX creates a new StateRepository using a sqlx.DB.
func NewStateRepositoryFromSQLX[S eventsourcing.State](
	db *sqlx.DB,
	initial func(id string) S,
	options ...Option,
) (*StateRepository[S], error) {

	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return sqlstore.NewStateRepository(adapters.NewSQLXAdapter(db), sqlstore.DialectPostgres, initial, options...)
}

// CreateSchema creates the events and states tables if they do not exist.
func CreateSchema(ctx context.Context, db *pgxpool.Pool, options ...Option) error {
	if db == nil {
		return ErrNilDatabaseConnection
	}

	eventsTable, statesTable, err := sqlstore.ResolveTableNames(options...)
	if err != nil {
		return err
	}

	for _, statement := range Schema(eventsTable, statesTable) {
		if _, err = db.Exec(ctx, statement); err != nil {
			return fmt.Errorf("create postgres schema: %w", err)
		}
	}

	return nil
}

// Schema returns the DDL statements for the events and states tables.
func Schema(eventsTable, statesTable string) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + quoteIdentifier(eventsTable) + ` (
	sequence_number BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	event_id        TEXT    NOT NULL UNIQUE,
	event_name      TEXT    NOT NULL,
	event_version   INTEGER NOT NULL,
	occurred_at     BIGINT  NOT NULL,
	payload         JSONB   NOT NULL,
	metadata        JSONB   NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS ` + quoteIdentifier(statesTable) + ` (
	state_id    TEXT   PRIMARY KEY,
	state_index BIGINT NOT NULL,
	data        JSONB  NOT NULL,
	updated_at  BIGINT NOT NULL
)`,
	}
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
