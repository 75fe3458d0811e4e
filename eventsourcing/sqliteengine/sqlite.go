package sqliteengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // driver registration

	"github.com/esaucy/esaucy-go/eventsourcing"
	"github.com/esaucy/esaucy-go/eventsourcing/internal/adapters"
	"github.com/esaucy/esaucy-go/eventsourcing/internal/sqlstore"
)

const driverName = "sqlite"

// EventStore is the SQLite event store, it implements eventsourcing.EventStore and eventsourcing.EventReader.
type EventStore = sqlstore.EventStore

// StateRepository is the SQLite state repository, it implements eventsourcing.StateRepository.
type StateRepository[S eventsourcing.State] = sqlstore.StateRepository[S]

// Option configures the SQLite engines.
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

	// ErrEmptyPath is returned by Open for an empty database path.
	ErrEmptyPath = errors.New("sqlite database path must not be empty")
)

// Open opens the SQLite database at path with WAL journaling and a busy timeout.
// Use ":memory:" for a private in-memory database.
//
// Writes are serialized on a single connection, SQLite allows only one writer at a time anyway.
func Open(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrEmptyPath
	}

	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	return db, nil
}

// CreateSchema creates the events and states tables if they do not exist.
func CreateSchema(ctx context.Context, db *sql.DB, options ...Option) error {
	if db == nil {
		return ErrNilDatabaseConnection
	}

	eventsTable, statesTable, err := sqlstore.ResolveTableNames(options...)
	if err != nil {
		return err
	}

	for _, statement := range Schema(eventsTable, statesTable) {
		if _, err = db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("create sqlite schema: %w", err)
		}
	}

	return nil
}

// Schema returns the DDL statements for the events and states tables.
func Schema(eventsTable, statesTable string) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + quoteIdentifier(eventsTable) + ` (
	sequence_number INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id        TEXT    NOT NULL UNIQUE,
	event_name      TEXT    NOT NULL,
	event_version   INTEGER NOT NULL,
	occurred_at     INTEGER NOT NULL,
	payload         TEXT    NOT NULL,
	metadata        TEXT    NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS ` + quoteIdentifier(statesTable) + ` (
	state_id    TEXT    PRIMARY KEY,
	state_index INTEGER NOT NULL,
	data        TEXT    NOT NULL,
	updated_at  INTEGER NOT NULL
)`,
	}
}

// NewEventStore creates an EventStore on db.
func NewEventStore(db *sql.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return sqlstore.NewEventStore(adapters.NewSQLAdapter(db), sqlstore.DialectSQLite, options...)
}

// NewStateRepository creates a StateRepository on db.
// initial must return the state with the given identity and index 0.
func NewStateRepository[S eventsourcing.State](db *sql.DB, initial func(id string) S, options ...Option) (*StateRepository[S], error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return sqlstore.NewStateRepository(adapters.NewSQLAdapter(db), sqlstore.DialectSQLite, initial, options...)
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
