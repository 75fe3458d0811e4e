package config

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

const (
	defaultMaxIdleConnections = 10
	postgresDriverName        = "postgres"
)

// PostgresPGXPoolConfig creates a pgxpool.Config from the Postgres settings.
func (c Config) PostgresPGXPoolConfig() (*pgxpool.Config, error) {
	dbConfig, err := pgxpool.ParseConfig(c.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	dbConfig.MaxConns = c.PostgresMaxConns
	dbConfig.MinConns = c.PostgresMinConns
	dbConfig.MaxConnLifetime = c.PostgresMaxConnLifetime
	dbConfig.MaxConnIdleTime = c.PostgresMaxConnIdleTime
	dbConfig.ConnConfig.ConnectTimeout = c.PostgresConnectTimeout

	return dbConfig, nil
}

// OpenPGXPool creates a pgxpool.Pool and pings it.
func (c Config) OpenPGXPool(ctx context.Context) (*pgxpool.Pool, error) {
	dbConfig, err := c.PostgresPGXPoolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// OpenSQLDB opens a *sql.DB with the lib/pq driver and pings it.
func (c Config) OpenSQLDB(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(postgresDriverName, c.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	c.configurePool(db)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// OpenSQLX opens a *sqlx.DB with the lib/pq driver and pings it.
func (c Config) OpenSQLX(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.Open(postgresDriverName, c.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	c.configurePool(db.DB)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

func (c Config) configurePool(db *sql.DB) {
	db.SetMaxOpenConns(int(c.PostgresMaxConns))
	db.SetMaxIdleConns(min(defaultMaxIdleConnections, int(c.PostgresMaxConns)))
	db.SetConnMaxLifetime(c.PostgresMaxConnLifetime)
	db.SetConnMaxIdleTime(c.PostgresMaxConnIdleTime)
}
