package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	"github.com/esaucy/esaucy-go/eventsourcing"
	"github.com/esaucy/esaucy-go/eventsourcing/kafkaengine"
	"github.com/esaucy/esaucy-go/eventsourcing/memoryengine"
	"github.com/esaucy/esaucy-go/eventsourcing/oteladapters"
	"github.com/esaucy/esaucy-go/eventsourcing/postgresengine"
	"github.com/esaucy/esaucy-go/eventsourcing/redisengine"
	"github.com/esaucy/esaucy-go/eventsourcing/sqliteengine"
	"github.com/esaucy/esaucy-go/example/shared/config"
	"github.com/esaucy/esaucy-go/example/transfer"
)

const instrumentationName = "github.com/esaucy/esaucy-go/example/transfer"

// eventLog is an event store that also supports replay.
type eventLog interface {
	eventsourcing.EventStore
	eventsourcing.EventReader
}

// app holds the wired engines of one demo run.
type app struct {
	store      eventLog
	repository eventsourcing.StateRepository[transfer.AccountBalance]
	service    *transfer.Service
	relay      *kafkaengine.Relay
	closers    []func() error
}

// newApp builds the engines cfg selects and the transfer service on top of them.
func newApp(ctx context.Context, cfg config.Config, handler slog.Handler) (*app, error) {
	logger := oteladapters.NewSlogBridgeLoggerWithHandler(handler)
	metrics := oteladapters.NewMetricsCollector(otel.Meter(instrumentationName))
	tracing := oteladapters.NewTracingCollector(otel.Tracer(instrumentationName))

	a := &app{}

	if err := a.openEngines(ctx, cfg, logger, metrics, tracing); err != nil {
		_ = a.Close()
		return nil, err
	}

	if cfg.UsesRedis() {
		if err := a.useRedis(ctx, cfg, logger, metrics, tracing); err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	if cfg.UsesKafka() {
		writer := cfg.KafkaWriter()
		a.closers = append(a.closers, writer.Close)

		relay, err := kafkaengine.NewRelay(a.store, writer, kafkaengine.WithContextualLogger(logger))
		if err != nil {
			_ = a.Close()
			return nil, err
		}

		a.relay = relay
	}

	serviceOptions := []eventsourcing.Option{
		eventsourcing.WithContextualLogger(logger),
		eventsourcing.WithMetrics(metrics),
		eventsourcing.WithTracing(tracing),
	}
	if cfg.RetryMaxAttempts > 0 {
		serviceOptions = append(serviceOptions, eventsourcing.WithRetryOptions(
			eventsourcing.WithMaxAttempts(cfg.RetryMaxAttempts),
			eventsourcing.WithBaseDelay(cfg.RetryBaseDelay),
		))
	}

	service, err := transfer.NewService(transfer.NewHandler(), a.store, a.repository, serviceOptions...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.service = service

	return a, nil
}

func (a *app) openEngines(
	ctx context.Context,
	cfg config.Config,
	logger eventsourcing.ContextualLogger,
	metrics eventsourcing.MetricsCollector,
	tracing eventsourcing.TracingCollector,
) error {

	switch cfg.Engine {
	case config.EngineMemory:
		store, err := memoryengine.NewEventStore(memoryengine.WithContextualLogger(logger))
		if err != nil {
			return err
		}

		repository, err := memoryengine.NewStateRepository(transfer.NewAccountBalance, memoryengine.WithContextualLogger(logger))
		if err != nil {
			return err
		}

		a.store, a.repository = store, repository

		return nil

	case config.EngineSQLite:
		options := []sqliteengine.Option{
			sqliteengine.WithEventsTableName(cfg.EventsTable),
			sqliteengine.WithStatesTableName(cfg.StatesTable),
			sqliteengine.WithContextualLogger(logger),
			sqliteengine.WithMetrics(metrics),
			sqliteengine.WithTracing(tracing),
		}

		db, err := cfg.OpenSQLite()
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db.Close)

		if err = sqliteengine.CreateSchema(ctx, db, options...); err != nil {
			return err
		}

		store, err := sqliteengine.NewEventStore(db, options...)
		if err != nil {
			return err
		}

		repository, err := sqliteengine.NewStateRepository(db, transfer.NewAccountBalance, options...)
		if err != nil {
			return err
		}

		a.store, a.repository = store, repository

		return nil

	case config.EnginePostgres:
		return a.openPostgres(ctx, cfg, []postgresengine.Option{
			postgresengine.WithEventsTableName(cfg.EventsTable),
			postgresengine.WithStatesTableName(cfg.StatesTable),
			postgresengine.WithContextualLogger(logger),
			postgresengine.WithMetrics(metrics),
			postgresengine.WithTracing(tracing),
		})

	default:
		return fmt.Errorf("%w: %q", config.ErrUnknownEngine, cfg.Engine)
	}
}

func (a *app) openPostgres(ctx context.Context, cfg config.Config, options []postgresengine.Option) error {
	switch cfg.PostgresDriver {
	case config.DriverPGX:
		pool, err := cfg.OpenPGXPool(ctx)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })

		if err = postgresengine.CreateSchema(ctx, pool, options...); err != nil {
			return err
		}

		store, err := postgresengine.NewEventStoreFromPGXPool(pool, options...)
		if err != nil {
			return err
		}

		repository, err := postgresengine.NewStateRepositoryFromPGXPool(pool, transfer.NewAccountBalance, options...)
		if err != nil {
			return err
		}

		a.store, a.repository = store, repository

	case config.DriverSQLDB:
		db, err := cfg.OpenSQLDB(ctx)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db.Close)

		if err = createPostgresSchema(ctx, db, cfg); err != nil {
			return err
		}

		store, err := postgresengine.NewEventStoreFromSQLDB(db, options...)
		if err != nil {
			return err
		}

		repository, err := postgresengine.NewStateRepositoryFromSQLDB(db, transfer.NewAccountBalance, options...)
		if err != nil {
			return err
		}

		a.store, a.repository = store, repository

	case config.DriverSQLX:
		db, err := cfg.OpenSQLX(ctx)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db.Close)

		if err = createPostgresSchema(ctx, db.DB, cfg); err != nil {
			return err
		}

		store, err := postgresengine.NewEventStoreFromSQLX(db, options...)
		if err != nil {
			return err
		}

		repository, err := postgresengine.NewStateRepositoryFromSQLX(db, transfer.NewAccountBalance, options...)
		if err != nil {
			return err
		}

		a.store, a.repository = store, repository

	default:
		return fmt.Errorf("%w: %q", config.ErrUnknownDriver, cfg.PostgresDriver)
	}

	return nil
}

func createPostgresSchema(ctx context.Context, db *sql.DB, cfg config.Config) error {
	for _, statement := range postgresengine.Schema(cfg.EventsTable, cfg.StatesTable) {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("create postgres schema: %w", err)
		}
	}

	return nil
}

// useRedis replaces the engine's state repository by one on Redis.
func (a *app) useRedis(
	ctx context.Context,
	cfg config.Config,
	logger eventsourcing.ContextualLogger,
	metrics eventsourcing.MetricsCollector,
	tracing eventsourcing.TracingCollector,
) error {

	client, err := cfg.OpenRedis(ctx)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, client.Close)

	repository, err := redisengine.NewStateRepository(client, transfer.NewAccountBalance,
		redisengine.WithKeyPrefix(cfg.RedisKeyPrefix),
		redisengine.WithContextualLogger(logger),
		redisengine.WithMetrics(metrics),
		redisengine.WithTracing(tracing),
	)
	if err != nil {
		return err
	}

	a.repository = repository

	return nil
}

// forward relays all stored events to Kafka, it is a no-op without brokers.
func (a *app) forward(ctx context.Context) (int, error) {
	if a.relay == nil {
		return 0, nil
	}

	total := 0
	for {
		forwarded, err := a.relay.Forward(ctx)
		total += forwarded

		if err != nil || forwarded == 0 {
			return total, err
		}
	}
}

// Close closes the opened clients in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}

	a.closers = nil

	return errors.Join(errs...)
}
