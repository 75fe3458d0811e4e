// Command transfer-demo runs random money transfers through the eventsourcing engine.
//
// The engine is selected with ESAUCY_ENGINE (memory, sqlite or postgres), see the config package
// for all variables. With ESAUCY_REDIS_ADDR set the account balances live in Redis, with
// ESAUCY_KAFKA_BROKERS set every stored event is forwarded to ESAUCY_KAFKA_TOPIC afterward.
// ESAUCY_OTLP_ENDPOINT exports traces and metrics to an OpenTelemetry collector.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/esaucy/esaucy-go/example/shared/config"
)

const (
	defaultTransfers   = 100
	defaultAccounts    = "alice,bob,carol,dave"
	defaultMaxAmount   = 10_000
	defaultConcurrency = 8

	telemetryShutdownTimeout = 5 * time.Second
)

func main() {
	options := parseFlags()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)})

	if cfg.UsesOTLP() {
		telemetry, err := cfg.StartTelemetry(ctx)
		if err != nil {
			log.Fatalf("Failed to start telemetry: %v", err)
		}

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
			defer cancel()

			if err := telemetry.Shutdown(shutdownCtx); err != nil {
				log.Printf("Failed to shut down telemetry: %v", err)
			}
		}()
	}

	a, err := newApp(ctx, cfg, handler)
	if err != nil {
		log.Fatalf("Failed to set up %s engine: %v", cfg.Engine, err)
	}

	_, runErr := run(ctx, a, options, os.Stdout)

	if closeErr := a.Close(); closeErr != nil {
		log.Printf("Failed to close engines: %v", closeErr)
	}

	if runErr != nil {
		log.Fatalf("Demo failed: %v", runErr)
	}
}

func parseFlags() runOptions {
	var (
		transfers   = flag.Int("transfers", defaultTransfers, "number of transfers to submit")
		accounts    = flag.String("accounts", defaultAccounts, "comma separated account ids")
		maxAmount   = flag.Int64("max-amount", defaultMaxAmount, "largest amount of a transfer in cents")
		concurrency = flag.Int("concurrency", defaultConcurrency, "number of transfers in flight")
		seed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		replay      = flag.Bool("replay", true, "rebuild the balances from the event log and compare")
	)

	flag.Parse()

	return runOptions{
		Transfers:   *transfers,
		Accounts:    strings.Split(*accounts, ","),
		MaxAmount:   *maxAmount,
		Concurrency: *concurrency,
		Seed:        *seed,
		Replay:      *replay,
	}
}

func logLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}

	return l
}
