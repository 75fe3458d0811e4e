package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/esaucy/esaucy-go/eventsourcing"
	"github.com/esaucy/esaucy-go/eventsourcing/memoryengine"
	"github.com/esaucy/esaucy-go/example/transfer"
)

// runOptions controls one demo run.
type runOptions struct {
	Transfers   int
	Accounts    []string
	MaxAmount   int64
	Concurrency int
	Seed        int64
	Replay      bool
}

// summary is what a run reports.
type summary struct {
	Executed  int
	Rejected  int
	Forwarded int
	Balances  []transfer.AccountBalance
	Sum       int64
	Replayed  int
}

// run submits random transfers, prints the balances and optionally checks them against a replay.
func run(ctx context.Context, a *app, options runOptions, out io.Writer) (summary, error) {
	if len(options.Accounts) < 2 {
		return summary{}, fmt.Errorf("need at least two accounts, got %d", len(options.Accounts))
	}

	commands := randomTransfers(options)

	var (
		mu     sync.Mutex
		result summary
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(max(1, options.Concurrency))

	for _, command := range commands {
		group.Go(func() error {
			_, err := a.service.Execute(groupCtx, command)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				result.Executed++
				return nil
			case errors.Is(err, eventsourcing.ErrInvalidCommand):
				result.Rejected++
				return nil
			default:
				return fmt.Errorf("transaction %s: %w", command.TransactionID, err)
			}
		})
	}

	if err := group.Wait(); err != nil {
		return result, err
	}

	forwarded, err := a.forward(ctx)
	if err != nil {
		return result, err
	}
	result.Forwarded = forwarded

	for _, account := range options.Accounts {
		state, getErr := a.service.GetState(ctx, account)
		if getErr != nil {
			return result, getErr
		}

		result.Balances = append(result.Balances, state)
		result.Sum += state.Balance
	}

	sort.Slice(result.Balances, func(i, j int) bool { return result.Balances[i].AccountID < result.Balances[j].AccountID })

	if options.Replay {
		if result.Replayed, err = verifyReplay(ctx, a, result.Balances); err != nil {
			return result, err
		}
	}

	printSummary(out, result)

	return result, nil
}

func randomTransfers(options runOptions) []transfer.CreateTransaction {
	random := rand.New(rand.NewSource(options.Seed))
	commands := make([]transfer.CreateTransaction, 0, options.Transfers)

	for len(commands) < options.Transfers {
		from := options.Accounts[random.Intn(len(options.Accounts))]
		to := options.Accounts[random.Intn(len(options.Accounts))]
		if from == to {
			continue
		}

		commands = append(commands, transfer.BuildCreateTransaction(uuid.New(), from, to, random.Int63n(max(1, options.MaxAmount))+1))
	}

	return commands
}

// verifyReplay folds the whole event log into a fresh in-memory repository and compares the balances.
func verifyReplay(ctx context.Context, a *app, expected []transfer.AccountBalance) (int, error) {
	repository, err := memoryengine.NewStateRepository(transfer.NewAccountBalance)
	if err != nil {
		return 0, err
	}

	store, err := memoryengine.NewEventStore()
	if err != nil {
		return 0, err
	}

	replayer, err := transfer.NewService(transfer.NewHandler(), store, repository)
	if err != nil {
		return 0, err
	}

	replayed, err := replayer.Replay(ctx, a.store, transfer.DecodeTransactionCreated)
	if err != nil {
		return replayed, err
	}

	for _, want := range expected {
		got, getErr := repository.Get(ctx, want.AccountID)
		if getErr != nil {
			return replayed, getErr
		}

		if got != want {
			return replayed, fmt.Errorf("replayed balance of %s is %+v, projected %+v", want.AccountID, got, want)
		}
	}

	return replayed, nil
}

func printSummary(out io.Writer, result summary) {
	_, _ = fmt.Fprintf(out, "executed=%d rejected=%d forwarded=%d replayed=%d\n", result.Executed, result.Rejected, result.Forwarded, result.Replayed)

	for _, balance := range result.Balances {
		_, _ = fmt.Fprintf(out, "%-12s index=%-6d balance=%d\n", balance.AccountID, balance.Index, balance.Balance)
	}

	_, _ = fmt.Fprintf(out, "sum=%d\n", result.Sum)
}
