package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/esaucy/esaucy-go/eventsourcing"
)

// Handler validates CreateTransaction commands and builds the TransactionCreated event.
type Handler struct {
	now func() time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithClock sets the clock that stamps the events.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.now = now
	}
}

// NewHandler creates a Handler with a UTC wall clock unless WithClock is given.
func NewHandler(options ...HandlerOption) *Handler {
	h := &Handler{now: func() time.Time { return time.Now().UTC() }}

	for _, option := range options {
		option(h)
	}

	return h
}

// Handle returns the event for command or an error matching eventsourcing.ErrInvalidCommand.
func (h *Handler) Handle(_ context.Context, command CreateTransaction) (TransactionCreated, error) {
	switch {
	case command.TransactionID == "":
		return TransactionCreated{}, fmt.Errorf("%w: transaction id is empty", eventsourcing.ErrInvalidCommand)

	case command.DebitAccount == "" || command.CreditAccount == "":
		return TransactionCreated{}, fmt.Errorf("%w: account id is empty", eventsourcing.ErrInvalidCommand)

	case command.DebitAccount == command.CreditAccount:
		return TransactionCreated{}, fmt.Errorf("%w: debit and credit account are both %q", eventsourcing.ErrInvalidCommand, command.DebitAccount)

	case command.Amount < 0:
		return TransactionCreated{}, fmt.Errorf("%w: amount %d is negative", eventsourcing.ErrInvalidCommand, command.Amount)
	}

	return BuildTransactionCreated(command, h.now()), nil
}

var _ eventsourcing.CommandHandler[CreateTransaction, TransactionCreated] = (*Handler)(nil)
