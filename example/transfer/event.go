package transfer

import (
	"time"

	"github.com/esaucy/esaucy-go/eventsourcing"
)

const (
	// EventNameTransactionCreated is the stored name of TransactionCreated.
	EventNameTransactionCreated = "TransactionCreated"

	eventIDPrefix            = "transaction"
	transactionCreatedSchema = 1
)

// TransactionCreated records that Amount minor units moved from DebitAccount to CreditAccount.
type TransactionCreated struct {
	eventsourcing.EventHeader
	TransactionID string `json:"transactionId"`
	DebitAccount  string `json:"from"`
	CreditAccount string `json:"to"`
	Amount        int64  `json:"amount"`
}

// BuildTransactionCreated creates the event for command. Its id is derived from the transaction id.
func BuildTransactionCreated(command CreateTransaction, occurredAt time.Time) TransactionCreated {
	return TransactionCreated{
		EventHeader: eventsourcing.BuildEventHeader(
			eventsourcing.DeriveEventID(eventIDPrefix, command.TransactionID),
			EventNameTransactionCreated,
			transactionCreatedSchema,
			occurredAt,
		),
		TransactionID: command.TransactionID,
		DebitAccount:  command.DebitAccount,
		CreditAccount: command.CreditAccount,
		Amount:        command.Amount,
	}
}

// DecodeTransactionCreated rebuilds a TransactionCreated from its stored form, used for replay.
var DecodeTransactionCreated = eventsourcing.DecodeJSON[TransactionCreated](EventNameTransactionCreated)
