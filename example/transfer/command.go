package transfer

import (
	"github.com/google/uuid"
)

// CreateTransaction represents the intent to move Amount minor units from DebitAccount to CreditAccount.
// The TransactionID is the idempotency key of the transfer.
type CreateTransaction struct {
	TransactionID string
	DebitAccount  string
	CreditAccount string
	Amount        int64
}

// CommandID returns the transaction id.
func (c CreateTransaction) CommandID() string {
	return c.TransactionID
}

// BuildCreateTransaction creates a new CreateTransaction command.
func BuildCreateTransaction(transactionID uuid.UUID, debitAccount string, creditAccount string, amount int64) CreateTransaction {
	return CreateTransaction{
		TransactionID: transactionID.String(),
		DebitAccount:  debitAccount,
		CreditAccount: creditAccount,
		Amount:        amount,
	}
}
