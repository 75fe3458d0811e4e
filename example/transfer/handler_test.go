package transfer_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esaucy/esaucy-go/eventsourcing"
	"github.com/esaucy/esaucy-go/example/transfer"
)

func Test_Handler_Handle_BuildsEvent(t *testing.T) {
	// arrange
	handler := transfer.NewHandler(transfer.WithClock(func() time.Time { return fakeClock }))
	command := transfer.BuildCreateTransaction(uuid.New(), "A", "B", 1234)

	// act
	event, err := handler.Handle(context.Background(), command)

	// assert
	require.NoError(t, err)
	assert.Equal(t, "transaction-"+command.TransactionID, event.EventID())
	assert.Equal(t, transfer.EventNameTransactionCreated, event.EventName())
	assert.Equal(t, 1, event.EventVersion())
	assert.Equal(t, fakeClock, event.OccurredAt())
	assert.Equal(t, command.TransactionID, event.TransactionID)
	assert.Equal(t, "A", event.DebitAccount)
	assert.Equal(t, "B", event.CreditAccount)
	assert.Equal(t, int64(1234), event.Amount)
}

func Test_Handler_Handle_IsDeterministicPerTransaction(t *testing.T) {
	handler := transfer.NewHandler(transfer.WithClock(func() time.Time { return fakeClock }))
	command := transfer.BuildCreateTransaction(uuid.New(), "A", "B", 5)

	first, firstErr := handler.Handle(context.Background(), command)
	second, secondErr := handler.Handle(context.Background(), command)

	require.NoError(t, firstErr)
	require.NoError(t, secondErr)
	assert.Equal(t, first, second)
}

func Test_Handler_Handle_RejectsInvalidCommands(t *testing.T) {
	testCases := map[string]transfer.CreateTransaction{
		"negative amount":     {TransactionID: "tx-1", DebitAccount: "A", CreditAccount: "B", Amount: -1},
		"empty debit":         {TransactionID: "tx-1", CreditAccount: "B", Amount: 1},
		"empty credit":        {TransactionID: "tx-1", DebitAccount: "A", Amount: 1},
		"same account":        {TransactionID: "tx-1", DebitAccount: "A", CreditAccount: "A", Amount: 1},
		"empty transactionID": {DebitAccount: "A", CreditAccount: "B", Amount: 1},
	}

	handler := transfer.NewHandler()

	for name, command := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := handler.Handle(context.Background(), command)

			assert.ErrorIs(t, err, eventsourcing.ErrInvalidCommand)
		})
	}
}

func Test_Project_MovesAmountAndAdvancesIndex(t *testing.T) {
	event := transfer.BuildTransactionCreated(transfer.CreateTransaction{TransactionID: "tx-1", DebitAccount: "A", CreditAccount: "B", Amount: 7}, fakeClock)

	debit := transfer.Project(transfer.AccountBalance{AccountID: "A", Index: 3, Balance: 10}, event)
	credit := transfer.Project(transfer.NewAccountBalance("B"), event)

	assert.Equal(t, transfer.AccountBalance{AccountID: "A", Index: 4, Balance: 3}, debit)
	assert.Equal(t, transfer.AccountBalance{AccountID: "B", Index: 1, Balance: 7}, credit)
}

func Test_Project_LeavesUnrelatedAccountUnchanged(t *testing.T) {
	event := transfer.BuildTransactionCreated(transfer.CreateTransaction{TransactionID: "tx-1", DebitAccount: "A", CreditAccount: "B", Amount: 7}, fakeClock)
	unrelated := transfer.AccountBalance{AccountID: "C", Index: 2, Balance: 99}

	assert.Equal(t, unrelated, transfer.Project(unrelated, event))
}

func Test_Resolve_ReturnsDebitThenCredit(t *testing.T) {
	event := transfer.BuildTransactionCreated(transfer.CreateTransaction{TransactionID: "tx-1", DebitAccount: "A", CreditAccount: "B"}, fakeClock)

	assert.Equal(t, []string{"A", "B"}, transfer.Resolve(event))
}

func Test_DecodeTransactionCreated_RoundTrip(t *testing.T) {
	// arrange
	event := transfer.BuildTransactionCreated(transfer.CreateTransaction{TransactionID: "tx-1", DebitAccount: "A", CreditAccount: "B", Amount: 42}, fakeClock)
	stored, err := eventsourcing.StoredEventFrom(context.Background(), event)
	require.NoError(t, err)

	// act
	decoded, err := transfer.DecodeTransactionCreated(stored)

	// assert
	require.NoError(t, err)
	assert.Equal(t, event, decoded)
	assert.JSONEq(t,
		`{"id":"transaction-tx-1","eventName":"TransactionCreated","version":1,"timestamp":"2023-11-14T22:13:20Z","transactionId":"tx-1","from":"A","to":"B","amount":42}`,
		string(stored.PayloadJSON))
}
