// Package transfer is the money transfer example on top of the eventsourcing engine.
//
// A CreateTransaction command moves an amount from a debit account to a credit account.
// The Handler turns it into one TransactionCreated event, and Project folds that event into the
// AccountBalance of both accounts. Amounts are int64 minor units (cents), so repeated folds are exact.
//
// Business Rules:
//
//	GIVEN: two accounts with any balance
//	WHEN: CreateTransaction(from, to, amount) is received
//	THEN: TransactionCreated is published, from.balance -= amount, to.balance += amount
//	ERROR: InvalidCommand if amount is negative
//	ERROR: InvalidCommand if an account id is empty or both accounts are the same
//	ERROR: InvalidCommand if the transaction id is empty
//	IDEMPOTENCY: a second command with the same transaction id fails with DuplicateEvent
package transfer
