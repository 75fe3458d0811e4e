package transfer

// Project folds event into state.
// The debit account loses the amount, the credit account gains it, any other account is returned unchanged.
func Project(state AccountBalance, event TransactionCreated) AccountBalance {
	switch state.AccountID {
	case event.DebitAccount:
		state.Balance -= event.Amount
	case event.CreditAccount:
		state.Balance += event.Amount
	default:
		return state
	}

	state.Index++

	return state
}

// Resolve returns the accounts a TransactionCreated touches, debit account first.
func Resolve(event TransactionCreated) []string {
	return []string{event.DebitAccount, event.CreditAccount}
}
