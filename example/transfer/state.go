package transfer

// AccountBalance is the projected balance of one account, in minor units.
type AccountBalance struct {
	AccountID string `json:"accountId"`
	Index     uint64 `json:"index"`
	Balance   int64  `json:"balance"`
}

// NewAccountBalance returns the zero state of an account.
func NewAccountBalance(accountID string) AccountBalance {
	return AccountBalance{AccountID: accountID}
}

func (b AccountBalance) StateID() string {
	return b.AccountID
}

func (b AccountBalance) StateIndex() uint64 {
	return b.Index
}
