package account

// NewAccountOpened domain event indicates that new
// account has been opened
type NewAccountOpened struct {
	AccountID string
	Holder    string
}

// DepositMade domain event indicates that deposit has been made
type DepositMade struct {
	Amount int
}

// WithdrawalMade domain event indicates that a withdrawal has been made
type WithdrawalMade struct {
	Amount int
}

// Events lists all account events, for registering them with an encoder
var Events = []any{
	NewAccountOpened{},
	DepositMade{},
	WithdrawalMade{},
}
