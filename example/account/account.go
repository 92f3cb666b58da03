package account

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/technoly/gormeventstore/aggregate"
)

// Category is the stream name prefix of all account streams
const Category = "account:"

var (
	// ErrInvalidAmount is returned for non positive amounts
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientFunds is returned when a withdrawal exceeds the balance
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// NewID generates a new account ID
func NewID() ID {
	return ID(Category + uuid.NewString())
}

// ID represents an account ID, which is also the name of the account stream
type ID string

// String implements fmt.Stringer
func (id ID) String() string { return string(id) }

// New creates new Account
func New(id ID, holder string) (*Account, error) {
	if strings.TrimSpace(holder) == "" {
		return nil, errors.New("holder must be provided")
	}

	var acc Account

	acc.Rehydrate(&acc)

	acc.Apply(
		NewAccountOpened{
			AccountID: id.String(),
			Holder:    holder,
		},
	)

	return &acc, nil
}

// Account represents an account aggregate
type Account struct {
	aggregate.Root[ID]

	// notice how aggregate has no state until it is needed to make a decision

	Balance int
}

// Deposit money
func (a *Account) Deposit(amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	a.Apply(
		DepositMade{
			Amount: amount,
		},
	)

	return nil
}

// Withdraw money
func (a *Account) Withdraw(amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	if amount > a.Balance {
		return ErrInsufficientFunds
	}

	a.Apply(
		WithdrawalMade{
			Amount: amount,
		},
	)

	return nil
}

// OnNewAccountOpened handler
func (a *Account) OnNewAccountOpened(evt NewAccountOpened) {
	a.SetID(ID(evt.AccountID))
}

// OnDepositMade handler
func (a *Account) OnDepositMade(evt DepositMade) {
	a.Balance += evt.Amount
}

// OnWithdrawalMade handler
func (a *Account) OnWithdrawalMade(evt WithdrawalMade) {
	a.Balance -= evt.Amount
}
