package storage

import (
	"context"

	"github.com/idanmel/skyarena/internal/model"
)

// AccountStore defines the interface for account persistence.
//
// Purchase and Credit are compound read-modify-write operations and must be
// atomic per account: two concurrent purchases of the same aircraft on the
// same account may debit at most once.
type AccountStore interface {
	// CreateAccount stores a new account; returns model.ErrUsernameTaken if
	// the username already exists.
	CreateAccount(ctx context.Context, account *model.Account) error

	// GetAccount returns a copy of the account for the given username.
	GetAccount(ctx context.Context, username string) (*model.Account, error)

	// DeleteAccount removes the account. Deleting a missing account is not
	// an error.
	DeleteAccount(ctx context.Context, username string) error

	// Purchase atomically checks price <= balance and aircraft not already
	// owned, then debits the balance and adds the aircraft.
	Purchase(ctx context.Context, username, aircraftID string, price int64) error

	// Credit atomically adds amount to the account's balance.
	Credit(ctx context.Context, username string, amount int64) error
}
