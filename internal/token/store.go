package token

import (
	"context"
	"errors"
)

// errNotFound is returned by Tx lookups for absent records; the ledger maps it
// to the kind that fits the operation.
var errNotFound = errors.New("record not found")

// Store runs ledger operations as all-or-nothing transactions. Writes made
// through the Tx passed to Update are discarded if fn returns an error.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Tx exposes the ledger records scoped by currency and account.
type Tx interface {
	Registry(ctx context.Context) (Once[string], error)
	SetRegistry(ctx context.Context, account string) error

	Currency(ctx context.Context, code string) (Currency, error)
	InsertCurrency(ctx context.Context, c Currency) error
	UpdateCurrency(ctx context.Context, c Currency) error

	Balance(ctx context.Context, account, code string) (int64, error)
	InsertBalance(ctx context.Context, account, code string, amount int64, payer string) error
	UpdateBalance(ctx context.Context, account, code string, amount int64) error
	DeleteBalance(ctx context.Context, account, code string) error

	Pool(ctx context.Context, code, account string) (Pool, error)
	InsertPool(ctx context.Context, code string, p Pool) error
	DeletePool(ctx context.Context, code, account string) error

	Rule(ctx context.Context, code string, id uint32) (Rule, error)
	InsertRule(ctx context.Context, code string, r Rule) error

	CounterLock(ctx context.Context, code, account string) (int64, error)
	PutCounterLock(ctx context.Context, code, account string, amount int64) error
	DeleteCounterLock(ctx context.Context, code, account string) error

	// RuleLocks returns the account's rule-instance locks in code ordered by key.
	RuleLocks(ctx context.Context, account, code string) ([]RuleLock, error)
	PutRuleLock(ctx context.Context, l RuleLock) error

	Delegation(ctx context.Context, code, owner string) (Delegation, error)
	PutDelegation(ctx context.Context, code string, d Delegation) error
	DeleteDelegation(ctx context.Context, code, owner string) error
}
