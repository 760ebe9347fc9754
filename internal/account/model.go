package account

import "time"

// Account is a named ledger participant. Names are 1-12 characters from
// a-z, 1-5 and '.'.
type Account struct {
	ID           string
	Name         string
	SecretHash   []byte
	TokenVersion int
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Credentials request structure.
type Credentials struct {
	Name   string
	Secret string
}
