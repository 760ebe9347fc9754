package token

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCurrencyCode   = errors.New("invalid currency code")
	ErrCurrencyAlreadyExists = errors.New("currency already exists")
	ErrCurrencyNotFound      = errors.New("currency not found")
	ErrSupplyOverflow        = errors.New("quantity exceeds available supply")

	ErrAccountNotOpen     = errors.New("account not open")
	ErrAccountAlreadyOpen = errors.New("account already open")
	ErrNonZeroBalance     = errors.New("balance is not zero")
	ErrUnknownAccount     = errors.New("account does not exist")

	// ErrInsufficientFunds occurs when balance minus locks minus delegations
	// cannot cover a debit.
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidInput      = errors.New("invalid input")

	ErrReservedID        = errors.New("rule id is reserved")
	ErrMalformedSchedule = errors.New("malformed schedule")
	ErrDuplicateID       = errors.New("rule id already exists")
	ErrUnknownRule       = errors.New("unknown rule")
	ErrTooManyLocks      = errors.New("too many locks")
	ErrNoSuchLock        = errors.New("no such lock")
	ErrOverUnlock        = errors.New("unlock exceeds locked amount")

	ErrManagerMismatch        = errors.New("manager mismatch")
	ErrNotManager             = errors.New("not the delegation manager")
	ErrInsufficientDelegation = errors.New("insufficient delegation")

	ErrPoolNotFound           = errors.New("not a pool account")
	ErrQuotaExhausted         = errors.New("permission quota exhausted")
	ErrRegistryUnset          = errors.New("registry unset")
	ErrRegistryAccountInvalid = errors.New("registry account invalid")
	ErrUnauthorized           = errors.New("unauthorized")
)

// Error carries the failing operation and the offending value next to the
// error kind. errors.Is matches on Kind.
type Error struct {
	Op     string
	Kind   error
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("token: %s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("token: %s: %v: %s", e.Op, e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Kind }

func fail(op string, kind error, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the sentinel kind behind err, or nil when err did not come
// from the ledger.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}
