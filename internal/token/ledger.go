package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yotta-io/tokenledger/internal/logging"
	"github.com/yotta-io/tokenledger/internal/notification"
)

// Directory answers whether an account identifier resolves to a real account.
type Directory interface {
	Exists(ctx context.Context, account string) (bool, error)
}

// QuotaRegistry reads an issuer's currency-creation permission from the
// registry account. An issuer without a record yields a zero Permission.
type QuotaRegistry interface {
	Permission(ctx context.Context, registry, issuer string) (Permission, error)
}

// Ledger executes token operations. Every operation runs in a single store
// transaction and samples the clock once.
type Ledger struct {
	store    Store
	accounts Directory
	quotas   QuotaRegistry
	notifier notification.Notifier
	logger   *slog.Logger
	owner    string
	clock    func() time.Time
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithNotifier sets the sink receiving create and issue notifications.
func WithNotifier(n notification.Notifier) Option {
	return func(l *Ledger) { l.notifier = n }
}

// WithLogger sets the logger for committed operations.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.clock = now }
}

// WithOwner names the account allowed to set the registry pointer.
func WithOwner(account string) Option {
	return func(l *Ledger) { l.owner = account }
}

// NewLedger builds a ledger over store. accounts and quotas are required.
func NewLedger(store Store, accounts Directory, quotas QuotaRegistry, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if accounts == nil {
		return nil, fmt.Errorf("account directory is required")
	}
	if quotas == nil {
		return nil, fmt.Errorf("quota registry is required")
	}
	l := &Ledger{
		store:    store,
		accounts: accounts,
		quotas:   quotas,
		logger:   logging.Discard(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Ledger) now() time.Time {
	return l.clock().UTC()
}

func (l *Ledger) committed(op string, attrs ...any) {
	l.logger.Info("token operation committed", append([]any{slog.String("op", op)}, attrs...)...)
}

// notify is fire-and-forget: a failing sink never undoes a committed operation.
func (l *Ledger) notify(ctx context.Context, msg notification.Message) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.Send(ctx, msg); err != nil {
		l.logger.Warn("notification failed",
			slog.String("kind", msg.Kind),
			slog.String("currency", msg.Token.Code),
			slog.Any("error", err),
		)
	}
}

func authorize(op, actor, required string) error {
	if actor == "" || actor != required {
		return fail(op, ErrUnauthorized, "%q cannot act for %q", actor, required)
	}
	return nil
}

func checkText(op, field, value string) error {
	if len(value) > maxTextLen {
		return fail(op, ErrInvalidInput, "%s has more than %d bytes", field, maxTextLen)
	}
	return nil
}

func checkQuantity(op string, a Asset) error {
	if a.Amount <= 0 || a.Amount > MaxAmount {
		return fail(op, ErrInvalidAmount, "quantity %s must be positive", a)
	}
	return nil
}

// checkUnlockQuantity admits zero, which unlocks nothing.
func checkUnlockQuantity(op string, a Asset) error {
	if a.Amount < 0 || a.Amount > MaxAmount {
		return fail(op, ErrInvalidAmount, "quantity %s must not be negative", a)
	}
	return nil
}

func (l *Ledger) requireAccount(ctx context.Context, op, account string) error {
	ok, err := l.accounts.Exists(ctx, account)
	if err != nil {
		return err
	}
	if !ok {
		return fail(op, ErrUnknownAccount, "%q", account)
	}
	return nil
}

func loadCurrency(ctx context.Context, tx Tx, op string, sym Symbol) (Currency, error) {
	if !sym.Valid() {
		return Currency{}, fail(op, ErrInvalidCurrencyCode, "%s", sym)
	}
	cur, err := tx.Currency(ctx, sym.Code)
	if errors.Is(err, errNotFound) {
		return Currency{}, fail(op, ErrCurrencyNotFound, "%s", sym.Code)
	}
	if err != nil {
		return Currency{}, err
	}
	if cur.Symbol.Precision != sym.Precision {
		return Currency{}, fail(op, ErrInvalidCurrencyCode, "precision mismatch: %s, currency is %s", sym, cur.Symbol)
	}
	return cur, nil
}

// lockedAmount loads the account's locks and rules and evaluates them at now.
func lockedAmount(ctx context.Context, tx Tx, cur Currency, account string, now int64) (int64, error) {
	code := cur.Symbol.Code
	counter, err := tx.CounterLock(ctx, code, account)
	if err != nil && !errors.Is(err, errNotFound) {
		return 0, err
	}
	locks, err := tx.RuleLocks(ctx, account, code)
	if err != nil {
		return 0, err
	}
	rules := make(map[uint32]Rule)
	for _, lk := range locks {
		if _, seen := rules[lk.RuleID]; seen {
			continue
		}
		r, err := tx.Rule(ctx, code, lk.RuleID)
		if errors.Is(err, errNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		rules[lk.RuleID] = r
	}
	return LockedAmount(cur, counter, locks, rules, now), nil
}

func delegatedOut(ctx context.Context, tx Tx, code, account string) (int64, error) {
	d, err := tx.Delegation(ctx, code, account)
	if errors.Is(err, errNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return d.Quantity, nil
}

// debit is the single gate for funds leaving an account: the balance minus
// locks minus delegated-out quantity must cover amount.
func debit(ctx context.Context, tx Tx, op string, cur Currency, account string, amount, now int64) (int64, error) {
	code := cur.Symbol.Code
	balance, err := tx.Balance(ctx, account, code)
	if errors.Is(err, errNotFound) {
		return 0, fail(op, ErrAccountNotOpen, "%s has no %s balance", account, code)
	}
	if err != nil {
		return 0, err
	}
	locked, err := lockedAmount(ctx, tx, cur, account, now)
	if err != nil {
		return 0, err
	}
	delegated, err := delegatedOut(ctx, tx, code, account)
	if err != nil {
		return 0, err
	}
	if available := balance - locked - delegated; available < amount {
		return 0, fail(op, ErrInsufficientFunds, "%s has %d %s available, needs %d", account, available, code, amount)
	}
	balance -= amount
	if err := tx.UpdateBalance(ctx, account, code, balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// credit adds amount to the account, creating the balance paid by payer when
// create is set.
func credit(ctx context.Context, tx Tx, op, code, account string, amount int64, payer string, create bool) (int64, error) {
	balance, err := tx.Balance(ctx, account, code)
	switch {
	case err == nil:
		balance += amount
		if err := tx.UpdateBalance(ctx, account, code, balance); err != nil {
			return 0, err
		}
		return balance, nil
	case errors.Is(err, errNotFound) && create:
		if err := tx.InsertBalance(ctx, account, code, amount, payer); err != nil {
			return 0, err
		}
		return amount, nil
	case errors.Is(err, errNotFound):
		return 0, fail(op, ErrAccountNotOpen, "%s has no %s balance", account, code)
	default:
		return 0, err
	}
}

// move debits from and credits to inside tx.
func move(ctx context.Context, tx Tx, op string, cur Currency, from, to string, amount int64, create bool, now int64) (Receipt, error) {
	code := cur.Symbol.Code
	fromBalance, err := debit(ctx, tx, op, cur, from, amount, now)
	if err != nil {
		return Receipt{}, err
	}
	toBalance, err := credit(ctx, tx, op, code, to, amount, from, create)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{
		Op:          op,
		Currency:    code,
		From:        from,
		To:          to,
		Amount:      amount,
		FromBalance: fromBalance,
		ToBalance:   toBalance,
	}, nil
}

func stamp(r Receipt, at time.Time) Receipt {
	r.TransactionID = uuid.NewString()
	r.CompletedAt = at
	return r
}

// Registry returns the account of the permission registry.
func (l *Ledger) Registry(ctx context.Context) (string, error) {
	var account string
	err := l.store.View(ctx, func(tx Tx) error {
		reg, err := tx.Registry(ctx)
		if err != nil {
			return err
		}
		var ok bool
		if account, ok = reg.Get(); !ok {
			return fail("registry", ErrRegistryUnset, "")
		}
		return nil
	})
	return account, err
}

// Currency returns the stats record of code.
func (l *Ledger) Currency(ctx context.Context, code string) (Currency, error) {
	var cur Currency
	err := l.store.View(ctx, func(tx Tx) error {
		var err error
		cur, err = tx.Currency(ctx, code)
		if errors.Is(err, errNotFound) {
			return fail("currency", ErrCurrencyNotFound, "%s", code)
		}
		return err
	})
	return cur, err
}

// Balance returns the account's raw balance of code.
func (l *Ledger) Balance(ctx context.Context, account, code string) (Asset, error) {
	var out Asset
	err := l.store.View(ctx, func(tx Tx) error {
		cur, err := tx.Currency(ctx, code)
		if errors.Is(err, errNotFound) {
			return fail("balance", ErrCurrencyNotFound, "%s", code)
		}
		if err != nil {
			return err
		}
		amount, err := tx.Balance(ctx, account, code)
		if errors.Is(err, errNotFound) {
			return fail("balance", ErrAccountNotOpen, "%s has no %s balance", account, code)
		}
		if err != nil {
			return err
		}
		out = Asset{Amount: amount, Symbol: cur.Symbol}
		return nil
	})
	return out, err
}

// Position splits the account's balance into locked, delegated and available
// amounts at the current time.
func (l *Ledger) Position(ctx context.Context, account, code string) (Position, error) {
	const op = "position"
	at := l.now()
	var p Position
	err := l.store.View(ctx, func(tx Tx) error {
		cur, err := tx.Currency(ctx, code)
		if errors.Is(err, errNotFound) {
			return fail(op, ErrCurrencyNotFound, "%s", code)
		}
		if err != nil {
			return err
		}
		balance, err := tx.Balance(ctx, account, code)
		if errors.Is(err, errNotFound) {
			return fail(op, ErrAccountNotOpen, "%s has no %s balance", account, code)
		}
		if err != nil {
			return err
		}
		locked, err := lockedAmount(ctx, tx, cur, account, at.Unix())
		if err != nil {
			return err
		}
		delegated, err := delegatedOut(ctx, tx, code, account)
		if err != nil {
			return err
		}
		p = Position{
			Account:   account,
			Symbol:    cur.Symbol,
			Balance:   balance,
			Locked:    locked,
			Delegated: delegated,
			Available: balance - locked - delegated,
			AsOf:      at,
		}
		return nil
	})
	return p, err
}

// Rule returns a vesting rule of code.
func (l *Ledger) Rule(ctx context.Context, code string, id uint32) (Rule, error) {
	var r Rule
	err := l.store.View(ctx, func(tx Tx) error {
		var err error
		r, err = tx.Rule(ctx, code, id)
		if errors.Is(err, errNotFound) {
			return fail("rule", ErrUnknownRule, "%s rule %d", code, id)
		}
		return err
	})
	return r, err
}

// Locks lists the counter lock and rule-instance locks of an account.
func (l *Ledger) Locks(ctx context.Context, account, code string) (LockSet, error) {
	var set LockSet
	err := l.store.View(ctx, func(tx Tx) error {
		counter, err := tx.CounterLock(ctx, code, account)
		if err != nil && !errors.Is(err, errNotFound) {
			return err
		}
		rules, err := tx.RuleLocks(ctx, account, code)
		if err != nil {
			return err
		}
		set = LockSet{Counter: counter, Rules: rules}
		return nil
	})
	return set, err
}

// Delegation returns the outstanding delegation of owner in code.
func (l *Ledger) Delegation(ctx context.Context, code, owner string) (Delegation, error) {
	var d Delegation
	err := l.store.View(ctx, func(tx Tx) error {
		var err error
		d, err = tx.Delegation(ctx, code, owner)
		if errors.Is(err, errNotFound) {
			return fail("delegation", ErrInsufficientDelegation, "%s has no %s delegation", owner, code)
		}
		return err
	})
	return d, err
}
