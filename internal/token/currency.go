package token

import (
	"context"
	"errors"
	"log/slog"

	"github.com/yotta-io/tokenledger/internal/notification"
)

// CreateInput registers a new currency.
type CreateInput struct {
	Actor     string
	Issuer    string
	MaxSupply Asset
	Name      string
	Memo      string
}

// IssueInput mints new supply to an account.
type IssueInput struct {
	Actor    string
	To       string
	Quantity Asset
	Memo     string
}

// PoolInput registers a pool account for a currency.
type PoolInput struct {
	Actor   string
	Symbol  Symbol
	Account string
	Name    string
	Memo    string
}

// RuleInput defines a vesting rule. Actor must be a pool of the currency.
type RuleInput struct {
	Actor  string
	Symbol Symbol
	Rule   Rule
}

func tokenEvent(cur Currency, name, memo string) notification.TokenEvent {
	return notification.TokenEvent{
		Code:      cur.Symbol.Code,
		Precision: cur.Symbol.Precision,
		Name:      name,
		Memo:      memo,
		Issuer:    cur.Issuer,
		Supply:    cur.Supply,
		MaxSupply: cur.MaxSupply,
		TokenNo:   cur.TokenNo,
	}
}

// SetRegistry stores the registry account. Only the owner may call it and
// the pointer can be written once.
func (l *Ledger) SetRegistry(ctx context.Context, actor, account string) error {
	const op = "set_registry"
	if l.owner == "" {
		return fail(op, ErrUnauthorized, "ledger has no owner")
	}
	if err := authorize(op, actor, l.owner); err != nil {
		return err
	}
	if err := l.requireAccount(ctx, op, account); err != nil {
		return err
	}
	err := l.store.Update(ctx, func(tx Tx) error {
		reg, err := tx.Registry(ctx)
		if err != nil {
			return err
		}
		if current, ok := reg.Get(); ok {
			return fail(op, ErrInvalidInput, "registry already set to %q", current)
		}
		return tx.SetRegistry(ctx, account)
	})
	if err != nil {
		return err
	}
	l.committed(op, slog.String("registry", account))
	return nil
}

// Create registers a currency after checking the issuer's quota with the
// registry. Pool setter and unlocker default to the issuer.
func (l *Ledger) Create(ctx context.Context, in CreateInput) (Currency, error) {
	const op = "create"
	if err := authorize(op, in.Actor, in.Issuer); err != nil {
		return Currency{}, err
	}
	sym := in.MaxSupply.Symbol
	if !sym.Valid() {
		return Currency{}, fail(op, ErrInvalidCurrencyCode, "%s", sym)
	}
	if in.MaxSupply.Amount <= 0 || in.MaxSupply.Amount > MaxAmount {
		return Currency{}, fail(op, ErrInvalidAmount, "max supply %s", in.MaxSupply)
	}
	if err := checkText(op, "name", in.Name); err != nil {
		return Currency{}, err
	}
	if err := checkText(op, "memo", in.Memo); err != nil {
		return Currency{}, err
	}

	var (
		cur      Currency
		registry string
	)
	err := l.store.Update(ctx, func(tx Tx) error {
		_, err := tx.Currency(ctx, sym.Code)
		if err == nil {
			return fail(op, ErrCurrencyAlreadyExists, "%s", sym.Code)
		}
		if !errors.Is(err, errNotFound) {
			return err
		}

		reg, err := tx.Registry(ctx)
		if err != nil {
			return err
		}
		var ok bool
		if registry, ok = reg.Get(); !ok {
			return fail(op, ErrRegistryUnset, "")
		}
		exists, err := l.accounts.Exists(ctx, registry)
		if err != nil {
			return err
		}
		if !exists {
			return fail(op, ErrRegistryAccountInvalid, "%q", registry)
		}

		perm, err := l.quotas.Permission(ctx, registry, in.Issuer)
		if err != nil {
			return err
		}
		if perm.Total != perm.Used+1 {
			return fail(op, ErrQuotaExhausted, "%s used %d of %d", in.Issuer, perm.Used, perm.Total)
		}

		cur = Currency{
			Symbol:     sym,
			MaxSupply:  in.MaxSupply.Amount,
			Issuer:     in.Issuer,
			PoolSetter: in.Issuer,
			Unlocker:   in.Issuer,
			TokenNo:    perm.NextTokenNo,
		}
		return tx.InsertCurrency(ctx, cur)
	})
	if err != nil {
		return Currency{}, err
	}

	l.committed(op,
		slog.String("currency", sym.Code),
		slog.String("issuer", in.Issuer),
		slog.Int64("max_supply", cur.MaxSupply),
		slog.Uint64("token_no", uint64(cur.TokenNo)),
	)
	l.notify(ctx, notification.Message{
		Kind:        notification.KindCurrencyCreated,
		Destination: registry,
		Body:        "create token",
		Token:       tokenEvent(cur, in.Name, in.Memo),
	})
	return cur, nil
}

// Issue mints quantity to an account, opening its balance when needed.
func (l *Ledger) Issue(ctx context.Context, in IssueInput) (Receipt, error) {
	const op = "issue"
	if err := checkQuantity(op, in.Quantity); err != nil {
		return Receipt{}, err
	}
	if err := checkText(op, "memo", in.Memo); err != nil {
		return Receipt{}, err
	}
	if err := l.requireAccount(ctx, op, in.To); err != nil {
		return Receipt{}, err
	}

	at := l.now()
	var (
		receipt  Receipt
		cur      Currency
		registry string
	)
	err := l.store.Update(ctx, func(tx Tx) error {
		var err error
		cur, err = loadCurrency(ctx, tx, op, in.Quantity.Symbol)
		if err != nil {
			return err
		}
		if err := authorize(op, in.Actor, cur.Issuer); err != nil {
			return err
		}
		amount := in.Quantity.Amount
		if amount > cur.MaxSupply-cur.Supply {
			return fail(op, ErrSupplyOverflow, "%d of %d %s left", cur.MaxSupply-cur.Supply, cur.MaxSupply, cur.Symbol.Code)
		}
		cur.Supply += amount
		if err := tx.UpdateCurrency(ctx, cur); err != nil {
			return err
		}
		balance, err := credit(ctx, tx, op, cur.Symbol.Code, in.To, amount, cur.Issuer, true)
		if err != nil {
			return err
		}
		reg, err := tx.Registry(ctx)
		if err != nil {
			return err
		}
		registry, _ = reg.Get()
		receipt = Receipt{
			Op:        op,
			Currency:  cur.Symbol.Code,
			From:      cur.Issuer,
			To:        in.To,
			Amount:    amount,
			ToBalance: balance,
		}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}

	receipt = stamp(receipt, at)
	l.committed(op,
		slog.String("transaction_id", receipt.TransactionID),
		slog.String("currency", receipt.Currency),
		slog.String("to", receipt.To),
		slog.Int64("amount", receipt.Amount),
		slog.Int64("supply", cur.Supply),
	)
	if registry != "" {
		l.notify(ctx, notification.Message{
			Kind:        notification.KindSupplyUpdated,
			Destination: registry,
			Body:        "update supply",
			Token:       tokenEvent(cur, "", ""),
		})
	}
	return receipt, nil
}

// SetExTime fixes the vesting epoch of a currency. It can be set once.
func (l *Ledger) SetExTime(ctx context.Context, actor string, sym Symbol, epoch int64) error {
	const op = "set_extime"
	if epoch < 0 {
		return fail(op, ErrInvalidInput, "epoch %d is negative", epoch)
	}
	err := l.store.Update(ctx, func(tx Tx) error {
		cur, err := loadCurrency(ctx, tx, op, sym)
		if err != nil {
			return err
		}
		if err := authorize(op, actor, cur.Issuer); err != nil {
			return err
		}
		if err := cur.ExTime.Set(epoch); err != nil {
			return fail(op, ErrInvalidInput, "vesting epoch of %s already set", sym.Code)
		}
		return tx.UpdateCurrency(ctx, cur)
	})
	if err != nil {
		return err
	}
	l.committed(op, slog.String("currency", sym.Code), slog.Int64("extime", epoch))
	return nil
}

// AddPool registers a pool account. Only the currency's pool setter may call it.
func (l *Ledger) AddPool(ctx context.Context, in PoolInput) (Pool, error) {
	const op = "add_pool"
	if err := checkText(op, "name", in.Name); err != nil {
		return Pool{}, err
	}
	if err := checkText(op, "memo", in.Memo); err != nil {
		return Pool{}, err
	}
	if err := l.requireAccount(ctx, op, in.Account); err != nil {
		return Pool{}, err
	}
	pool := Pool{Account: in.Account, Name: in.Name, Memo: in.Memo}
	err := l.store.Update(ctx, func(tx Tx) error {
		cur, err := loadCurrency(ctx, tx, op, in.Symbol)
		if err != nil {
			return err
		}
		if err := authorize(op, in.Actor, cur.PoolSetter); err != nil {
			return err
		}
		_, err = tx.Pool(ctx, cur.Symbol.Code, in.Account)
		if err == nil {
			return fail(op, ErrInvalidInput, "%s is already a %s pool", in.Account, cur.Symbol.Code)
		}
		if !errors.Is(err, errNotFound) {
			return err
		}
		return tx.InsertPool(ctx, cur.Symbol.Code, pool)
	})
	if err != nil {
		return Pool{}, err
	}
	l.committed(op, slog.String("currency", in.Symbol.Code), slog.String("pool", in.Account))
	return pool, nil
}

// RemovePool unregisters a pool account. Rules and locks it created remain.
func (l *Ledger) RemovePool(ctx context.Context, actor string, sym Symbol, account string) error {
	const op = "remove_pool"
	err := l.store.Update(ctx, func(tx Tx) error {
		cur, err := loadCurrency(ctx, tx, op, sym)
		if err != nil {
			return err
		}
		if err := authorize(op, actor, cur.PoolSetter); err != nil {
			return err
		}
		_, err = tx.Pool(ctx, cur.Symbol.Code, account)
		if errors.Is(err, errNotFound) {
			return fail(op, ErrPoolNotFound, "%s", account)
		}
		if err != nil {
			return err
		}
		return tx.DeletePool(ctx, cur.Symbol.Code, account)
	})
	if err != nil {
		return err
	}
	l.committed(op, slog.String("currency", sym.Code), slog.String("pool", account))
	return nil
}

// Pool returns the pool record of account in code.
func (l *Ledger) Pool(ctx context.Context, code, account string) (Pool, error) {
	var p Pool
	err := l.store.View(ctx, func(tx Tx) error {
		var err error
		p, err = tx.Pool(ctx, code, account)
		if errors.Is(err, errNotFound) {
			return fail("pool", ErrPoolNotFound, "%s", account)
		}
		return err
	})
	return p, err
}

// AddRule stores a vesting rule under the currency. Rules are immutable.
func (l *Ledger) AddRule(ctx context.Context, in RuleInput) (Rule, error) {
	const op = "add_rule"
	err := l.store.Update(ctx, func(tx Tx) error {
		cur, err := loadCurrency(ctx, tx, op, in.Symbol)
		if err != nil {
			return err
		}
		_, err = tx.Pool(ctx, cur.Symbol.Code, in.Actor)
		if errors.Is(err, errNotFound) {
			return fail(op, ErrUnauthorized, "%q is not a %s pool", in.Actor, cur.Symbol.Code)
		}
		if err != nil {
			return err
		}
		if err := in.Rule.Validate(); err != nil {
			return err
		}
		_, err = tx.Rule(ctx, cur.Symbol.Code, in.Rule.ID)
		if err == nil {
			return fail(op, ErrDuplicateID, "%s rule %d", cur.Symbol.Code, in.Rule.ID)
		}
		if !errors.Is(err, errNotFound) {
			return err
		}
		return tx.InsertRule(ctx, cur.Symbol.Code, in.Rule)
	})
	if err != nil {
		return Rule{}, err
	}
	l.committed(op,
		slog.String("currency", in.Symbol.Code),
		slog.Uint64("rule_id", uint64(in.Rule.ID)),
		slog.String("mode", in.Rule.Mode().String()),
	)
	return in.Rule, nil
}
