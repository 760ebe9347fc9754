package token

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// OpenInput creates a zero balance for Owner, paid by Actor.
type OpenInput struct {
	Actor  string
	Owner  string
	Symbol Symbol
}

// TransferInput moves funds between two accounts. With RequireOpen set the
// recipient must already hold a balance; otherwise one is created.
type TransferInput struct {
	Actor       string
	From        string
	To          string
	Quantity    Asset
	Memo        string
	RequireOpen bool
}

// BatchEntry is one recipient of a batch transfer.
type BatchEntry struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

// BatchInput credits many recipients from one sender.
type BatchInput struct {
	Actor   string
	From    string
	Symbol  Symbol
	Entries []BatchEntry
	Memo    string
}

// BatchResult reports which entries were credited and which were skipped.
type BatchResult struct {
	TransactionID string
	Currency      string
	From          string
	Credited      []BatchEntry
	Skipped       []BatchEntry
	Total         int64
	FromBalance   int64
	CompletedAt   time.Time
}

// LockedTransferInput transfers from a pool and locks the quantity at the
// recipient, under the counter lock when RuleID is CounterRuleID.
type LockedTransferInput struct {
	Actor    string
	RuleID   uint32
	From     string
	To       string
	Quantity Asset
	Memo     string
}

// UnlockInput releases part of an account's counter lock.
type UnlockInput struct {
	Actor    string
	Account  string
	Quantity Asset
	Memo     string
}

// Open creates a zero balance record for the owner.
func (l *Ledger) Open(ctx context.Context, in OpenInput) error {
	const op = "open"
	if in.Actor == "" {
		return fail(op, ErrUnauthorized, "payer is required")
	}
	if err := l.requireAccount(ctx, op, in.Owner); err != nil {
		return err
	}
	err := l.store.Update(ctx, func(tx Tx) error {
		cur, err := loadCurrency(ctx, tx, op, in.Symbol)
		if err != nil {
			return err
		}
		_, err = tx.Balance(ctx, in.Owner, cur.Symbol.Code)
		if err == nil {
			return fail(op, ErrAccountAlreadyOpen, "%s already holds %s", in.Owner, cur.Symbol.Code)
		}
		if !errors.Is(err, errNotFound) {
			return err
		}
		return tx.InsertBalance(ctx, in.Owner, cur.Symbol.Code, 0, in.Actor)
	})
	if err != nil {
		return err
	}
	l.committed(op, slog.String("currency", in.Symbol.Code), slog.String("owner", in.Owner), slog.String("payer", in.Actor))
	return nil
}

// Close deletes a zero balance record.
func (l *Ledger) Close(ctx context.Context, actor, account string, sym Symbol) error {
	const op = "close"
	if err := authorize(op, actor, account); err != nil {
		return err
	}
	err := l.store.Update(ctx, func(tx Tx) error {
		cur, err := loadCurrency(ctx, tx, op, sym)
		if err != nil {
			return err
		}
		balance, err := tx.Balance(ctx, account, cur.Symbol.Code)
		if errors.Is(err, errNotFound) {
			return fail(op, ErrAccountNotOpen, "%s has no %s balance", account, cur.Symbol.Code)
		}
		if err != nil {
			return err
		}
		if balance != 0 {
			return fail(op, ErrNonZeroBalance, "%s holds %d %s", account, balance, cur.Symbol.Code)
		}
		return tx.DeleteBalance(ctx, account, cur.Symbol.Code)
	})
	if err != nil {
		return err
	}
	l.committed(op, slog.String("currency", sym.Code), slog.String("owner", account))
	return nil
}

// Transfer moves funds out of the sender's available balance.
func (l *Ledger) Transfer(ctx context.Context, in TransferInput) (Receipt, error) {
	const op = "transfer"
	if err := authorize(op, in.Actor, in.From); err != nil {
		return Receipt{}, err
	}
	if in.From == in.To {
		return Receipt{}, fail(op, ErrInvalidInput, "cannot transfer to self")
	}
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
	var receipt Receipt
	err := l.store.Update(ctx, func(tx Tx) error {
		cur, err := loadCurrency(ctx, tx, op, in.Quantity.Symbol)
		if err != nil {
			return err
		}
		receipt, err = move(ctx, tx, op, cur, in.From, in.To, in.Quantity.Amount, !in.RequireOpen, at.Unix())
		return err
	})
	if err != nil {
		return Receipt{}, err
	}
	receipt = stamp(receipt, at)
	l.logReceipt(receipt)
	return receipt, nil
}

func (l *Ledger) logReceipt(r Receipt) {
	l.committed(r.Op,
		slog.String("transaction_id", r.TransactionID),
		slog.String("currency", r.Currency),
		slog.String("from", r.From),
		slog.String("to", r.To),
		slog.Int64("amount", r.Amount),
	)
}

// BatchTransfer credits every acceptable entry and debits their sum from
// the sender in the same transaction. Entries with a non-positive amount, an
// unknown account or no open balance are skipped. The debit gate applies to
// the total, so a failing debit leaves every balance unchanged.
func (l *Ledger) BatchTransfer(ctx context.Context, in BatchInput) (BatchResult, error) {
	const op = "batch_transfer"
	if err := authorize(op, in.Actor, in.From); err != nil {
		return BatchResult{}, err
	}
	if err := checkText(op, "memo", in.Memo); err != nil {
		return BatchResult{}, err
	}

	at := l.now()
	var res BatchResult
	err := l.store.Update(ctx, func(tx Tx) error {
		res = BatchResult{From: in.From}
		cur, err := loadCurrency(ctx, tx, op, in.Symbol)
		if err != nil {
			return err
		}
		code := cur.Symbol.Code
		res.Currency = code
		for _, e := range in.Entries {
			if e.Amount <= 0 {
				res.Skipped = append(res.Skipped, e)
				continue
			}
			ok, err := l.accounts.Exists(ctx, e.Account)
			if err != nil {
				return err
			}
			if !ok {
				res.Skipped = append(res.Skipped, e)
				continue
			}
			balance, err := tx.Balance(ctx, e.Account, code)
			if errors.Is(err, errNotFound) {
				res.Skipped = append(res.Skipped, e)
				continue
			}
			if err != nil {
				return err
			}
			if e.Amount > MaxAmount-res.Total {
				return fail(op, ErrInvalidAmount, "batch total overflows")
			}
			if err := tx.UpdateBalance(ctx, e.Account, code, balance+e.Amount); err != nil {
				return err
			}
			res.Total += e.Amount
			res.Credited = append(res.Credited, e)
		}
		res.FromBalance, err = debit(ctx, tx, op, cur, in.From, res.Total, at.Unix())
		return err
	})
	if err != nil {
		return BatchResult{}, err
	}

	res.TransactionID = uuid.NewString()
	res.CompletedAt = at
	l.committed(op,
		slog.String("transaction_id", res.TransactionID),
		slog.String("currency", res.Currency),
		slog.String("from", in.From),
		slog.Int64("total", res.Total),
		slog.Int("credited", len(res.Credited)),
		slog.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

// LockedTransfer moves funds out of a pool and locks them at the recipient.
// Rule-instance locks merge per rule; a new one is refused once the
// recipient holds MaxRuleLocks of them.
func (l *Ledger) LockedTransfer(ctx context.Context, in LockedTransferInput) (Receipt, error) {
	const op = "locked_transfer"
	if err := authorize(op, in.Actor, in.From); err != nil {
		return Receipt{}, err
	}
	if in.From == in.To {
		return Receipt{}, fail(op, ErrInvalidInput, "cannot transfer to self")
	}
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
	now := at.Unix()
	var receipt Receipt
	err := l.store.Update(ctx, func(tx Tx) error {
		cur, err := loadCurrency(ctx, tx, op, in.Quantity.Symbol)
		if err != nil {
			return err
		}
		code := cur.Symbol.Code
		if _, err := tx.Pool(ctx, code, in.From); errors.Is(err, errNotFound) {
			return fail(op, ErrUnauthorized, "%q is not a %s pool", in.From, code)
		} else if err != nil {
			return err
		}

		var rule Rule
		if in.RuleID != CounterRuleID {
			rule, err = tx.Rule(ctx, code, in.RuleID)
			if errors.Is(err, errNotFound) {
				return fail(op, ErrUnknownRule, "%s rule %d", code, in.RuleID)
			}
			if err != nil {
				return err
			}
		}

		receipt, err = move(ctx, tx, op, cur, in.From, in.To, in.Quantity.Amount, true, now)
		if err != nil {
			return err
		}

		if in.RuleID == CounterRuleID {
			counter, err := tx.CounterLock(ctx, code, in.To)
			if err != nil && !errors.Is(err, errNotFound) {
				return err
			}
			return tx.PutCounterLock(ctx, code, in.To, counter+in.Quantity.Amount)
		}

		key := LockKey(rule.ID, cur.TokenNo)
		locks, err := tx.RuleLocks(ctx, in.To, code)
		if err != nil {
			return err
		}
		for _, lk := range locks {
			if lk.Key == key {
				lk.Quantity += in.Quantity.Amount
				lk.UpdatedAt = now
				return tx.PutRuleLock(ctx, lk)
			}
		}
		if len(locks) >= MaxRuleLocks {
			return fail(op, ErrTooManyLocks, "%s already holds %d %s rule locks", in.To, len(locks), code)
		}
		return tx.PutRuleLock(ctx, RuleLock{
			Key:       key,
			Account:   in.To,
			Currency:  code,
			Quantity:  in.Quantity.Amount,
			RuleID:    rule.ID,
			UpdatedAt: now,
		})
	})
	if err != nil {
		return Receipt{}, err
	}
	receipt = stamp(receipt, at)
	l.logReceipt(receipt)
	return receipt, nil
}

// Unlock reduces an account's counter lock and returns what remains locked.
func (l *Ledger) Unlock(ctx context.Context, in UnlockInput) (int64, error) {
	const op = "unlock"
	if err := checkUnlockQuantity(op, in.Quantity); err != nil {
		return 0, err
	}
	if err := checkText(op, "memo", in.Memo); err != nil {
		return 0, err
	}

	var remaining int64
	err := l.store.Update(ctx, func(tx Tx) error {
		cur, err := loadCurrency(ctx, tx, op, in.Quantity.Symbol)
		if err != nil {
			return err
		}
		if err := authorize(op, in.Actor, cur.Unlocker); err != nil {
			return err
		}
		code := cur.Symbol.Code
		if _, err := tx.Balance(ctx, in.Account, code); errors.Is(err, errNotFound) {
			return fail(op, ErrAccountNotOpen, "%s has no %s balance", in.Account, code)
		} else if err != nil {
			return err
		}
		counter, err := tx.CounterLock(ctx, code, in.Account)
		if errors.Is(err, errNotFound) {
			return fail(op, ErrNoSuchLock, "%s has no %s counter lock", in.Account, code)
		}
		if err != nil {
			return err
		}
		if in.Quantity.Amount > counter {
			return fail(op, ErrOverUnlock, "%d locked, %d requested", counter, in.Quantity.Amount)
		}
		remaining = counter - in.Quantity.Amount
		if remaining == 0 {
			return tx.DeleteCounterLock(ctx, code, in.Account)
		}
		return tx.PutCounterLock(ctx, code, in.Account, remaining)
	})
	if err != nil {
		return 0, err
	}
	l.committed(op,
		slog.String("currency", in.Quantity.Symbol.Code),
		slog.String("account", in.Account),
		slog.Int64("amount", in.Quantity.Amount),
		slog.Int64("remaining", remaining),
	)
	return remaining, nil
}
