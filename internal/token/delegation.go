package token

import (
	"context"
	"errors"
	"log/slog"
)

// ApproveInput grants Manager the right to move Quantity out of Owner's balance.
type ApproveInput struct {
	Actor    string
	Owner    string
	Manager  string
	Quantity Asset
}

// DelegatedTransferInput is a transfer executed by a delegation's manager.
type DelegatedTransferInput struct {
	Actor       string
	From        string
	To          string
	Quantity    Asset
	Memo        string
	RequireOpen bool
}

// Approve creates or tops up the owner's delegation. An existing delegation
// can only grow for the same manager.
func (l *Ledger) Approve(ctx context.Context, in ApproveInput) (Delegation, error) {
	const op = "approve"
	if err := authorize(op, in.Actor, in.Owner); err != nil {
		return Delegation{}, err
	}
	if err := checkQuantity(op, in.Quantity); err != nil {
		return Delegation{}, err
	}
	if err := l.requireAccount(ctx, op, in.Manager); err != nil {
		return Delegation{}, err
	}

	now := l.now().Unix()
	var out Delegation
	err := l.store.Update(ctx, func(tx Tx) error {
		cur, err := loadCurrency(ctx, tx, op, in.Quantity.Symbol)
		if err != nil {
			return err
		}
		code := cur.Symbol.Code
		balance, err := tx.Balance(ctx, in.Owner, code)
		if errors.Is(err, errNotFound) {
			return fail(op, ErrAccountNotOpen, "%s has no %s balance", in.Owner, code)
		}
		if err != nil {
			return err
		}
		locked, err := lockedAmount(ctx, tx, cur, in.Owner, now)
		if err != nil {
			return err
		}

		d, err := tx.Delegation(ctx, code, in.Owner)
		switch {
		case errors.Is(err, errNotFound):
			d = Delegation{Owner: in.Owner, Manager: in.Manager}
		case err != nil:
			return err
		case d.Manager != in.Manager:
			return fail(op, ErrManagerMismatch, "%s delegates %s to %q, not %q", in.Owner, code, d.Manager, in.Manager)
		}
		if movable := balance - locked - d.Quantity; movable < in.Quantity.Amount {
			return fail(op, ErrInsufficientFunds, "%s has %d %s available, needs %d", in.Owner, movable, code, in.Quantity.Amount)
		}
		d.Quantity += in.Quantity.Amount
		out = d
		return tx.PutDelegation(ctx, code, d)
	})
	if err != nil {
		return Delegation{}, err
	}
	l.committed(op,
		slog.String("currency", in.Quantity.Symbol.Code),
		slog.String("owner", out.Owner),
		slog.String("manager", out.Manager),
		slog.Int64("delegated", out.Quantity),
	)
	return out, nil
}

// DelegatedTransfer lets the manager move delegated funds out of From. The
// delegation is consumed before the debit so the delegated quantity itself
// does not block the movement it authorizes.
func (l *Ledger) DelegatedTransfer(ctx context.Context, in DelegatedTransferInput) (Receipt, error) {
	const op = "delegated_transfer"
	if in.Actor == "" {
		return Receipt{}, fail(op, ErrUnauthorized, "manager is required")
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
		code := cur.Symbol.Code
		d, err := tx.Delegation(ctx, code, in.From)
		if errors.Is(err, errNotFound) {
			return fail(op, ErrInsufficientDelegation, "%s has no %s delegation", in.From, code)
		}
		if err != nil {
			return err
		}
		if d.Manager != in.Actor {
			return fail(op, ErrNotManager, "%q is not the manager of %s's %s delegation", in.Actor, in.From, code)
		}
		if d.Quantity < in.Quantity.Amount {
			return fail(op, ErrInsufficientDelegation, "%d delegated, %d requested", d.Quantity, in.Quantity.Amount)
		}

		// the debit gate still counts the whole delegation as reserved
		receipt, err = move(ctx, tx, op, cur, in.From, in.To, in.Quantity.Amount, !in.RequireOpen, at.Unix())
		if err != nil {
			return err
		}

		d.Quantity -= in.Quantity.Amount
		if d.Quantity == 0 {
			return tx.DeleteDelegation(ctx, code, in.From)
		}
		return tx.PutDelegation(ctx, code, d)
	})
	if err != nil {
		return Receipt{}, err
	}
	receipt = stamp(receipt, at)
	l.logReceipt(receipt)
	return receipt, nil
}
