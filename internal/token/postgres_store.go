package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS token_settings (
    name  TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS token_currencies (
    code        TEXT PRIMARY KEY,
    precision   SMALLINT NOT NULL,
    supply      BIGINT NOT NULL DEFAULT 0,
    max_supply  BIGINT NOT NULL,
    issuer      TEXT NOT NULL,
    pool_setter TEXT NOT NULL,
    unlocker    TEXT NOT NULL,
    ex_time     BIGINT,
    token_no    BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS token_balances (
    account TEXT NOT NULL,
    code    TEXT NOT NULL,
    amount  BIGINT NOT NULL,
    payer   TEXT NOT NULL,
    PRIMARY KEY (account, code)
);

CREATE TABLE IF NOT EXISTS token_pools (
    code    TEXT NOT NULL,
    account TEXT NOT NULL,
    name    TEXT NOT NULL DEFAULT '',
    memo    TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (code, account)
);

CREATE TABLE IF NOT EXISTS token_rules (
    code        TEXT NOT NULL,
    rule_id     BIGINT NOT NULL,
    times       BIGINT[] NOT NULL,
    pcts        BIGINT[] NOT NULL,
    base        BIGINT NOT NULL,
    period      BIGINT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (code, rule_id)
);

CREATE TABLE IF NOT EXISTS token_counter_locks (
    code    TEXT NOT NULL,
    account TEXT NOT NULL,
    amount  BIGINT NOT NULL,
    PRIMARY KEY (code, account)
);

CREATE TABLE IF NOT EXISTS token_rule_locks (
    account    TEXT NOT NULL,
    lock_key   BIGINT NOT NULL,
    code       TEXT NOT NULL,
    quantity   BIGINT NOT NULL,
    rule_id    BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    PRIMARY KEY (account, lock_key)
);

CREATE INDEX IF NOT EXISTS idx_token_rule_locks_code ON token_rule_locks (account, code);

CREATE TABLE IF NOT EXISTS token_delegations (
    code     TEXT NOT NULL,
    owner    TEXT NOT NULL,
    manager  TEXT NOT NULL,
    quantity BIGINT NOT NULL,
    PRIMARY KEY (code, owner)
);
`

const registrySetting = "registry"

// PostgresStore persists the ledger in PostgreSQL. Each Update runs in one
// serializable transaction.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the ledger tables when they are missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("token: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
}

func (s *PostgresStore) View(ctx context.Context, fn func(tx Tx) error) error {
	return s.run(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, fn)
}

func (s *PostgresStore) run(ctx context.Context, opts pgx.TxOptions, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTx struct {
	tx pgx.Tx
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errNotFound
	}
	return err
}

func expectRow(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errNotFound
	}
	return nil
}

func (t *pgTx) Registry(ctx context.Context) (Once[string], error) {
	var account string
	err := t.tx.QueryRow(ctx, `SELECT value FROM token_settings WHERE name = $1`, registrySetting).Scan(&account)
	if errors.Is(err, pgx.ErrNoRows) {
		return Once[string]{}, nil
	}
	if err != nil {
		return Once[string]{}, err
	}
	return OnceOf(account), nil
}

func (t *pgTx) SetRegistry(ctx context.Context, account string) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO token_settings (name, value) VALUES ($1, $2)`, registrySetting, account)
	return err
}

func (t *pgTx) Currency(ctx context.Context, code string) (Currency, error) {
	const query = `
        SELECT code, precision, supply, max_supply, issuer, pool_setter, unlocker, ex_time, token_no
        FROM token_currencies WHERE code = $1`
	var (
		c         Currency
		precision int16
		exTime    *int64
		tokenNo   int64
	)
	err := t.tx.QueryRow(ctx, query, code).Scan(&c.Symbol.Code, &precision, &c.Supply, &c.MaxSupply,
		&c.Issuer, &c.PoolSetter, &c.Unlocker, &exTime, &tokenNo)
	if err != nil {
		return Currency{}, notFound(err)
	}
	c.Symbol.Precision = uint8(precision)
	c.TokenNo = uint32(tokenNo)
	if exTime != nil {
		c.ExTime = OnceOf(*exTime)
	}
	return c, nil
}

func exTimeArg(c Currency) *int64 {
	if v, ok := c.ExTime.Get(); ok {
		return &v
	}
	return nil
}

func (t *pgTx) InsertCurrency(ctx context.Context, c Currency) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO token_currencies
        (code, precision, supply, max_supply, issuer, pool_setter, unlocker, ex_time, token_no)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.Symbol.Code, int16(c.Symbol.Precision), c.Supply, c.MaxSupply, c.Issuer, c.PoolSetter, c.Unlocker,
		exTimeArg(c), int64(c.TokenNo))
	return err
}

func (t *pgTx) UpdateCurrency(ctx context.Context, c Currency) error {
	return expectRow(t.tx.Exec(ctx, `UPDATE token_currencies
        SET supply = $2, max_supply = $3, issuer = $4, pool_setter = $5, unlocker = $6, ex_time = $7
        WHERE code = $1`,
		c.Symbol.Code, c.Supply, c.MaxSupply, c.Issuer, c.PoolSetter, c.Unlocker, exTimeArg(c)))
}

func (t *pgTx) Balance(ctx context.Context, account, code string) (int64, error) {
	var amount int64
	err := t.tx.QueryRow(ctx, `SELECT amount FROM token_balances WHERE account = $1 AND code = $2`,
		account, code).Scan(&amount)
	if err != nil {
		return 0, notFound(err)
	}
	return amount, nil
}

func (t *pgTx) InsertBalance(ctx context.Context, account, code string, amount int64, payer string) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO token_balances (account, code, amount, payer) VALUES ($1, $2, $3, $4)`,
		account, code, amount, payer)
	return err
}

func (t *pgTx) UpdateBalance(ctx context.Context, account, code string, amount int64) error {
	return expectRow(t.tx.Exec(ctx, `UPDATE token_balances SET amount = $3 WHERE account = $1 AND code = $2`,
		account, code, amount))
}

func (t *pgTx) DeleteBalance(ctx context.Context, account, code string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM token_balances WHERE account = $1 AND code = $2`, account, code)
	return err
}

func (t *pgTx) Pool(ctx context.Context, code, account string) (Pool, error) {
	p := Pool{Account: account}
	err := t.tx.QueryRow(ctx, `SELECT name, memo FROM token_pools WHERE code = $1 AND account = $2`,
		code, account).Scan(&p.Name, &p.Memo)
	if err != nil {
		return Pool{}, notFound(err)
	}
	return p, nil
}

func (t *pgTx) InsertPool(ctx context.Context, code string, p Pool) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO token_pools (code, account, name, memo) VALUES ($1, $2, $3, $4)`,
		code, p.Account, p.Name, p.Memo)
	return err
}

func (t *pgTx) DeletePool(ctx context.Context, code, account string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM token_pools WHERE code = $1 AND account = $2`, code, account)
	return err
}

func (t *pgTx) Rule(ctx context.Context, code string, id uint32) (Rule, error) {
	var (
		r            Rule
		pcts         []int64
		base, period int64
	)
	err := t.tx.QueryRow(ctx, `SELECT times, pcts, base, period, description
        FROM token_rules WHERE code = $1 AND rule_id = $2`, code, int64(id)).
		Scan(&r.Times, &pcts, &base, &period, &r.Description)
	if err != nil {
		return Rule{}, notFound(err)
	}
	r.ID = id
	r.Base = uint32(base)
	r.Period = uint32(period)
	r.Pcts = make([]uint32, len(pcts))
	for i, p := range pcts {
		r.Pcts[i] = uint32(p)
	}
	return r, nil
}

func (t *pgTx) InsertRule(ctx context.Context, code string, r Rule) error {
	pcts := make([]int64, len(r.Pcts))
	for i, p := range r.Pcts {
		pcts[i] = int64(p)
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO token_rules (code, rule_id, times, pcts, base, period, description)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		code, int64(r.ID), r.Times, pcts, int64(r.Base), int64(r.Period), r.Description)
	return err
}

func (t *pgTx) CounterLock(ctx context.Context, code, account string) (int64, error) {
	var amount int64
	err := t.tx.QueryRow(ctx, `SELECT amount FROM token_counter_locks WHERE code = $1 AND account = $2`,
		code, account).Scan(&amount)
	if err != nil {
		return 0, notFound(err)
	}
	return amount, nil
}

func (t *pgTx) PutCounterLock(ctx context.Context, code, account string, amount int64) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO token_counter_locks (code, account, amount) VALUES ($1, $2, $3)
        ON CONFLICT (code, account) DO UPDATE SET amount = EXCLUDED.amount`, code, account, amount)
	return err
}

func (t *pgTx) DeleteCounterLock(ctx context.Context, code, account string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM token_counter_locks WHERE code = $1 AND account = $2`, code, account)
	return err
}

func (t *pgTx) RuleLocks(ctx context.Context, account, code string) ([]RuleLock, error) {
	rows, err := t.tx.Query(ctx, `SELECT lock_key, quantity, rule_id, updated_at
        FROM token_rule_locks WHERE account = $1 AND code = $2 ORDER BY lock_key`, account, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locks []RuleLock
	for rows.Next() {
		var key, ruleID int64
		l := RuleLock{Account: account, Currency: code}
		if err := rows.Scan(&key, &l.Quantity, &ruleID, &l.UpdatedAt); err != nil {
			return nil, err
		}
		l.Key = uint64(key)
		l.RuleID = uint32(ruleID)
		locks = append(locks, l)
	}
	return locks, rows.Err()
}

func (t *pgTx) PutRuleLock(ctx context.Context, l RuleLock) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO token_rule_locks (account, lock_key, code, quantity, rule_id, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (account, lock_key) DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at`,
		l.Account, int64(l.Key), l.Currency, l.Quantity, int64(l.RuleID), l.UpdatedAt)
	return err
}

func (t *pgTx) Delegation(ctx context.Context, code, owner string) (Delegation, error) {
	d := Delegation{Owner: owner}
	err := t.tx.QueryRow(ctx, `SELECT manager, quantity FROM token_delegations WHERE code = $1 AND owner = $2`,
		code, owner).Scan(&d.Manager, &d.Quantity)
	if err != nil {
		return Delegation{}, notFound(err)
	}
	return d, nil
}

func (t *pgTx) PutDelegation(ctx context.Context, code string, d Delegation) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO token_delegations (code, owner, manager, quantity) VALUES ($1, $2, $3, $4)
        ON CONFLICT (code, owner) DO UPDATE SET manager = EXCLUDED.manager, quantity = EXCLUDED.quantity`,
		code, d.Owner, d.Manager, d.Quantity)
	return err
}

func (t *pgTx) DeleteDelegation(ctx context.Context, code, owner string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM token_delegations WHERE code = $1 AND owner = $2`, code, owner)
	return err
}
