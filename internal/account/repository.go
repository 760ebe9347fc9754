package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists accounts.
type Repository interface {
	Create(ctx context.Context, acc Account) error
	FindByName(ctx context.Context, name string) (Account, error)
	UpdateLastLogin(ctx context.Context, name string, at time.Time) error
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id            UUID PRIMARY KEY,
    name          TEXT NOT NULL UNIQUE,
    secret_hash   BYTEA NOT NULL,
    token_version INTEGER NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL,
    last_login    TIMESTAMPTZ
);
`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed account repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the accounts table.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schema)
	return err
}

// Create inserts a new account.
func (r *PostgresRepository) Create(ctx context.Context, acc Account) error {
	id, err := uuid.Parse(acc.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO accounts (id, name, secret_hash, token_version, created_at)
        VALUES ($1, $2, $3, $4, $5)`, id, acc.Name, acc.SecretHash, acc.TokenVersion, acc.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrNameTaken
	}
	return err
}

// FindByName fetches an account by name.
func (r *PostgresRepository) FindByName(ctx context.Context, name string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT id, name, secret_hash, token_version, created_at, last_login
        FROM accounts WHERE name = $1`, name)
	var (
		id        uuid.UUID
		createdAt time.Time
		acc       Account
	)
	if err := row.Scan(&id, &acc.Name, &acc.SecretHash, &acc.TokenVersion, &createdAt, &acc.LastLogin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	acc.ID = id.String()
	acc.CreatedAt = createdAt.UTC()
	return acc, nil
}

// UpdateLastLogin records a successful login.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, name string, at time.Time) error {
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET last_login = $1 WHERE name = $2`, at.UTC(), name)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
