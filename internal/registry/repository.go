package registry

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists issuer permissions and registered token metadata.
type Repository interface {
	Record(ctx context.Context, issuer string) (Record, error)
	SaveRecord(ctx context.Context, rec Record) error
	// NextSerial allocates the next token number.
	NextSerial(ctx context.Context) (uint32, error)
	Token(ctx context.Context, code string) (TokenInfo, error)
	SaveToken(ctx context.Context, info TokenInfo) error
}

const schema = `
CREATE SEQUENCE IF NOT EXISTS registry_token_serial AS BIGINT START 1;

CREATE TABLE IF NOT EXISTS registry_issuers (
    issuer        TEXT PRIMARY KEY,
    reg_count     BIGINT NOT NULL,
    total_count   BIGINT NOT NULL,
    next_token_no BIGINT NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS registry_tokens (
    code          TEXT PRIMARY KEY,
    token_no      BIGINT NOT NULL UNIQUE,
    precision     SMALLINT NOT NULL,
    name          TEXT NOT NULL,
    memo          TEXT NOT NULL,
    issuer        TEXT NOT NULL,
    supply        BIGINT NOT NULL,
    max_supply    BIGINT NOT NULL,
    registry      TEXT NOT NULL,
    registered_at TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS registry_tokens_issuer_idx ON registry_tokens (issuer);
`

// PostgresRepository stores the registry in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the registry tables.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schema)
	return err
}

func (r *PostgresRepository) Record(ctx context.Context, issuer string) (Record, error) {
	rec := Record{Issuer: issuer}
	var regCount, totalCount, next int64
	var updatedAt time.Time
	err := r.db.QueryRow(ctx, `SELECT reg_count, total_count, next_token_no, updated_at
        FROM registry_issuers WHERE issuer = $1`, issuer).Scan(&regCount, &totalCount, &next, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	rec.RegCount = uint32(regCount)
	rec.TotalCount = uint32(totalCount)
	rec.NextTokenNo = uint32(next)
	rec.UpdatedAt = updatedAt.UTC()
	return rec, nil
}

func (r *PostgresRepository) SaveRecord(ctx context.Context, rec Record) error {
	_, err := r.db.Exec(ctx, `INSERT INTO registry_issuers (issuer, reg_count, total_count, next_token_no, updated_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (issuer) DO UPDATE SET reg_count = EXCLUDED.reg_count, total_count = EXCLUDED.total_count,
            next_token_no = EXCLUDED.next_token_no, updated_at = EXCLUDED.updated_at`,
		rec.Issuer, int64(rec.RegCount), int64(rec.TotalCount), int64(rec.NextTokenNo), rec.UpdatedAt.UTC())
	return err
}

func (r *PostgresRepository) NextSerial(ctx context.Context) (uint32, error) {
	var serial int64
	if err := r.db.QueryRow(ctx, `SELECT nextval('registry_token_serial')`).Scan(&serial); err != nil {
		return 0, err
	}
	return uint32(serial), nil
}

func (r *PostgresRepository) Token(ctx context.Context, code string) (TokenInfo, error) {
	info := TokenInfo{Code: code}
	var tokenNo int64
	var precision int16
	err := r.db.QueryRow(ctx, `SELECT token_no, precision, name, memo, issuer, supply, max_supply, registry, registered_at, updated_at
        FROM registry_tokens WHERE code = $1`, code).Scan(
		&tokenNo, &precision, &info.Name, &info.Memo, &info.Issuer, &info.Supply, &info.MaxSupply,
		&info.Registry, &info.RegisteredAt, &info.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return TokenInfo{}, ErrNotFound
	}
	if err != nil {
		return TokenInfo{}, err
	}
	info.TokenNo = uint32(tokenNo)
	info.Precision = uint8(precision)
	info.RegisteredAt = info.RegisteredAt.UTC()
	info.UpdatedAt = info.UpdatedAt.UTC()
	return info, nil
}

func (r *PostgresRepository) SaveToken(ctx context.Context, info TokenInfo) error {
	_, err := r.db.Exec(ctx, `INSERT INTO registry_tokens
        (code, token_no, precision, name, memo, issuer, supply, max_supply, registry, registered_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (code) DO UPDATE SET supply = EXCLUDED.supply, max_supply = EXCLUDED.max_supply,
            updated_at = EXCLUDED.updated_at`,
		info.Code, int64(info.TokenNo), int16(info.Precision), info.Name, info.Memo, info.Issuer,
		info.Supply, info.MaxSupply, info.Registry, info.RegisteredAt.UTC(), info.UpdatedAt.UTC())
	return err
}
