package cachestore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool abstracts the pgxpool methods the store needs, so tests can
// substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store on a shared postgres database, for runs
// where several hosts should share one response cache.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects a pooled postgres-backed store.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "cachestore: postgres connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "cachestore: postgres ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS response_cache (
	fingerprint   TEXT PRIMARY KEY,
	content       TEXT NOT NULL,
	raw           TEXT,
	input_tokens  BIGINT NOT NULL DEFAULT 0,
	output_tokens BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Migrate creates the cache table if missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "cachestore: postgres migrate")
}

func (s *PostgresStore) Load(ctx context.Context, fp string) (*Entry, error) {
	var e Entry
	var raw *string
	err := s.pool.QueryRow(ctx,
		`SELECT content, raw, input_tokens, output_tokens, created_at FROM response_cache WHERE fingerprint = $1`,
		fp,
	).Scan(&e.Content, &raw, &e.InputTokens, &e.OutputTokens, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "cachestore: postgres load")
	}
	if raw != nil {
		e.Raw = *raw
	}
	return &e, nil
}

func (s *PostgresStore) Store(ctx context.Context, fp string, e Entry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO response_cache (fingerprint, content, raw, input_tokens, output_tokens, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (fingerprint) DO UPDATE SET
		   content = EXCLUDED.content,
		   raw = EXCLUDED.raw,
		   input_tokens = EXCLUDED.input_tokens,
		   output_tokens = EXCLUDED.output_tokens,
		   created_at = EXCLUDED.created_at`,
		fp, e.Content, e.Raw, e.InputTokens, e.OutputTokens, createdAt,
	)
	return eris.Wrap(err, "cachestore: postgres store")
}

func (s *PostgresStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM response_cache`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "cachestore: postgres len")
	}
	return n, nil
}

func (s *PostgresStore) Purge(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM response_cache`)
	if err != nil {
		return 0, eris.Wrap(err, "cachestore: postgres purge")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
