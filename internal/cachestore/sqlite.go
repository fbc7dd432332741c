package cachestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local sqlite file via modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) a sqlite cache at dsn and configures
// WAL mode for concurrent readers.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cachestore: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cachestore: sqlite exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS response_cache (
	fingerprint   TEXT PRIMARY KEY,
	content       TEXT NOT NULL,
	raw           TEXT,
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

// Migrate creates the cache table if missing.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "cachestore: sqlite migrate")
}

func (s *SQLiteStore) Load(ctx context.Context, fp string) (*Entry, error) {
	var e Entry
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT content, raw, input_tokens, output_tokens, created_at FROM response_cache WHERE fingerprint = ?`,
		fp,
	).Scan(&e.Content, &raw, &e.InputTokens, &e.OutputTokens, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "cachestore: sqlite load")
	}
	e.Raw = raw.String
	return &e, nil
}

func (s *SQLiteStore) Store(ctx context.Context, fp string, e Entry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO response_cache (fingerprint, content, raw, input_tokens, output_tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(fingerprint) DO UPDATE SET
		   content = excluded.content,
		   raw = excluded.raw,
		   input_tokens = excluded.input_tokens,
		   output_tokens = excluded.output_tokens,
		   created_at = excluded.created_at`,
		fp, e.Content, e.Raw, e.InputTokens, e.OutputTokens, createdAt,
	)
	return eris.Wrap(err, "cachestore: sqlite store")
}

func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM response_cache`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "cachestore: sqlite len")
	}
	return n, nil
}

func (s *SQLiteStore) Purge(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM response_cache`)
	if err != nil {
		return 0, eris.Wrap(err, "cachestore: sqlite purge")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
