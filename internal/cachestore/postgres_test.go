package cachestore

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_Load_Absent(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT content, raw, input_tokens, output_tokens, created_at FROM response_cache WHERE fingerprint = \$1`).
		WithArgs("missing-fp").
		WillReturnError(pgx.ErrNoRows)

	e, err := s.Load(context.Background(), "missing-fp")
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Load_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	raw := `{"model":"m"}`
	mock.ExpectQuery(`SELECT content, raw, input_tokens, output_tokens, created_at FROM response_cache`).
		WithArgs("fp1").
		WillReturnRows(pgxmock.NewRows([]string{"content", "raw", "input_tokens", "output_tokens", "created_at"}).
			AddRow("blue", &raw, int64(12), int64(7), created))

	e, err := s.Load(context.Background(), "fp1")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "blue", e.Content)
	assert.Equal(t, raw, e.Raw)
	assert.Equal(t, int64(12), e.InputTokens)
	assert.Equal(t, int64(7), e.OutputTokens)
	assert.Equal(t, created, e.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Store_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT`).
		WithArgs("fp1", "blue", "", int64(12), int64(7), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.Store(context.Background(), "fp1", Entry{Content: "blue", InputTokens: 12, OutputTokens: 7})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Len(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM response_cache`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	n, err := s.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Purge(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM response_cache`).
		WillReturnResult(pgxmock.NewResult("DELETE", 5))

	n, err := s.Purge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS response_cache`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
