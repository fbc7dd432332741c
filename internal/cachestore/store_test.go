package cachestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeUnderTest exercises the Store contract shared by every backend.
func storeUnderTest(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	e, err := s.Load(ctx, "absent")
	require.NoError(t, err)
	assert.Nil(t, e)

	in := Entry{
		Content:      "the answer",
		Raw:          `{"content":"the answer"}`,
		InputTokens:  20,
		OutputTokens: 9,
		CreatedAt:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Store(ctx, "fp1", in))

	got, err := s.Load(ctx, "fp1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, in.Content, got.Content)
	assert.Equal(t, in.Raw, got.Raw)
	assert.Equal(t, in.InputTokens, got.InputTokens)
	assert.Equal(t, in.OutputTokens, got.OutputTokens)

	// Storing over the same fingerprint supersedes.
	in.Content = "revised"
	require.NoError(t, s.Store(ctx, "fp1", in))
	got, err = s.Load(ctx, "fp1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "revised", got.Content)

	require.NoError(t, s.Store(ctx, "fp2", Entry{Content: "other"}))
	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	purged, err := s.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, purged)
	n, err = s.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	storeUnderTest(t, NewMemory())
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	s, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	storeUnderTest(t, s)
}

func TestMemoryStoreLoadCopies(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, "fp", Entry{Content: "original"}))

	e, err := s.Load(ctx, "fp")
	require.NoError(t, err)
	e.Content = "mutated"

	again, err := s.Load(ctx, "fp")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Content)
}
