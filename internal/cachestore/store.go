// Package cachestore is the persistence boundary for the response cache.
// Backends are interchangeable: local sqlite (default), shared postgres, a
// shared redis instance, or in-memory for tests. The cache core is agnostic
// to which one is installed.
package cachestore

import (
	"context"
	"sync"
	"time"
)

// Entry is one cached provider response. Entries are append-only; a "fresh"
// execution supersedes an entry by storing over the same fingerprint.
type Entry struct {
	Content      string    `json:"content"`
	Raw          string    `json:"raw,omitempty"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store persists cache entries keyed by request fingerprint.
type Store interface {
	// Load returns the entry for fp, or nil when absent.
	Load(ctx context.Context, fp string) (*Entry, error)
	// Store writes the entry for fp, superseding any previous one.
	Store(ctx context.Context, fp string, e Entry) error
	// Len reports the number of stored entries.
	Len(ctx context.Context) (int, error)
	// Purge removes every entry and reports how many were removed.
	Purge(ctx context.Context) (int, error)
	Close() error
}

// MemoryStore is an in-process Store used by tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Load(_ context.Context, fp string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[fp]; ok {
		return &e, nil
	}
	return nil, nil
}

func (m *MemoryStore) Store(_ context.Context, fp string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[fp] = e
	return nil
}

func (m *MemoryStore) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func (m *MemoryStore) Purge(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	m.entries = make(map[string]Entry)
	return n, nil
}

func (m *MemoryStore) Close() error { return nil }
