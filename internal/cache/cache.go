// Package cache deduplicates external model calls. It maps a request
// fingerprint to a stored response and guarantees at most one in-flight
// computation per fingerprint across every concurrent interview of a run.
package cache

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/quorum-research/survey-cli/internal/cachestore"
)

// ComputeFunc performs the rate-limited external call on a cache miss.
type ComputeFunc func(ctx context.Context) (cachestore.Entry, error)

// Cache is safe for concurrent use by many interviews.
type Cache struct {
	store cachestore.Store
	group singleflight.Group
}

// New wraps a persistence backend.
func New(store cachestore.Store) *Cache {
	return &Cache{store: store}
}

// GetOrCompute returns the entry for fp, computing and storing it on a
// miss. The hit result reports whether a stored or coalesced response was
// reused without a new external call by this caller.
//
// Concurrent callers with the same fingerprint coalesce onto a single
// computation; followers wait asynchronously rather than issuing duplicate
// calls. If the leader's context is cancelled mid-flight, followers receive
// the leader's cancellation error. A follower whose own context expires
// stops waiting without disturbing the leader.
//
// fresh bypasses the read path but still writes the result, superseding any
// stored entry.
func (c *Cache) GetOrCompute(ctx context.Context, fp string, fresh bool, compute ComputeFunc) (cachestore.Entry, bool, error) {
	if !fresh {
		if e, err := c.store.Load(ctx, fp); err != nil {
			return cachestore.Entry{}, false, err
		} else if e != nil {
			return *e, true, nil
		}
	}

	ch := c.group.DoChan(fp, func() (any, error) {
		// Re-check under the flight: another leader may have stored the
		// entry between our miss and this call winning the flight.
		if !fresh {
			if e, err := c.store.Load(ctx, fp); err == nil && e != nil {
				return *e, nil
			}
		}
		entry, err := compute(ctx)
		if err != nil {
			return cachestore.Entry{}, err
		}
		if err := c.store.Store(ctx, fp, entry); err != nil {
			// The response is valid even if persisting it failed; log and
			// let the run continue uncached.
			zap.L().Warn("cache: store failed",
				zap.String("fingerprint", fp),
				zap.Error(err),
			)
		}
		return entry, nil
	})

	select {
	case <-ctx.Done():
		return cachestore.Entry{}, false, eris.Wrap(ctx.Err(), "cache: wait for in-flight computation")
	case res := <-ch:
		if res.Err != nil {
			return cachestore.Entry{}, false, res.Err
		}
		return res.Val.(cachestore.Entry), res.Shared, nil
	}
}

// Len reports the number of persisted entries.
func (c *Cache) Len(ctx context.Context) (int, error) {
	return c.store.Len(ctx)
}
