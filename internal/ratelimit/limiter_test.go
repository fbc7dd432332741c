package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollingWindowNeverExceedsCeiling(t *testing.T) {
	t.Parallel()

	// 60 rpm at safety 0.5 enforces 30 requests per minute. Drive a simulated
	// clock in one-second steps and count admissions inside every rolling
	// 60-second window.
	l := NewLimiter(60, 1_000_000, 0.5)

	start := time.Now()
	var admitted []time.Time
	for s := 0; s < 300; s++ {
		at := start.Add(time.Duration(s) * time.Second)
		for l.allowRequestAt(at) {
			admitted = append(admitted, at)
		}
	}

	require.NotEmpty(t, admitted)
	for i := range admitted {
		windowEnd := admitted[i].Add(60 * time.Second)
		count := 0
		for j := i; j < len(admitted) && admitted[j].Before(windowEnd); j++ {
			count++
		}
		assert.LessOrEqual(t, count, 31, "window starting at admission %d", i)
	}
}

func TestUnitSafetyFactorFallsBack(t *testing.T) {
	t.Parallel()

	// A factor of exactly 1 would enforce the configured ceiling itself;
	// the enforced one must stay strictly below it.
	l := NewLimiter(600, 1_000, 1.0)
	assert.Equal(t, int(1_000*DefaultSafetyFactor), l.burst())
}

func TestTokenBucketAdmitsLargeRequest(t *testing.T) {
	t.Parallel()

	// Burst equals the full effective per-minute budget, so a single request
	// consuming a whole minute of tokens is admittable.
	l := NewLimiter(600, 10_000, 0.5)

	at := time.Now().Add(time.Hour)
	assert.True(t, l.allowTokensAt(at, 5_000))
	assert.False(t, l.allowTokensAt(at, 5_000))
}

func TestAcquireClampsOversizedEstimate(t *testing.T) {
	t.Parallel()

	l := NewLimiter(600, 100, 0.5)

	// An estimate beyond the whole budget clamps instead of deadlocking.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.Acquire(ctx, 1_000_000))
}

func TestAcquireHonorsContext(t *testing.T) {
	t.Parallel()

	l := NewLimiter(60, 100, 0.5)
	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, 1))

	// The second request slot is a second away; a cancelled context must not
	// wait for it.
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err := l.Acquire(cancelled, 1)
	require.Error(t, err)
}

func TestReconcileDebitsShortfall(t *testing.T) {
	t.Parallel()

	// Effective token budget is 2_000 * 0.5 = 1_000.
	l := NewLimiter(600, 2_000, 0.5)
	at := time.Now()

	require.True(t, l.allowTokensAt(at, 400))

	// Underestimate of 600: the shortfall consumes the remaining budget.
	l.Reconcile(400, 1_000)
	assert.False(t, l.allowTokensAt(at, 600))

	// Overestimates are forgiven, never refunded.
	before := l.allowTokensAt(at, 1)
	l.Reconcile(1_000, 1)
	after := l.allowTokensAt(at, 1)
	assert.Equal(t, before, after)
}

func TestSetCeilings(t *testing.T) {
	t.Parallel()

	l := NewLimiter(60, 100, 0.5)
	l.SetCeilings(6_000, 1_000_000, 0.5)

	at := time.Now().Add(time.Hour)
	// The raised token burst is available immediately after refill time.
	assert.True(t, l.allowTokensAt(at, 500_000))
}

func TestSetCeilingsDuringAcquire(t *testing.T) {
	t.Parallel()

	// Ceiling changes happen while calls are being admitted; the two must
	// be safe to run together (this test exists for the race detector).
	l := NewLimiter(60_000, 10_000_000, 0.5)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		tpm := float64(10_000_000 + i)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = l.Acquire(ctx, 100)
		}()
		go func() {
			defer wg.Done()
			l.SetCeilings(60_000, tpm, 0.5)
		}()
	}
	wg.Wait()
	l.Reconcile(100, 500)
}

func TestPoolSharesByIdentity(t *testing.T) {
	t.Parallel()

	p := NewPool(0.8, 0, 0)

	a := p.For("anthropic/m", 600, 300_000)
	b := p.For("anthropic/m", 999, 999)
	c := p.For("anthropic/other", 600, 300_000)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}

func TestPoolDefaults(t *testing.T) {
	t.Parallel()

	p := NewPool(0.9, 0, 0)
	l := p.For("svc", 0, 0)

	// Fallback ceilings admit a request immediately.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, l.Acquire(ctx, 10))
}
