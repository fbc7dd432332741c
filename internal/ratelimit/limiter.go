// Package ratelimit enforces per-model-service throughput ceilings. Each
// service gets two token buckets, requests-per-minute and tokens-per-minute;
// an external call must acquire admission from both before dispatch.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultSafetyFactor is the headroom kept below nominal provider limits.
// The enforced ceiling is always strictly below the configured one.
const DefaultSafetyFactor = 0.8

// Limiter is the admission controller for one model-service identity.
type Limiter struct {
	mu       sync.Mutex
	requests *rate.Limiter
	tokens   *rate.Limiter
	tokBurst int
}

// burst reads the current token burst under the lock; SetCeilings may be
// rewriting it while acquisitions are in flight.
func (l *Limiter) burst() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokBurst
}

// NewLimiter builds a limiter enforcing rpm requests and tpm tokens per
// minute, both scaled down by safety (0 < safety < 1). A factor outside
// that range, including exactly 1, falls back to DefaultSafetyFactor so the
// enforced ceiling stays strictly below the configured one.
//
// The request bucket uses a burst of one: admissions are spaced evenly, so
// no rolling 60-second window ever sees more than the effective ceiling.
// The token bucket allows a full minute of burst so a single large request
// can always be admitted.
func NewLimiter(rpm, tpm, safety float64) *Limiter {
	if safety <= 0 || safety >= 1 {
		safety = DefaultSafetyFactor
	}
	effRPM := rpm * safety
	effTPM := tpm * safety
	tokBurst := int(effTPM)
	if tokBurst < 1 {
		tokBurst = 1
	}
	return &Limiter{
		requests: rate.NewLimiter(rate.Limit(effRPM/60.0), 1),
		tokens:   rate.NewLimiter(rate.Limit(effTPM/60.0), tokBurst),
		tokBurst: tokBurst,
	}
}

// Acquire blocks until one request slot and estTokens tokens are available,
// then debits both. The wait suspends on the context rather than spinning.
// Debits are never refunded: by the time a caller could cancel, the call
// may already have reached the provider and counted against its quota.
func (l *Limiter) Acquire(ctx context.Context, estTokens int) error {
	if err := l.requests.Wait(ctx); err != nil {
		return eris.Wrap(err, "ratelimit: acquire request slot")
	}
	if estTokens < 1 {
		estTokens = 1
	}
	if b := l.burst(); estTokens > b {
		estTokens = b
	}
	if err := l.tokens.WaitN(ctx, estTokens); err != nil {
		return eris.Wrap(err, "ratelimit: acquire token budget")
	}
	return nil
}

// Reconcile settles the difference between the estimated and actual token
// consumption once the response reports usage. An underestimate debits the
// shortfall from future capacity without blocking the caller; an
// overestimate is forgiven rather than refunded.
func (l *Limiter) Reconcile(estTokens, actualTokens int) {
	delta := actualTokens - estTokens
	if delta <= 0 {
		return
	}
	if b := l.burst(); delta > b {
		delta = b
	}
	// ReserveN debits immediately; the returned reservation's delay is the
	// future capacity the shortfall consumed, which we deliberately ignore.
	l.tokens.ReserveN(time.Now(), delta)
}

// SetCeilings installs new per-minute ceilings at runtime. rate.Limiter
// keeps its accumulated bucket state across SetLimit, so capacity already
// reserved by in-flight calls is not lost.
func (l *Limiter) SetCeilings(rpm, tpm, safety float64) {
	if safety <= 0 || safety >= 1 {
		safety = DefaultSafetyFactor
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests.SetLimit(rate.Limit(rpm * safety / 60.0))
	l.tokens.SetLimit(rate.Limit(tpm * safety / 60.0))
	tokBurst := int(tpm * safety)
	if tokBurst < 1 {
		tokBurst = 1
	}
	l.tokens.SetBurst(tokBurst)
	l.tokBurst = tokBurst
}

// allowRequestAt debits one request at an arbitrary time. Test hook for
// simulated-clock verification of the rolling-window property.
func (l *Limiter) allowRequestAt(t time.Time) bool {
	return l.requests.AllowN(t, 1)
}

// allowTokensAt debits n tokens at an arbitrary time. Test hook.
func (l *Limiter) allowTokensAt(t time.Time, n int) bool {
	return l.tokens.AllowN(t, n)
}

// Pool hands out one Limiter per model-service identity. Two model specs
// with the same identity share a limiter even if their parameters differ.
type Pool struct {
	mu         sync.Mutex
	limiters   map[string]*Limiter
	safety     float64
	defaultRPM float64
	defaultTPM float64
}

// NewPool creates a limiter pool. Zero defaults fall back to conservative
// ceilings for specs that do not declare their own.
func NewPool(safety, defaultRPM, defaultTPM float64) *Pool {
	if defaultRPM <= 0 {
		defaultRPM = 60
	}
	if defaultTPM <= 0 {
		defaultTPM = 100_000
	}
	return &Pool{
		limiters:   make(map[string]*Limiter),
		safety:     safety,
		defaultRPM: defaultRPM,
		defaultTPM: defaultTPM,
	}
}

// For returns the limiter for identity, creating it on first use with the
// given ceilings (or the pool defaults when zero).
func (p *Pool) For(identity string, rpm, tpm float64) *Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.limiters[identity]; ok {
		return l
	}
	if rpm <= 0 {
		rpm = p.defaultRPM
	}
	if tpm <= 0 {
		tpm = p.defaultTPM
	}
	l := NewLimiter(rpm, tpm, p.safety)
	p.limiters[identity] = l
	zap.L().Debug("ratelimit: limiter created",
		zap.String("service", identity),
		zap.Float64("rpm", rpm),
		zap.Float64("tpm", tpm),
	)
	return l
}
