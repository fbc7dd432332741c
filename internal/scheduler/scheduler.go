// Package scheduler enumerates a job's agent × model × scenario × iteration
// cross product into interviews and drives them concurrently, bounded by the
// per-service rate limiters rather than a fixed worker count.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quorum-research/survey-cli/internal/cache"
	"github.com/quorum-research/survey-cli/internal/interview"
	"github.com/quorum-research/survey-cli/internal/model"
	"github.com/quorum-research/survey-cli/internal/provider"
	"github.com/quorum-research/survey-cli/internal/ratelimit"
	"github.com/quorum-research/survey-cli/internal/resilience"
	"github.com/quorum-research/survey-cli/internal/results"
)

const defaultMaxConcurrency = 64

// EventType tags progress events.
type EventType string

const (
	EventInterviewDone EventType = "interview_done"
)

// Event is one entry of the progress/exception stream. It is observational
// only; consumers cannot influence the run through it.
type Event struct {
	Type      EventType
	Interview string
	Model     string
	Iteration int
	Errors    int
	Completed int
	Total     int
}

// Config is the explicit run configuration. There is no process-wide
// default model or ambient state; everything an execution needs is here.
type Config struct {
	MaxConcurrency    int
	ValidationRetries int
	ProviderRetry     resilience.Config
	CallTimeout       time.Duration
	SafetyFactor      float64
	DefaultRPM        float64
	DefaultTPM        float64
	DefaultModel      model.ModelSpec
	Fresh             bool
	PollInterval      time.Duration

	// OnEvent, when set, receives one event per finished interview. It may
	// be called from many goroutines.
	OnEvent func(Event)
}

// Scheduler runs jobs. The cache and limiter pool are shared across every
// interview of every job it runs.
type Scheduler struct {
	cfg      Config
	cache    *cache.Cache
	limits   *ratelimit.Pool
	invokers map[string]provider.Invoker // keyed by provider name
}

// New builds a scheduler over the given response cache and provider
// adapters.
func New(cfg Config, c *cache.Cache, invokers map[string]provider.Invoker) *Scheduler {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaultMaxConcurrency
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Scheduler{
		cfg:      cfg,
		cache:    c,
		limits:   ratelimit.NewPool(cfg.SafetyFactor, cfg.DefaultRPM, cfg.DefaultTPM),
		invokers: invokers,
	}
}

// Run executes every interview of the job and returns the full results
// collection. Individual interview failures never fail the run; they are
// captured in the records. Run itself fails only for setup problems or
// cancellation before completion.
func (s *Scheduler) Run(ctx context.Context, job *model.Job) (*results.Results, error) {
	job, err := job.Normalize(s.cfg.DefaultModel)
	if err != nil {
		return nil, err
	}
	for _, m := range job.Models {
		if _, ok := s.invokers[m.Provider]; !ok {
			return nil, eris.Errorf("scheduler: no adapter for provider %q", m.Provider)
		}
	}

	plan := s.enumerate(job)
	records := make([]results.Record, len(plan))
	total := len(plan)
	var completed atomic.Int64

	zap.L().Info("job started",
		zap.Int("interviews", total),
		zap.Int("agents", len(job.Agents)),
		zap.Int("models", len(job.Models)),
		zap.Int("scenarios", len(job.Scenarios)),
		zap.Int("iterations", job.N),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)
	for i, p := range plan {
		g.Go(func() error {
			rec := interview.New(p).Run(gctx)
			records[i] = rec
			done := int(completed.Add(1))
			if s.cfg.OnEvent != nil {
				s.cfg.OnEvent(Event{
					Type:      EventInterviewDone,
					Interview: rec.ID,
					Model:     rec.Model,
					Iteration: rec.Iteration,
					Errors:    len(rec.Errors()),
					Completed: done,
					Total:     total,
				})
			}
			return nil
		})
	}
	// Interview failures are contained in records, so the group only
	// surfaces cancellation.
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return &results.Results{Records: records}, eris.Wrap(err, "scheduler: run cancelled")
	}

	res := &results.Results{Records: records}
	zap.L().Info("job finished",
		zap.Int("interviews", total),
		zap.Int("exceptions", len(res.Exceptions())),
	)
	return res, nil
}

// enumerate expands the cross product into interview parameter sets. No two
// interviews share mutable state; the cache and limiters are the shared,
// synchronized exceptions.
func (s *Scheduler) enumerate(job *model.Job) []interview.Params {
	plan := make([]interview.Params, 0, job.Size())
	for _, agent := range job.Agents {
		for _, spec := range job.Models {
			limiter := s.limits.For(spec.Identity(), spec.RPM, spec.TPM)
			invoker := s.invokers[spec.Provider]
			for _, scenario := range job.Scenarios {
				for iter := 0; iter < job.N; iter++ {
					plan = append(plan, interview.Params{
						ID:                uuid.New().String(),
						Survey:            job.Survey,
						Agent:             agent,
						Scenario:          scenario,
						Model:             spec,
						Iteration:         iter,
						Cache:             s.cache,
						Limiter:           limiter,
						Invoker:           invoker,
						Retry:             s.cfg.ProviderRetry,
						ValidationRetries: s.cfg.ValidationRetries,
						CallTimeout:       s.cfg.CallTimeout,
						Fresh:             s.cfg.Fresh,
					})
				}
			}
		}
	}
	return plan
}
