package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/quorum-research/survey-cli/internal/model"
	"github.com/quorum-research/survey-cli/internal/results"
)

// Snapshot is a point-in-time view of a background job.
type Snapshot struct {
	JobID     string `json:"job_id"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Finished  bool   `json:"finished"`
	Cancelled bool   `json:"cancelled"`
}

// Handle is the cancellable future for a background run. The caller may
// poll, block, or cancel; results become available once Done is closed.
type Handle struct {
	jobID     string
	total     int
	completed atomic.Int64
	cancelled atomic.Bool

	cancel context.CancelFunc
	done   chan struct{}
	res    *results.Results
	err    error
}

// RunBackground starts the job and returns immediately with a handle.
// The run inherits ctx; cancelling either ctx or the handle stops it.
func (s *Scheduler) RunBackground(ctx context.Context, job *model.Job) (*Handle, error) {
	job, err := job.Normalize(s.cfg.DefaultModel)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		jobID:  uuid.New().String(),
		total:  job.Size(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	// Chain the caller's observer behind the handle's progress counter.
	inner := *s
	innerCfg := s.cfg
	outerObserver := innerCfg.OnEvent
	innerCfg.OnEvent = func(e Event) {
		h.completed.Store(int64(e.Completed))
		if outerObserver != nil {
			outerObserver(e)
		}
	}
	inner.cfg = innerCfg

	go func() {
		defer close(h.done)
		h.res, h.err = inner.Run(runCtx, job)
	}()
	return h, nil
}

// ID identifies the background job.
func (h *Handle) ID() string { return h.jobID }

// Done is closed when the run finishes, fails, or is cancelled.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Poll returns the current progress without blocking.
func (h *Handle) Poll() Snapshot {
	finished := false
	select {
	case <-h.done:
		finished = true
	default:
	}
	return Snapshot{
		JobID:     h.jobID,
		Total:     h.total,
		Completed: int(h.completed.Load()),
		Finished:  finished,
		Cancelled: h.cancelled.Load(),
	}
}

// Wait blocks until the run finishes or ctx expires, then returns whatever
// results were collected (possibly partial on cancellation).
func (h *Handle) Wait(ctx context.Context) (*results.Results, error) {
	select {
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "scheduler: wait")
	case <-h.done:
		return h.res, h.err
	}
}

// WaitPolling blocks like Wait but invokes onTick with a progress snapshot
// at the given interval, for callers driving a progress display.
func (h *Handle) WaitPolling(ctx context.Context, every time.Duration, onTick func(Snapshot)) (*results.Results, error) {
	if every <= 0 {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), "scheduler: wait")
		case <-h.done:
			return h.res, h.err
		case <-ticker.C:
			if onTick != nil {
				onTick(h.Poll())
			}
		}
	}
}

// Cancel stops the run. In-flight provider calls see their contexts
// cancelled; rate-limiter debits for calls already admitted stay consumed.
func (h *Handle) Cancel() {
	h.cancelled.Store(true)
	h.cancel()
}
