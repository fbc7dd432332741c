// Package interview drives one (agent, model, scenario, iteration) instance
// of a survey from its first question to completion or termination.
package interview

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/quorum-research/survey-cli/internal/cache"
	"github.com/quorum-research/survey-cli/internal/cachestore"
	"github.com/quorum-research/survey-cli/internal/memory"
	"github.com/quorum-research/survey-cli/internal/model"
	"github.com/quorum-research/survey-cli/internal/provider"
	"github.com/quorum-research/survey-cli/internal/ratelimit"
	"github.com/quorum-research/survey-cli/internal/render"
	"github.com/quorum-research/survey-cli/internal/resilience"
	"github.com/quorum-research/survey-cli/internal/results"
	"github.com/quorum-research/survey-cli/internal/rules"
)

const (
	defaultValidationRetries = 2
	defaultCallTimeout       = 120 * time.Second
	defaultOutputEstimate    = 256
)

// Params wires one interview. Survey, agent, scenario, and model spec are
// read-only; cache and limiter are the only state shared with other
// interviews and are internally synchronized.
type Params struct {
	ID        string
	Survey    *model.Survey
	Agent     model.Agent
	Scenario  model.Scenario
	Model     model.ModelSpec
	Iteration int

	Cache   *cache.Cache
	Limiter *ratelimit.Limiter
	Invoker provider.Invoker

	Retry             resilience.Config
	ValidationRetries int           // extra attempts after a validation failure
	CallTimeout       time.Duration // bound on each external call
	Fresh             bool          // bypass cache reads for the whole interview
}

// Interview owns the mutable traversal state for one survey walk.
type Interview struct {
	p       Params
	engine  *rules.Engine
	answers map[string]model.Answer
	failed  map[string]bool
	visited []int // answered question indices in visit order; revisits repeat
	perQ    []results.QuestionResult
	usage   model.TokenUsage
}

// New creates an interview in its initial state.
func New(p Params) *Interview {
	if p.ValidationRetries <= 0 {
		p.ValidationRetries = defaultValidationRetries
	}
	if p.CallTimeout <= 0 {
		p.CallTimeout = defaultCallTimeout
	}
	iv := &Interview{
		p:       p,
		engine:  p.Survey.Engine(),
		answers: make(map[string]model.Answer),
		failed:  make(map[string]bool),
		perQ:    make([]results.QuestionResult, len(p.Survey.Questions)),
	}
	for i, q := range p.Survey.Questions {
		iv.perQ[i] = results.QuestionResult{Name: q.Name, Answer: model.None()}
	}
	return iv
}

// Run walks the survey and emits exactly one answer record, regardless of
// how many questions failed along the way. Failures are contained per
// question; only a broken rule expression or cancellation terminates the
// walk early.
func (iv *Interview) Run(ctx context.Context) results.Record {
	status := results.StatusCompleted
	questions := iv.p.Survey.Questions

	// A jump-rule graph can loop; bound total transitions so a cyclic
	// survey terminates instead of spinning.
	maxSteps := len(questions) * (len(questions) + 2)

	idx := 0
	for steps := 0; idx != rules.EndOfSurvey; steps++ {
		if err := ctx.Err(); err != nil {
			iv.recordError(idx, results.ErrCancelled, err.Error())
			status = results.StatusTerminated
			break
		}
		if steps > maxSteps {
			iv.recordError(idx, results.ErrRule, "rule graph does not terminate")
			status = results.StatusTerminated
			break
		}

		action, err := iv.engine.Gate(idx, iv.ruleState())
		if err != nil {
			iv.recordError(idx, results.ErrRule, err.Error())
			status = results.StatusTerminated
			break
		}
		switch action {
		case rules.GateStop:
			idx = rules.EndOfSurvey
			continue
		case rules.GateSkip:
			iv.perQ[idx].Skipped = true
			if idx >= len(questions)-1 {
				idx = rules.EndOfSurvey
			} else {
				idx++
			}
			continue
		}

		iv.askQuestion(ctx, idx)
		if ctx.Err() != nil {
			// The failure recorded for this question already says cancelled;
			// stop walking instead of cascading it to the rule engine.
			status = results.StatusTerminated
			break
		}

		next, err := iv.engine.Next(idx, iv.ruleState())
		if err != nil {
			iv.recordError(idx, results.ErrRule, err.Error())
			status = results.StatusTerminated
			break
		}
		idx = next
	}

	return iv.record(status)
}

// askQuestion renders, calls, validates, and records one question. All
// failure modes are captured on the question's result entry.
func (iv *Interview) askQuestion(ctx context.Context, idx int) {
	q := iv.p.Survey.Questions[idx]

	// A question whose render references a failed upstream answer cannot be
	// built; it fails immediately and is never retried.
	for _, dep := range render.References(append([]string{q.Text}, q.Options...)...) {
		if iv.failed[dep] {
			iv.recordError(idx, results.ErrDependency,
				fmt.Sprintf("depends on failed question %q", dep))
			return
		}
	}

	prompt, err := render.Render(render.Context{
		Question: q,
		Agent:    iv.p.Agent,
		Scenario: iv.p.Scenario,
		Answers:  iv.answers,
		Memory:   iv.memoryContext(idx),
	})
	if err != nil {
		iv.recordError(idx, results.ErrTemplate, err.Error())
		return
	}

	iv.perQ[idx].SystemText = prompt.System
	iv.perQ[idx].UserText = prompt.User

	fp := cache.Fingerprint(iv.p.Model.Identity(), iv.p.Model.ParamsKey(), prompt.System, prompt.User)

	attempts := 1 + iv.p.ValidationRetries
	var lastValidation error
	for attempt := 0; attempt < attempts; attempt++ {
		// Retries bypass the cache read: the cached response is the one
		// that just failed validation.
		fresh := iv.p.Fresh || attempt > 0
		entry, hit, err := iv.p.Cache.GetOrCompute(ctx, fp, fresh, func(callCtx context.Context) (cachestore.Entry, error) {
			return iv.invoke(callCtx, prompt)
		})
		if err != nil {
			if ctx.Err() != nil {
				iv.recordError(idx, results.ErrCancelled, err.Error())
				return
			}
			iv.recordError(idx, results.ErrProvider, err.Error())
			return
		}

		iv.perQ[idx].RawResponse = entry.Raw
		iv.perQ[idx].CacheHit = hit
		iv.perQ[idx].Usage = model.TokenUsage{
			InputTokens:  entry.InputTokens,
			OutputTokens: entry.OutputTokens,
		}
		if !hit {
			iv.usage.Add(iv.perQ[idx].Usage)
		}

		answer, comment, verr := q.ParseResponse(entry.Content, prompt.Options)
		if verr == nil {
			iv.perQ[idx].Answer = answer
			iv.perQ[idx].Comment = comment
			iv.answers[q.Name] = answer
			iv.visited = append(iv.visited, idx)
			return
		}
		lastValidation = verr
		zap.L().Debug("interview: validation failed, retrying",
			zap.String("interview", iv.p.ID),
			zap.String("question", q.Name),
			zap.Int("attempt", attempt+1),
			zap.Error(verr),
		)
	}

	iv.recordError(idx, results.ErrValidation, lastValidation.Error())
}

// invoke performs the rate-limited external call. It runs at most once per
// unique fingerprint across the whole job (cache coalescing); everything
// here is on the miss path.
func (iv *Interview) invoke(ctx context.Context, prompt render.Prompt) (cachestore.Entry, error) {
	est := len(prompt.System)/4 + len(prompt.User)/4 + defaultOutputEstimate
	if err := iv.p.Limiter.Acquire(ctx, est); err != nil {
		return cachestore.Entry{}, err
	}

	resp, err := resilience.DoVal(ctx, iv.p.Retry, func(ctx context.Context) (*provider.Response, error) {
		callCtx, cancel := context.WithTimeout(ctx, iv.p.CallTimeout)
		defer cancel()
		return iv.p.Invoker.Invoke(callCtx, provider.Request{
			Model:       iv.p.Model.Name,
			System:      prompt.System,
			User:        prompt.User,
			Temperature: iv.p.Model.Temperature,
			MaxTokens:   iv.p.Model.MaxTokens,
		})
	})
	if err != nil {
		return cachestore.Entry{}, err
	}

	iv.p.Limiter.Reconcile(est, int(resp.InputTokens+resp.OutputTokens))

	return cachestore.Entry{
		Content:      resp.Content,
		Raw:          resp.Raw,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// memoryContext assembles the prior Q/A pairs the question's memory policy
// calls for, in survey order (or target declaration order). A backward jump
// can revisit a question, leaving visit order with duplicate indices, so
// the answered set is deduplicated and restored to survey order first.
func (iv *Interview) memoryContext(idx int) []memory.Pair {
	seen := make(map[int]bool, len(iv.visited))
	answered := make([]int, 0, len(iv.visited))
	for _, i := range iv.visited {
		if !seen[i] {
			seen[i] = true
			answered = append(answered, i)
		}
	}
	sort.Ints(answered)

	selected := iv.p.Survey.Memory.Select(idx, answered)
	pairs := make([]memory.Pair, 0, len(selected))
	for _, i := range selected {
		q := iv.p.Survey.Questions[i]
		pairs = append(pairs, memory.Pair{
			Question: q.Text,
			Answer:   iv.answers[q.Name].String(),
		})
	}
	return pairs
}

// ruleState projects answered questions into the rule engine's value
// domain. Skipped and failed questions are deliberately absent: an
// expression referencing them is an evaluation error, not a silent false.
func (iv *Interview) ruleState() map[string]rules.Value {
	state := make(map[string]rules.Value, len(iv.answers))
	for name, ans := range iv.answers {
		if v, ok := model.AnswerValue(ans); ok {
			state[name] = v
		}
	}
	return state
}

func (iv *Interview) recordError(idx int, kind results.ErrorKind, msg string) {
	if idx < 0 || idx >= len(iv.perQ) {
		idx = len(iv.perQ) - 1
	}
	name := iv.p.Survey.Questions[idx].Name
	iv.perQ[idx].Error = &results.TaskError{
		Interview: iv.p.ID,
		Question:  name,
		Kind:      kind,
		Message:   msg,
	}
	iv.failed[name] = true
	zap.L().Debug("interview: question failed",
		zap.String("interview", iv.p.ID),
		zap.String("question", name),
		zap.String("kind", string(kind)),
		zap.String("message", msg),
	)
}

// record freezes the traversal into the immutable answer record.
func (iv *Interview) record(status results.Status) results.Record {
	return results.Record{
		ID:          iv.p.ID,
		AgentName:   iv.p.Agent.Name,
		AgentTraits: iv.p.Agent.Traits,
		Scenario:    iv.p.Scenario.Values,
		Model:       iv.p.Model.Identity(),
		ModelParams: iv.p.Model.ParamsKey(),
		Iteration:   iv.p.Iteration,
		Status:      status,
		Questions:   iv.perQ,
		Usage:       iv.usage,
	}
}
