// Package cost provides pre-run static estimates and post-run actual
// accounting of token and dollar usage per model. The price table comes
// from configuration; nothing here knows provider pricing on its own.
package cost

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quorum-research/survey-cli/internal/model"
	"github.com/quorum-research/survey-cli/internal/render"
	"github.com/quorum-research/survey-cli/internal/results"
)

// Rate is per-million-token pricing for one model identity.
type Rate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Estimator converts token counts into dollars using an externally
// supplied price table keyed by "provider/model".
type Estimator struct {
	rates map[string]Rate
}

// NewEstimator creates an Estimator with the given price table.
func NewEstimator(rates map[string]Rate) *Estimator {
	if rates == nil {
		rates = map[string]Rate{}
	}
	return &Estimator{rates: rates}
}

// Price converts a token count pair into dollars for the model identity.
// Unknown models price at zero.
func (e *Estimator) Price(identity string, inputTokens, outputTokens int64) float64 {
	rate, ok := e.rates[identity]
	if !ok {
		return 0
	}
	return (float64(inputTokens)/1e6)*rate.Input + (float64(outputTokens)/1e6)*rate.Output
}

// ModelEstimate is the projected or actual usage for one model.
type ModelEstimate struct {
	Requests     int     `json:"requests"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Estimate aggregates per-model usage with a grand total.
type Estimate struct {
	PerModel map[string]ModelEstimate `json:"per_model"`
	TotalUSD float64                  `json:"total_usd"`
}

// outputTokensPerQuestion is the static projection for a question's reply.
const outputTokensPerQuestion = 256

// EstimateJob projects the cost of running the job, assuming no cache hits
// and no early termination: every interview renders every question once.
// Input tokens use the usual four-characters-per-token heuristic on the
// rendered prompts of the first agent/scenario pair, which is exact enough
// for a pre-run budget check.
func (e *Estimator) EstimateJob(job *model.Job) (*Estimate, error) {
	est := &Estimate{PerModel: make(map[string]ModelEstimate)}
	if job.Survey == nil {
		return est, nil
	}

	agent := model.Agent{}
	if len(job.Agents) > 0 {
		agent = job.Agents[0]
	}
	scenario := model.Scenario{}
	if len(job.Scenarios) > 0 {
		scenario = job.Scenarios[0]
	}

	var promptChars int64
	for _, q := range job.Survey.Questions {
		prompt, err := render.Render(render.Context{
			Question: q,
			Agent:    agent,
			Scenario: scenario,
			Answers:  sampleAnswers(job.Survey),
		})
		if err != nil {
			// Questions depending on genuinely unresolvable placeholders
			// still cost roughly their template length.
			promptChars += int64(len(q.Text))
			continue
		}
		promptChars += int64(len(prompt.System) + len(prompt.User))
	}

	interviewsPerModel := len(job.Agents) * len(job.Scenarios) * job.N
	if interviewsPerModel == 0 {
		interviewsPerModel = job.N
	}
	questionCount := len(job.Survey.Questions)

	for _, spec := range job.Models {
		id := spec.Identity()
		me := est.PerModel[id]
		me.Requests += interviewsPerModel * questionCount
		me.InputTokens += int64(interviewsPerModel) * promptChars / 4
		me.OutputTokens += int64(interviewsPerModel) * int64(questionCount) * outputTokensPerQuestion
		me.CostUSD = e.Price(id, me.InputTokens, me.OutputTokens)
		est.PerModel[id] = me
	}
	for _, me := range est.PerModel {
		est.TotalUSD += me.CostUSD
	}
	return est, nil
}

// sampleAnswers fills every question name with a placeholder answer so
// prior-answer references resolve during estimation.
func sampleAnswers(s *model.Survey) map[string]model.Answer {
	out := make(map[string]model.Answer, len(s.Questions))
	for _, q := range s.Questions {
		out[q.Name] = model.TextAnswer("sample")
	}
	return out
}

// Actuals tallies what a finished run really consumed, counting only the
// interviews' non-cached calls.
func (e *Estimator) Actuals(res *results.Results) *Estimate {
	est := &Estimate{PerModel: make(map[string]ModelEstimate)}
	for _, rec := range res.Records {
		me := est.PerModel[rec.Model]
		for _, q := range rec.Questions {
			if q.CacheHit || (q.Usage.InputTokens == 0 && q.Usage.OutputTokens == 0) {
				continue
			}
			me.Requests++
			me.InputTokens += q.Usage.InputTokens
			me.OutputTokens += q.Usage.OutputTokens
		}
		me.CostUSD = e.Price(rec.Model, me.InputTokens, me.OutputTokens)
		est.PerModel[rec.Model] = me
	}
	for _, me := range est.PerModel {
		est.TotalUSD += me.CostUSD
	}
	return est
}

// Format renders an estimate as aligned text for CLI output.
func (est *Estimate) Format() string {
	if len(est.PerModel) == 0 {
		return "no models to estimate"
	}
	ids := make([]string, 0, len(est.PerModel))
	for id := range est.PerModel {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		me := est.PerModel[id]
		fmt.Fprintf(&b, "%-40s requests=%-6d in=%-10d out=%-10d $%.4f\n",
			id, me.Requests, me.InputTokens, me.OutputTokens, me.CostUSD)
	}
	fmt.Fprintf(&b, "total: $%.4f", est.TotalUSD)
	return b.String()
}
