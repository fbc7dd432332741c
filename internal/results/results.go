// Package results holds the normalized output of a job: one answer record
// per interview, plus the aggregated exceptions report.
package results

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quorum-research/survey-cli/internal/model"
)

// ErrorKind names the failure taxonomy. Failures are contained at the
// interview level; a record carries its own errors rather than failing the
// job.
type ErrorKind string

const (
	ErrTemplate   ErrorKind = "template_resolution"
	ErrRule       ErrorKind = "rule_evaluation"
	ErrValidation ErrorKind = "validation"
	ErrProvider   ErrorKind = "provider"
	ErrDependency ErrorKind = "dependency_failure"
	ErrCancelled  ErrorKind = "cancelled"
)

// TaskError is one captured failure, keyed for the exceptions report.
type TaskError struct {
	Interview string    `json:"interview"`
	Question  string    `json:"question,omitempty"`
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
}

func (e TaskError) String() string {
	return fmt.Sprintf("[%s] %s/%s: %s", e.Kind, e.Interview, e.Question, e.Message)
}

// Status summarizes how an interview ended.
type Status string

const (
	StatusCompleted  Status = "completed"
	StatusTerminated Status = "terminated"
)

// QuestionResult is the per-question entry of an answer record. A skipped,
// unreached, or failed question holds a None answer; failed ones also carry
// the captured error.
type QuestionResult struct {
	Name        string           `json:"name"`
	Answer      model.Answer     `json:"answer"`
	Comment     string           `json:"comment,omitempty"`
	SystemText  string           `json:"system_text,omitempty"`
	UserText    string           `json:"user_text,omitempty"`
	RawResponse string           `json:"raw_response,omitempty"`
	Usage       model.TokenUsage `json:"usage"`
	CacheHit    bool             `json:"cache_hit"`
	Skipped     bool             `json:"skipped"`
	Error       *TaskError       `json:"error,omitempty"`
}

// Record is the immutable snapshot emitted by one completed interview.
type Record struct {
	ID          string            `json:"id"`
	AgentName   string            `json:"agent_name,omitempty"`
	AgentTraits map[string]string `json:"agent_traits,omitempty"`
	Scenario    map[string]string `json:"scenario,omitempty"`
	Model       string            `json:"model"`
	ModelParams string            `json:"model_params"`
	Iteration   int               `json:"iteration"`
	Status      Status            `json:"status"`
	Questions   []QuestionResult  `json:"questions"` // survey order
	Usage       model.TokenUsage  `json:"usage"`
}

// Answer returns the typed answer for the named question, or None.
func (r Record) Answer(name string) model.Answer {
	for _, q := range r.Questions {
		if q.Name == name {
			return q.Answer
		}
	}
	return model.None()
}

// Errors returns the record's captured failures.
func (r Record) Errors() []TaskError {
	var out []TaskError
	for _, q := range r.Questions {
		if q.Error != nil {
			out = append(out, *q.Error)
		}
	}
	return out
}

// Results is the ordered collection a job returns. Order is stable for
// reproducibility but carries no semantics; iteration metadata preserves
// correspondence.
type Results struct {
	Records []Record `json:"records"`
}

// Exceptions aggregates every captured failure across the collection,
// keyed by (interview, question, kind, message).
func (r *Results) Exceptions() []TaskError {
	var out []TaskError
	for _, rec := range r.Records {
		out = append(out, rec.Errors()...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Interview != out[j].Interview {
			return out[i].Interview < out[j].Interview
		}
		if out[i].Question != out[j].Question {
			return out[i].Question < out[j].Question
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Message < out[j].Message
	})
	return out
}

// Usage sums token usage per model identity across all records.
func (r *Results) Usage() map[string]model.TokenUsage {
	out := make(map[string]model.TokenUsage)
	for _, rec := range r.Records {
		u := out[rec.Model]
		u.Add(rec.Usage)
		out[rec.Model] = u
	}
	return out
}

// Report renders the exceptions report as human-readable text.
func (r *Results) Report() string {
	exceptions := r.Exceptions()
	if len(exceptions) == 0 {
		return "no exceptions"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d exception(s):\n", len(exceptions))
	for _, e := range exceptions {
		b.WriteString("  ")
		b.WriteString(e.String())
		b.WriteString("\n")
	}
	return b.String()
}
