package rules

import (
	"sort"

	"github.com/rotisserie/eris"
)

// Category ranks rule kinds when several fire on the same question.
// Resolution order is stop > jump > skip > default advance; within one
// category, higher Priority wins, then earliest registration.
type Category int

const (
	CategorySkip Category = iota
	CategoryJump
	CategoryStop
)

// EndOfSurvey is the terminal target: the interview completes and every
// remaining question is recorded as unanswered.
const EndOfSurvey = -1

// Rule binds a condition to a question index.
//
// Stop and skip rules gate the question before it executes: a true stop
// condition ends the interview, a true skip condition records the question
// as skipped without an external call. Jump rules are evaluated after the
// question is answered and pick the next index (which may be EndOfSurvey).
type Rule struct {
	Question int
	Category Category
	Cond     Expr
	Source   string // original expression text, for error reporting
	Target   int    // jump rules only
	Priority int
	seq      int
}

// Collection holds every rule of a survey, keyed by question index.
type Collection struct {
	rules map[int][]Rule
	next  int
}

// NewCollection returns an empty rule collection.
func NewCollection() *Collection {
	return &Collection{rules: make(map[int][]Rule)}
}

// Add registers a rule. Registration order breaks priority ties.
func (c *Collection) Add(r Rule) {
	r.seq = c.next
	c.next++
	c.rules[r.Question] = append(c.rules[r.Question], r)
}

// Len returns the number of registered rules.
func (c *Collection) Len() int {
	n := 0
	for _, rs := range c.rules {
		n += len(rs)
	}
	return n
}

// GateAction is the pre-execution decision for a question.
type GateAction int

const (
	GateExecute GateAction = iota // run the question normally
	GateSkip                      // record as skipped, advance by one
	GateStop                      // end the interview now
)

// Engine evaluates a survey's rules against answered-so-far state.
type Engine struct {
	col  *Collection
	last int // index of the final question
}

// NewEngine builds an engine for a survey of questionCount questions.
func NewEngine(col *Collection, questionCount int) *Engine {
	if col == nil {
		col = NewCollection()
	}
	return &Engine{col: col, last: questionCount - 1}
}

// Gate evaluates the stop and skip rules registered on index, before the
// question executes. Stop outranks skip regardless of priority values.
// An expression that cannot be evaluated surfaces as an *EvalError.
func (e *Engine) Gate(index int, answers map[string]Value) (GateAction, error) {
	fired, err := e.firing(index, answers, CategoryStop)
	if err != nil {
		return GateExecute, err
	}
	if fired != nil {
		return GateStop, nil
	}

	fired, err = e.firing(index, answers, CategorySkip)
	if err != nil {
		return GateExecute, err
	}
	if fired != nil {
		return GateSkip, nil
	}
	return GateExecute, nil
}

// Next picks the index after the question at index has been answered.
// Jump rules on the index are consulted first; with none firing, the default
// rule advances by one, or returns EndOfSurvey past the final question.
func (e *Engine) Next(index int, answers map[string]Value) (int, error) {
	fired, err := e.firing(index, answers, CategoryJump)
	if err != nil {
		return 0, err
	}
	if fired != nil {
		return fired.Target, nil
	}
	if index >= e.last {
		return EndOfSurvey, nil
	}
	return index + 1, nil
}

// firing returns the winning true rule of the given category on index, or
// nil when none fire. Every candidate is evaluated so that a broken
// expression fails loudly even when a lower-priority rule would match.
func (e *Engine) firing(index int, answers map[string]Value, cat Category) (*Rule, error) {
	candidates := make([]Rule, 0, 2)
	for _, r := range e.col.rules[index] {
		if r.Category != cat {
			continue
		}
		v, err := r.Cond.Eval(answers)
		if err != nil {
			return nil, eris.Wrapf(err, "rules: question %d", index)
		}
		if v.Kind != KindBool {
			return nil, &EvalError{Expr: r.Source, Reason: "condition is not boolean"}
		}
		if v.Bool {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].seq < candidates[j].seq
	})
	return &candidates[0], nil
}
