package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate(t *testing.T) {
	t.Parallel()

	col := NewCollection()
	col.Add(Rule{Question: 2, Category: CategorySkip, Cond: MustParse("q1 == 'no'"), Source: "q1 == 'no'"})
	col.Add(Rule{Question: 3, Category: CategoryStop, Cond: MustParse("q1 == 'quit'"), Source: "q1 == 'quit'"})
	col.Add(Rule{Question: 3, Category: CategorySkip, Cond: MustParse("true"), Source: "true", Priority: 99})
	eng := NewEngine(col, 5)

	tests := []struct {
		name    string
		index   int
		answers map[string]Value
		want    GateAction
	}{
		{"no rules", 0, map[string]Value{}, GateExecute},
		{"skip fires", 2, map[string]Value{"q1": Str("no")}, GateSkip},
		{"skip does not fire", 2, map[string]Value{"q1": Str("yes")}, GateExecute},
		{"stop outranks skip regardless of priority", 3, map[string]Value{"q1": Str("quit")}, GateStop},
		{"skip when stop is false", 3, map[string]Value{"q1": Str("ok")}, GateSkip},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := eng.Gate(tt.index, tt.answers)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNext(t *testing.T) {
	t.Parallel()

	col := NewCollection()
	col.Add(Rule{Question: 0, Category: CategoryJump, Cond: MustParse("q1 == 'end'"), Source: "q1 == 'end'", Target: EndOfSurvey})
	col.Add(Rule{Question: 0, Category: CategoryJump, Cond: MustParse("q1 == 'late'"), Source: "q1 == 'late'", Target: 3})
	eng := NewEngine(col, 4)

	tests := []struct {
		name    string
		index   int
		answers map[string]Value
		want    int
	}{
		{"default advance", 1, map[string]Value{}, 2},
		{"default past last ends", 3, map[string]Value{}, EndOfSurvey},
		{"jump to index", 0, map[string]Value{"q1": Str("late")}, 3},
		{"jump to end", 0, map[string]Value{"q1": Str("end")}, EndOfSurvey},
		{"jump condition false advances", 0, map[string]Value{"q1": Str("other")}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := eng.Next(tt.index, tt.answers)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPriorityAndRegistrationOrder(t *testing.T) {
	t.Parallel()

	col := NewCollection()
	col.Add(Rule{Question: 0, Category: CategoryJump, Cond: MustParse("true"), Source: "true", Target: 1, Priority: 1})
	col.Add(Rule{Question: 0, Category: CategoryJump, Cond: MustParse("true"), Source: "true", Target: 2, Priority: 5})
	col.Add(Rule{Question: 0, Category: CategoryJump, Cond: MustParse("true"), Source: "true", Target: 3, Priority: 5})
	eng := NewEngine(col, 6)

	// Highest priority wins; the tie between the two priority-5 rules goes to
	// the one registered first.
	next, err := eng.Next(0, map[string]Value{})
	require.NoError(t, err)
	assert.Equal(t, 2, next)
}

func TestBrokenExpressionFailsLoudly(t *testing.T) {
	t.Parallel()

	col := NewCollection()
	col.Add(Rule{Question: 0, Category: CategoryJump, Cond: MustParse("true"), Source: "true", Target: 2, Priority: 10})
	col.Add(Rule{Question: 0, Category: CategoryJump, Cond: MustParse("missing == 'x'"), Source: "missing == 'x'", Priority: 1})
	eng := NewEngine(col, 4)

	// Every candidate is evaluated even though the priority-10 rule already
	// matched, so the unanswered reference surfaces.
	_, err := eng.Next(0, map[string]Value{})
	var evalErr *EvalError
	require.ErrorAs(t, err, &evalErr)
}

func TestNonBooleanConditionIsError(t *testing.T) {
	t.Parallel()

	col := NewCollection()
	col.Add(Rule{Question: 0, Category: CategorySkip, Cond: MustParse("q1"), Source: "q1"})
	eng := NewEngine(col, 2)

	_, err := eng.Gate(0, map[string]Value{"q1": Str("blue")})
	var evalErr *EvalError
	require.ErrorAs(t, err, &evalErr)
	assert.Contains(t, evalErr.Reason, "not boolean")
}
