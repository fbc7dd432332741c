package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorum-research/survey-cli/internal/memory"
	"github.com/quorum-research/survey-cli/internal/model"
)

func baseContext() Context {
	return Context{
		Question: model.Question{
			Name: "q2",
			Text: "How do you feel about {{product}} as a {{agent.occupation}}?",
			Type: model.FreeText,
		},
		Agent: model.Agent{
			Name:        "nurse",
			Traits:      map[string]string{"occupation": "nurse", "age": "34"},
			Instruction: "Answer in first person.",
		},
		Scenario: model.Scenario{Values: map[string]string{"product": "the new rota app"}},
		Answers:  map[string]model.Answer{"q1": model.TextAnswer("cautiously positive")},
	}
}

func TestRenderSubstitution(t *testing.T) {
	t.Parallel()

	p, err := Render(baseContext())
	require.NoError(t, err)

	assert.Contains(t, p.User, "How do you feel about the new rota app as a nurse?")
	assert.Contains(t, p.System, "occupation: nurse")
	assert.Contains(t, p.System, "Answer in first person.")
	assert.Empty(t, p.Options)
}

func TestRenderDeterministic(t *testing.T) {
	t.Parallel()

	first, err := Render(baseContext())
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		p, err := Render(baseContext())
		require.NoError(t, err)
		assert.Equal(t, first.System, p.System)
		assert.Equal(t, first.User, p.User)
	}
}

func TestRenderPriorAnswer(t *testing.T) {
	t.Parallel()

	ctx := baseContext()
	ctx.Question.Text = "Earlier you said {{q1.answer}}. Why?"

	p, err := Render(ctx)
	require.NoError(t, err)
	assert.Contains(t, p.User, "Earlier you said cautiously positive.")
}

func TestRenderListItemIndex(t *testing.T) {
	t.Parallel()

	ctx := baseContext()
	ctx.Answers["picks"] = model.ListAnswer([]string{"red", "green", "blue"})
	ctx.Question.Text = "Tell me more about {{picks.answer[1]}}."

	p, err := Render(ctx)
	require.NoError(t, err)
	assert.Contains(t, p.User, "Tell me more about green.")
}

func TestRenderPrecedence(t *testing.T) {
	t.Parallel()

	// A bare {{name}} that exists in the scenario resolves from the scenario
	// even when an answer of the same name exists.
	ctx := baseContext()
	ctx.Scenario.Values["q1"] = "scenario wins"
	ctx.Question.Text = "Value: {{q1}}"

	p, err := Render(ctx)
	require.NoError(t, err)
	assert.Contains(t, p.User, "Value: scenario wins")
}

func TestRenderUnresolved(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{"unknown placeholder", "What about {{nonexistent}}?"},
		{"unanswered reference", "You said {{q9.answer}}."},
		{"index out of range", "Pick {{q1.answer[5]}}."},
		{"unknown trait", "As a {{agent.height}} person?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := baseContext()
			ctx.Question.Text = tt.text

			_, err := Render(ctx)
			var unresolved *UnresolvedTemplateError
			require.ErrorAs(t, err, &unresolved)
			assert.Equal(t, "q2", unresolved.Question)
		})
	}
}

func TestRenderOptions(t *testing.T) {
	t.Parallel()

	ctx := baseContext()
	ctx.Question.Type = model.MultipleChoice
	ctx.Question.Options = []string{"love {{product}}", "hate it"}

	p, err := Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"love the new rota app", "hate it"}, p.Options)
	assert.Contains(t, p.User, "- love the new rota app\n")
	assert.Contains(t, p.User, "Respond with exactly one of the options")
}

func TestRenderListOptionExpansion(t *testing.T) {
	t.Parallel()

	ctx := baseContext()
	ctx.Answers["brands"] = model.ListAnswer([]string{"Acme", "Globex"})
	ctx.Question.Type = model.MultipleChoice
	ctx.Question.Options = []string{"{{brands.answer}}", "none of these"}

	p, err := Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme", "Globex", "none of these"}, p.Options)
}

func TestRenderMemoryPreamble(t *testing.T) {
	t.Parallel()

	ctx := baseContext()
	ctx.Memory = []memory.Pair{
		{Question: "What is your role?", Answer: "nurse"},
		{Question: "Years of experience?", Answer: "12"},
	}

	p, err := Render(ctx)
	require.NoError(t, err)
	assert.Contains(t, p.User, "Previously answered:\nQ: What is your role?\nA: nurse\nQ: Years of experience?\nA: 12\n")
}

func TestSystemTextSortedTraits(t *testing.T) {
	t.Parallel()

	agent := model.Agent{Traits: map[string]string{"zeta": "1", "alpha": "2", "mid": "3"}}
	text := SystemText(agent)

	assert.Less(t, strings.Index(text, "alpha"), strings.Index(text, "mid"))
	assert.Less(t, strings.Index(text, "mid"), strings.Index(text, "zeta"))
}

func TestReferences(t *testing.T) {
	t.Parallel()

	refs := References(
		"You said {{q1.answer}} and {{q3.answer[0]}}.",
		"Scenario {{product}} and trait {{agent.age}}.",
		"Again {{q1.answer}}.",
	)
	assert.Equal(t, []string{"q1", "q3"}, refs)
}
