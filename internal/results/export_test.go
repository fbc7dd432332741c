package results

import (
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorum-research/survey-cli/internal/model"
)

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	res := &Results{Records: []Record{
		{
			ID:          "iv-1",
			Model:       "scripted/test",
			Iteration:   0,
			Status:      StatusCompleted,
			AgentTraits: map[string]string{"occupation": "nurse"},
			Scenario:    map[string]string{"product": "app"},
			Questions: []QuestionResult{
				{Name: "q1", Answer: model.TextAnswer("yes")},
				{Name: "q2", Answer: model.NumberAnswer(3)},
			},
		},
		{
			ID:        "iv-2",
			Model:     "scripted/test",
			Iteration: 1,
			Status:    StatusTerminated,
			Scenario:  map[string]string{"product": "site", "region": "north"},
			Questions: []QuestionResult{
				{Name: "q1", Answer: model.ListAnswer([]string{"a", "b"})},
				{Name: "q2", Answer: model.None()},
			},
		},
	}}

	var sb strings.Builder
	require.NoError(t, res.WriteCSV(&sb))

	rows, err := csv.NewReader(strings.NewReader(sb.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{
		"interview_id", "model", "iteration", "status",
		"agent.occupation", "scenario.product", "scenario.region",
		"q1", "q2",
	}, rows[0])

	assert.Equal(t, []string{"iv-1", "scripted/test", "0", "completed", "nurse", "app", "", "yes", "3"}, rows[1])
	assert.Equal(t, []string{"iv-2", "scripted/test", "1", "terminated", "", "site", "north", "a, b", ""}, rows[2])
}

func TestWriteCSVEmpty(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	require.NoError(t, (&Results{}).WriteCSV(&sb))

	rows, err := csv.NewReader(strings.NewReader(sb.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"interview_id", "model", "iteration", "status"}, rows[0])
}
