package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func TestQuestionValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		q       Question
		wantErr bool
	}{
		{"free text ok", Question{Name: "q1", Text: "Hello?", Type: FreeText}, false},
		{"bad name", Question{Name: "1q", Text: "Hello?", Type: FreeText}, true},
		{"name with space", Question{Name: "q 1", Text: "Hello?", Type: FreeText}, true},
		{"empty text", Question{Name: "q1", Text: "  ", Type: FreeText}, true},
		{"unknown type", Question{Name: "q1", Text: "Hello?", Type: "radio"}, true},
		{"choice without options", Question{Name: "q1", Text: "Pick", Type: MultipleChoice}, true},
		{"choice with options", Question{Name: "q1", Text: "Pick", Type: MultipleChoice, Options: []string{"a"}}, false},
		{"checkbox without options", Question{Name: "q1", Text: "Pick", Type: CheckBox}, true},
		{"scale without bounds", Question{Name: "q1", Text: "Rate", Type: LinearScale}, true},
		{"scale inverted bounds", Question{Name: "q1", Text: "Rate", Type: LinearScale, Min: floatPtr(5), Max: floatPtr(1)}, true},
		{"scale ok", Question{Name: "q1", Text: "Rate", Type: LinearScale, Min: floatPtr(1), Max: floatPtr(5)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.q.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseResponseFreeText(t *testing.T) {
	t.Parallel()

	q := Question{Name: "q1", Text: "Tell me", Type: FreeText}

	ans, comment, err := q.ParseResponse("  I like it.\nReally.  ", nil)
	require.NoError(t, err)
	assert.Equal(t, TextAnswer("I like it.\nReally."), ans)
	assert.Empty(t, comment)

	_, _, err = q.ParseResponse("   ", nil)
	assert.Error(t, err)
}

func TestParseResponseMultipleChoice(t *testing.T) {
	t.Parallel()

	q := Question{Name: "q1", Text: "Pick", Type: MultipleChoice, Options: []string{"Red", "Blue"}}
	options := []string{"Red", "Blue"}

	ans, comment, err := q.ParseResponse("blue\nbecause the sky", options)
	require.NoError(t, err)
	assert.Equal(t, TextAnswer("Blue"), ans)
	assert.Equal(t, "because the sky", comment)

	_, _, err = q.ParseResponse("Green", options)
	assert.Error(t, err)
}

func TestParseResponseCheckbox(t *testing.T) {
	t.Parallel()

	q := Question{Name: "q1", Text: "Pick", Type: CheckBox, Options: []string{"Red", "Blue", "Green"}}
	options := q.Options

	ans, _, err := q.ParseResponse("red, GREEN", options)
	require.NoError(t, err)
	assert.Equal(t, ListAnswer([]string{"Red", "Green"}), ans)

	_, _, err = q.ParseResponse("red, purple", options)
	assert.Error(t, err)

	_, _, err = q.ParseResponse("", options)
	assert.Error(t, err)
}

func TestParseResponseNumerical(t *testing.T) {
	t.Parallel()

	q := Question{Name: "q1", Text: "How many", Type: Numerical, Min: floatPtr(0), Max: floatPtr(100)}

	ans, comment, err := q.ParseResponse("42.\nroughly", nil)
	require.NoError(t, err)
	assert.Equal(t, NumberAnswer(42), ans)
	assert.Equal(t, "roughly", comment)

	_, _, err = q.ParseResponse("many", nil)
	assert.Error(t, err)

	_, _, err = q.ParseResponse("101", nil)
	assert.Error(t, err)

	_, _, err = q.ParseResponse("-1", nil)
	assert.Error(t, err)
}

func TestParseResponseLinearScale(t *testing.T) {
	t.Parallel()

	q := Question{Name: "q1", Text: "Rate", Type: LinearScale, Min: floatPtr(1), Max: floatPtr(5)}

	ans, _, err := q.ParseResponse("3", nil)
	require.NoError(t, err)
	assert.Equal(t, NumberAnswer(3), ans)

	_, _, err = q.ParseResponse("6", nil)
	assert.Error(t, err)
}

func TestParseResponseList(t *testing.T) {
	t.Parallel()

	q := Question{Name: "q1", Text: "Name three", Type: ListQuestion, Max: floatPtr(3)}

	ans, _, err := q.ParseResponse("apples, pears, plums", nil)
	require.NoError(t, err)
	assert.Equal(t, ListAnswer([]string{"apples", "pears", "plums"}), ans)

	_, _, err = q.ParseResponse("a, b, c, d", nil)
	assert.Error(t, err)
}

func TestAnswerString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hi", TextAnswer("hi").String())
	assert.Equal(t, "2.5", NumberAnswer(2.5).String())
	assert.Equal(t, "a, b", ListAnswer([]string{"a", "b"}).String())
	assert.Equal(t, "", None().String())
	assert.True(t, None().IsNone())
	assert.True(t, Answer{}.IsNone())
}
