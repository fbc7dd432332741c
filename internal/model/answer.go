package model

import (
	"fmt"
	"strconv"
	"strings"
)

// AnswerKind discriminates the typed value held by an Answer.
type AnswerKind string

const (
	AnswerNone   AnswerKind = "none"
	AnswerText   AnswerKind = "text"
	AnswerNumber AnswerKind = "number"
	AnswerList   AnswerKind = "list"
)

// Answer is the typed value recorded for one question in one interview.
// A skipped or failed question carries an AnswerNone value.
type Answer struct {
	Kind   AnswerKind `json:"kind"`
	Text   string     `json:"text,omitempty"`
	Number float64    `json:"number,omitempty"`
	Items  []string   `json:"items,omitempty"`
}

// None returns the absent answer.
func None() Answer {
	return Answer{Kind: AnswerNone}
}

// TextAnswer wraps a free-text or single-choice value.
func TextAnswer(s string) Answer {
	return Answer{Kind: AnswerText, Text: s}
}

// NumberAnswer wraps a numeric or linear-scale value.
func NumberAnswer(f float64) Answer {
	return Answer{Kind: AnswerNumber, Number: f}
}

// ListAnswer wraps a multi-select or list value.
func ListAnswer(items []string) Answer {
	return Answer{Kind: AnswerList, Items: items}
}

// IsNone reports whether the answer is absent (skipped, unreached or failed).
func (a Answer) IsNone() bool {
	return a.Kind == AnswerNone || a.Kind == ""
}

// Item returns the i-th element of a list answer.
func (a Answer) Item(i int) (string, bool) {
	if a.Kind != AnswerList || i < 0 || i >= len(a.Items) {
		return "", false
	}
	return a.Items[i], true
}

// String renders the answer as it appears in prompts and memory preambles.
func (a Answer) String() string {
	switch a.Kind {
	case AnswerText:
		return a.Text
	case AnswerNumber:
		return strconv.FormatFloat(a.Number, 'f', -1, 64)
	case AnswerList:
		return strings.Join(a.Items, ", ")
	default:
		return ""
	}
}

// TokenUsage tracks token consumption and attributed cost for one or more calls.
type TokenUsage struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// Add merges token usage from another instance.
func (t *TokenUsage) Add(other TokenUsage) {
	t.InputTokens += other.InputTokens
	t.OutputTokens += other.OutputTokens
	t.Cost += other.Cost
}

func (t TokenUsage) String() string {
	return fmt.Sprintf("in=%d out=%d cost=$%.4f", t.InputTokens, t.OutputTokens, t.Cost)
}
