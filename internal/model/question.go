package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// QuestionType tags how a question's response is constrained and parsed.
type QuestionType string

const (
	FreeText       QuestionType = "free_text"
	MultipleChoice QuestionType = "multiple_choice"
	CheckBox       QuestionType = "checkbox"
	Numerical      QuestionType = "numerical"
	LinearScale    QuestionType = "linear_scale"
	ListQuestion   QuestionType = "list"
)

// Question is a single survey item. Immutable once added to a Survey.
type Question struct {
	Name    string       `json:"name" yaml:"name"`
	Text    string       `json:"text" yaml:"text"`
	Type    QuestionType `json:"type" yaml:"type"`
	Options []string     `json:"options,omitempty" yaml:"options,omitempty"`
	Min     *float64     `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *float64     `json:"max,omitempty" yaml:"max,omitempty"`
}

// validIdent reports whether s is usable as a question name: it must look
// like an identifier because rule expressions and prompt placeholders
// reference answers by question name.
func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Validate checks structural constraints on the question definition.
func (q Question) Validate() error {
	if !validIdent(q.Name) {
		return eris.Errorf("question %q: name is not a valid identifier", q.Name)
	}
	if strings.TrimSpace(q.Text) == "" {
		return eris.Errorf("question %q: empty text", q.Name)
	}
	switch q.Type {
	case FreeText, Numerical, ListQuestion:
	case MultipleChoice, CheckBox:
		if len(q.Options) == 0 {
			return eris.Errorf("question %q: %s requires options", q.Name, q.Type)
		}
	case LinearScale:
		if q.Min == nil || q.Max == nil {
			return eris.Errorf("question %q: linear_scale requires min and max", q.Name)
		}
		if *q.Min >= *q.Max {
			return eris.Errorf("question %q: linear_scale min must be below max", q.Name)
		}
	default:
		return eris.Errorf("question %q: unknown type %q", q.Name, q.Type)
	}
	return nil
}

// ParseResponse converts raw provider text into a typed Answer, validating it
// against the question's constraints. Options are passed in already rendered
// (option lists may themselves be templates). For non-free-text questions the
// first line is the value and any remaining lines form an optional comment.
func (q Question) ParseResponse(content string, options []string) (Answer, string, error) {
	content = strings.TrimSpace(content)
	if q.Type == FreeText {
		if content == "" {
			return None(), "", eris.Errorf("question %q: empty response", q.Name)
		}
		return TextAnswer(content), "", nil
	}

	value, comment := splitComment(content)
	switch q.Type {
	case MultipleChoice:
		opt, ok := matchOption(value, options)
		if !ok {
			return None(), "", eris.Errorf("question %q: %q is not one of the offered options", q.Name, value)
		}
		return TextAnswer(opt), comment, nil

	case CheckBox:
		parts := splitList(value)
		if len(parts) == 0 {
			return None(), "", eris.Errorf("question %q: empty selection", q.Name)
		}
		picked := make([]string, 0, len(parts))
		for _, p := range parts {
			opt, ok := matchOption(p, options)
			if !ok {
				return None(), "", eris.Errorf("question %q: %q is not one of the offered options", q.Name, p)
			}
			picked = append(picked, opt)
		}
		return ListAnswer(picked), comment, nil

	case Numerical, LinearScale:
		f, err := strconv.ParseFloat(strings.TrimSuffix(value, "."), 64)
		if err != nil {
			return None(), "", eris.Errorf("question %q: %q is not numeric", q.Name, value)
		}
		if q.Min != nil && f < *q.Min {
			return None(), "", eris.Errorf("question %q: %v is below minimum %v", q.Name, f, *q.Min)
		}
		if q.Max != nil && f > *q.Max {
			return None(), "", eris.Errorf("question %q: %v is above maximum %v", q.Name, f, *q.Max)
		}
		return NumberAnswer(f), comment, nil

	case ListQuestion:
		parts := splitList(value)
		if len(parts) == 0 {
			return None(), "", eris.Errorf("question %q: empty list response", q.Name)
		}
		if q.Max != nil && float64(len(parts)) > *q.Max {
			return None(), "", eris.Errorf("question %q: %d items exceeds maximum %v", q.Name, len(parts), *q.Max)
		}
		return ListAnswer(parts), comment, nil
	}
	return None(), "", eris.Errorf("question %q: unhandled type %q", q.Name, q.Type)
}

// FormatInstruction returns the per-type response format directive appended
// to the rendered user text.
func (q Question) FormatInstruction(options []string) string {
	switch q.Type {
	case MultipleChoice:
		return fmt.Sprintf("Respond with exactly one of the options: %s.\nYou may add an explanatory comment on a new line.", strings.Join(options, ", "))
	case CheckBox:
		return fmt.Sprintf("Respond with a comma-separated subset of the options: %s.\nYou may add an explanatory comment on a new line.", strings.Join(options, ", "))
	case Numerical:
		return "Respond with a single number on the first line.\nYou may add an explanatory comment on a new line."
	case LinearScale:
		return fmt.Sprintf("Respond with a whole number between %v and %v on the first line.\nYou may add an explanatory comment on a new line.", *q.Min, *q.Max)
	case ListQuestion:
		return "Respond with a comma-separated list on the first line.\nYou may add an explanatory comment on a new line."
	default:
		return "Respond in plain text."
	}
}

func splitComment(content string) (string, string) {
	value, rest, found := strings.Cut(content, "\n")
	if !found {
		return strings.TrimSpace(value), ""
	}
	return strings.TrimSpace(value), strings.TrimSpace(rest)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// matchOption compares case-insensitively and returns the canonical option.
func matchOption(value string, options []string) (string, bool) {
	for _, opt := range options {
		if strings.EqualFold(strings.TrimSpace(value), opt) {
			return opt, true
		}
	}
	return "", false
}
