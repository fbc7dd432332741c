// Package render resolves question, agent, scenario, and prior-answer
// placeholders into the concrete request text sent to a model provider.
package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/quorum-research/survey-cli/internal/memory"
	"github.com/quorum-research/survey-cli/internal/model"
)

// UnresolvedTemplateError marks a placeholder no substitution source could
// fill. A stale placeholder reaching a provider means the caller paired the
// survey with the wrong scenario or agent, so this is a hard error rather
// than pass-through text.
type UnresolvedTemplateError struct {
	Placeholder string
	Question    string
}

func (e *UnresolvedTemplateError) Error() string {
	return fmt.Sprintf("render: question %q: unresolved placeholder {{%s}}", e.Question, e.Placeholder)
}

// Context carries everything one render needs. All fields are read-only.
type Context struct {
	Question model.Question
	Agent    model.Agent
	Scenario model.Scenario
	Answers  map[string]model.Answer
	Memory   []memory.Pair
}

// Prompt is the rendered request: system text (agent persona) and user text
// (context preamble, question, options, format directive).
type Prompt struct {
	System  string
	User    string
	Options []string // resolved option list, empty for open questions
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)?(?:\[\d+\])?)\s*\}\}`)

// Render produces the deterministic prompt for one question. Identical
// inputs always yield byte-identical output; the cache fingerprint depends
// on it.
func Render(ctx Context) (Prompt, error) {
	options, err := resolveOptions(ctx)
	if err != nil {
		return Prompt{}, err
	}

	text, err := substitute(ctx, ctx.Question.Text)
	if err != nil {
		return Prompt{}, err
	}

	var user strings.Builder
	if len(ctx.Memory) > 0 {
		user.WriteString("Previously answered:\n")
		for _, pair := range ctx.Memory {
			user.WriteString("Q: ")
			user.WriteString(pair.Question)
			user.WriteString("\nA: ")
			user.WriteString(pair.Answer)
			user.WriteString("\n")
		}
		user.WriteString("\n")
	}
	user.WriteString(text)
	if len(options) > 0 {
		user.WriteString("\n\nOptions:\n")
		for _, opt := range options {
			user.WriteString("- ")
			user.WriteString(opt)
			user.WriteString("\n")
		}
	}
	user.WriteString("\n")
	user.WriteString(ctx.Question.FormatInstruction(options))

	return Prompt{
		System:  SystemText(ctx.Agent),
		User:    user.String(),
		Options: options,
	}, nil
}

// SystemText builds the persona block for an agent. It depends only on the
// agent, so it is identical across every question of an interview.
func SystemText(agent model.Agent) string {
	var b strings.Builder
	b.WriteString("You are answering survey questions as a simulated respondent.")
	if agent.Instruction != "" {
		b.WriteString("\n")
		b.WriteString(agent.Instruction)
	}
	if len(agent.Traits) > 0 {
		b.WriteString("\nYour persona:\n")
		for _, k := range agent.TraitKeys() {
			b.WriteString("- ")
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(agent.Traits[k])
			b.WriteString("\n")
		}
	}
	return b.String()
}

// resolveOptions renders each option template. An option that is exactly one
// prior-answer placeholder resolving to a list answer expands into the
// list's items, so a question can offer a previous list answer as choices.
func resolveOptions(ctx Context) ([]string, error) {
	if len(ctx.Question.Options) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(ctx.Question.Options))
	for _, opt := range ctx.Question.Options {
		if items, ok, err := expandListOption(ctx, opt); err != nil {
			return nil, err
		} else if ok {
			out = append(out, items...)
			continue
		}
		resolved, err := substitute(ctx, opt)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}

func expandListOption(ctx Context, opt string) ([]string, bool, error) {
	m := placeholderRe.FindStringSubmatch(strings.TrimSpace(opt))
	if m == nil || m[0] != strings.TrimSpace(opt) {
		return nil, false, nil
	}
	name, field, index := splitRef(m[1])
	if field != "answer" || index >= 0 {
		return nil, false, nil
	}
	ans, ok := ctx.Answers[name]
	if !ok || ans.Kind != model.AnswerList {
		return nil, false, nil
	}
	return ans.Items, true, nil
}

// substitute fills every placeholder in template. Resolution precedence for
// a conflicting key: scenario value, then "name.answer" prior-answer
// reference, then "agent.trait" reference.
func substitute(ctx Context, template string) (string, error) {
	var firstErr error
	out := placeholderRe.ReplaceAllStringFunc(template, func(raw string) string {
		m := placeholderRe.FindStringSubmatch(raw)
		val, err := resolveRef(ctx, m[1])
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return val
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func resolveRef(ctx Context, ref string) (string, error) {
	name, field, index := splitRef(ref)

	// Scenario values win placeholder conflicts.
	if field == "" {
		if v, ok := ctx.Scenario.Values[name]; ok {
			return v, nil
		}
	}

	// Prior answers: "name.answer" and "name.answer[i]".
	if field == "answer" {
		ans, ok := ctx.Answers[name]
		if ok && !ans.IsNone() {
			if index >= 0 {
				item, ok := ans.Item(index)
				if !ok {
					return "", &UnresolvedTemplateError{Placeholder: ref, Question: ctx.Question.Name}
				}
				return item, nil
			}
			return ans.String(), nil
		}
		return "", &UnresolvedTemplateError{Placeholder: ref, Question: ctx.Question.Name}
	}

	// Agent traits: "agent.trait".
	if name == "agent" && field != "" {
		if v, ok := ctx.Agent.Traits[field]; ok {
			return v, nil
		}
	}

	return "", &UnresolvedTemplateError{Placeholder: ref, Question: ctx.Question.Name}
}

// splitRef decomposes "name", "name.field", and "name.field[i]".
// index is -1 when absent.
func splitRef(ref string) (name, field string, index int) {
	index = -1
	if i := strings.IndexByte(ref, '['); i >= 0 {
		if j := strings.IndexByte(ref, ']'); j > i {
			if n, err := strconv.Atoi(ref[i+1 : j]); err == nil {
				index = n
			}
		}
		ref = ref[:i]
	}
	name, field, _ = strings.Cut(ref, ".")
	return name, field, index
}

// References returns the names of prior questions a template depends on via
// "name.answer" placeholders. The interview uses this to detect renders
// that depend on a failed upstream answer.
func References(templates ...string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tpl := range templates {
		for _, m := range placeholderRe.FindAllStringSubmatch(tpl, -1) {
			name, field, _ := splitRef(m[1])
			if field == "answer" && !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}
