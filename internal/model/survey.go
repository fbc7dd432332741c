package model

import (
	"github.com/rotisserie/eris"

	"github.com/quorum-research/survey-cli/internal/memory"
	"github.com/quorum-research/survey-cli/internal/rules"
)

// Survey is an ordered sequence of questions plus the branching rules and
// memory plan that govern its traversal. A Survey is read-only for the
// duration of a run and is the unit of reuse across jobs.
type Survey struct {
	Questions []Question
	Rules     *rules.Collection
	Memory    *memory.Plan

	index map[string]int
}

// NewSurvey builds a survey from questions, validating each.
func NewSurvey(questions ...Question) (*Survey, error) {
	s := &Survey{
		Rules:  rules.NewCollection(),
		Memory: memory.NewPlan(),
		index:  make(map[string]int),
	}
	for _, q := range questions {
		if err := s.AddQuestion(q); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AddQuestion appends a question. Names must be unique: answers, rule
// expressions, and placeholders all address questions by name.
func (s *Survey) AddQuestion(q Question) error {
	if err := q.Validate(); err != nil {
		return err
	}
	if _, dup := s.index[q.Name]; dup {
		return eris.Errorf("survey: duplicate question name %q", q.Name)
	}
	s.index[q.Name] = len(s.Questions)
	s.Questions = append(s.Questions, q)
	return nil
}

// Index returns the position of the named question.
func (s *Survey) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// AddJumpRule registers "after answering question, if when holds, continue
// at target". An empty or "end" target terminates the interview.
func (s *Survey) AddJumpRule(question, when, target string, priority int) error {
	qi, ok := s.index[question]
	if !ok {
		return eris.Errorf("survey: jump rule on unknown question %q", question)
	}
	ti := rules.EndOfSurvey
	if target != "" && target != "end" {
		ti, ok = s.index[target]
		if !ok {
			return eris.Errorf("survey: jump rule targets unknown question %q", target)
		}
	}
	expr, err := rules.Parse(when)
	if err != nil {
		return err
	}
	s.Rules.Add(rules.Rule{
		Question: qi,
		Category: rules.CategoryJump,
		Cond:     expr,
		Source:   when,
		Target:   ti,
		Priority: priority,
	})
	return nil
}

// AddSkipRule registers "if when holds, do not execute question; record it
// as skipped and advance".
func (s *Survey) AddSkipRule(question, when string) error {
	return s.addGateRule(question, when, rules.CategorySkip)
}

// AddStopRule registers "if when holds on reaching question, terminate the
// interview; the question and everything after it stay unanswered".
func (s *Survey) AddStopRule(question, when string) error {
	return s.addGateRule(question, when, rules.CategoryStop)
}

func (s *Survey) addGateRule(question, when string, cat rules.Category) error {
	qi, ok := s.index[question]
	if !ok {
		return eris.Errorf("survey: rule on unknown question %q", question)
	}
	expr, err := rules.Parse(when)
	if err != nil {
		return err
	}
	s.Rules.Add(rules.Rule{
		Question: qi,
		Category: cat,
		Cond:     expr,
		Source:   when,
	})
	return nil
}

// SetMemory installs a memory policy for the named question. For targeted
// policies, targets are question names resolved to indices here; the
// declaration order of targets is preserved in rendered context.
func (s *Survey) SetMemory(question string, kind memory.PolicyKind, lag int, targets []string) error {
	qi, ok := s.index[question]
	if !ok {
		return eris.Errorf("survey: memory policy on unknown question %q", question)
	}
	pol := memory.Policy{Kind: kind, Lag: lag}
	for _, t := range targets {
		ti, ok := s.index[t]
		if !ok {
			return eris.Errorf("survey: memory policy targets unknown question %q", t)
		}
		pol.Targets = append(pol.Targets, ti)
	}
	s.Memory.Set(qi, pol)
	return nil
}

// Engine returns a rule engine bound to this survey.
func (s *Survey) Engine() *rules.Engine {
	return rules.NewEngine(s.Rules, len(s.Questions))
}

// AnswerValue converts a typed answer into the rule engine's value domain.
func AnswerValue(a Answer) (rules.Value, bool) {
	switch a.Kind {
	case AnswerText:
		return rules.Str(a.Text), true
	case AnswerNumber:
		return rules.Num(a.Number), true
	case AnswerList:
		return rules.List(a.Items), true
	}
	return rules.Value{}, false
}
