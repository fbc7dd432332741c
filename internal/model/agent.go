package model

import (
	"sort"
)

// Agent is a simulated respondent persona: named trait values plus an
// optional system instruction. Agents are read-only during a run and are
// used only for prompt substitution.
type Agent struct {
	Name        string            `json:"name,omitempty" yaml:"name,omitempty"`
	Traits      map[string]string `json:"traits,omitempty" yaml:"traits,omitempty"`
	Instruction string            `json:"instruction,omitempty" yaml:"instruction,omitempty"`
}

// TraitKeys returns the trait names in sorted order so that rendered system
// text is deterministic for identical agents.
func (a Agent) TraitKeys() []string {
	keys := make([]string, 0, len(a.Traits))
	for k := range a.Traits {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Label identifies the agent in results and logs.
func (a Agent) Label() string {
	if a.Name != "" {
		return a.Name
	}
	if len(a.Traits) == 0 {
		return "agent"
	}
	keys := a.TraitKeys()
	return "agent{" + keys[0] + "=" + a.Traits[keys[0]] + "}"
}
