package model

import (
	"github.com/rotisserie/eris"
)

// Scenario is a bundle of named values substituted into question text and
// option templates. Scenarios are immutable; combinators return new values.
type Scenario struct {
	Values map[string]string `json:"values,omitempty" yaml:"values,omitempty"`
}

// NewScenario copies kv into a fresh Scenario.
func NewScenario(kv map[string]string) Scenario {
	values := make(map[string]string, len(kv))
	for k, v := range kv {
		values[k] = v
	}
	return Scenario{Values: values}
}

// Merge unions two scenarios. Key collisions are an error: a silent
// overwrite would make it ambiguous which source a placeholder resolves
// from. Use MergePrefer when overwriting is intended.
func (s Scenario) Merge(other Scenario) (Scenario, error) {
	out := NewScenario(s.Values)
	for k, v := range other.Values {
		if _, exists := out.Values[k]; exists {
			return Scenario{}, eris.Errorf("scenario merge: duplicate key %q", k)
		}
		out.Values[k] = v
	}
	return out, nil
}

// MergePrefer unions two scenarios; on collision the value from other wins.
func (s Scenario) MergePrefer(other Scenario) Scenario {
	out := NewScenario(s.Values)
	for k, v := range other.Values {
		out.Values[k] = v
	}
	return out
}

// CrossScenarios returns the cartesian product of two scenario lists,
// merging each pair. A key collision in any pair fails the whole product.
func CrossScenarios(a, b []Scenario) ([]Scenario, error) {
	if len(a) == 0 {
		return append([]Scenario(nil), b...), nil
	}
	if len(b) == 0 {
		return append([]Scenario(nil), a...), nil
	}
	out := make([]Scenario, 0, len(a)*len(b))
	for _, sa := range a {
		for _, sb := range b {
			merged, err := sa.Merge(sb)
			if err != nil {
				return nil, err
			}
			out = append(out, merged)
		}
	}
	return out, nil
}
