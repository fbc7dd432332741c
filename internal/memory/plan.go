// Package memory decides which prior question/answer pairs are injected as
// conversational context when a later question is rendered.
package memory

// PolicyKind names the four context policies.
type PolicyKind string

const (
	PolicyNone     PolicyKind = "none"
	PolicyFull     PolicyKind = "full"
	PolicyLagged   PolicyKind = "lagged"
	PolicyTargeted PolicyKind = "targeted"
)

// Policy configures context injection for a single question.
type Policy struct {
	Kind    PolicyKind `yaml:"policy"`
	Lag     int        `yaml:"lag,omitempty"`     // lagged: number of most recent answers
	Targets []int      `yaml:"targets,omitempty"` // targeted: question indices in declaration order
}

// Pair is one prior question/answer rendered into a prompt preamble.
type Pair struct {
	Question string
	Answer   string
}

// Plan maps question indices to policies. Questions without an entry get
// PolicyNone. Policies are evaluated at render time, not definition time.
type Plan struct {
	policies map[int]Policy
}

// NewPlan returns an empty plan.
func NewPlan() *Plan {
	return &Plan{policies: make(map[int]Policy)}
}

// Set installs the policy for a question index.
func (p *Plan) Set(index int, pol Policy) {
	p.policies[index] = pol
}

// PolicyFor returns the effective policy for index.
func (p *Plan) PolicyFor(index int) Policy {
	if p == nil {
		return Policy{Kind: PolicyNone}
	}
	if pol, ok := p.policies[index]; ok {
		return pol
	}
	return Policy{Kind: PolicyNone}
}

// Select returns the subset of answered question indices whose Q/A pairs
// belong in the context for the question at index. answered must already be
// in survey order. Targeted entries that are not yet answered are dropped
// silently; a target on an unreached index is not an error.
func (p *Plan) Select(index int, answered []int) []int {
	pol := p.PolicyFor(index)
	switch pol.Kind {
	case PolicyFull:
		return append([]int(nil), answered...)
	case PolicyLagged:
		if pol.Lag <= 0 {
			return nil
		}
		if pol.Lag >= len(answered) {
			return append([]int(nil), answered...)
		}
		return append([]int(nil), answered[len(answered)-pol.Lag:]...)
	case PolicyTargeted:
		have := make(map[int]bool, len(answered))
		for _, i := range answered {
			have[i] = true
		}
		var out []int
		for _, t := range pol.Targets {
			if have[t] {
				out = append(out, t)
			}
		}
		return out
	default:
		return nil
	}
}
