package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ModelSpec identifies one language-model backend: provider, model name,
// request parameters, and the usage ceilings its service enforces.
type ModelSpec struct {
	Provider    string   `json:"provider" yaml:"provider"`
	Name        string   `json:"name" yaml:"name"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int64    `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	RPM         float64  `json:"rpm,omitempty" yaml:"rpm,omitempty"`
	TPM         float64  `json:"tpm,omitempty" yaml:"tpm,omitempty"`
}

// Identity returns the provider-qualified model name. Rate limiters are
// keyed by this value: two specs with different parameters but the same
// identity share one admission budget.
func (m ModelSpec) Identity() string {
	return m.Provider + "/" + m.Name
}

// ParamsKey is a canonical rendering of the request parameters, used in the
// cache fingerprint so that parameter changes never alias cached responses.
func (m ModelSpec) ParamsKey() string {
	var b strings.Builder
	b.WriteString("max_tokens=")
	b.WriteString(strconv.FormatInt(m.MaxTokens, 10))
	b.WriteString(";temperature=")
	if m.Temperature != nil {
		b.WriteString(strconv.FormatFloat(*m.Temperature, 'f', -1, 64))
	} else {
		b.WriteString("default")
	}
	return b.String()
}

func (m ModelSpec) String() string {
	return fmt.Sprintf("%s (%s)", m.Identity(), m.ParamsKey())
}
