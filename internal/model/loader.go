package model

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/quorum-research/survey-cli/internal/memory"
)

// jobFile is the YAML definition format consumed by the CLI.
type jobFile struct {
	Survey struct {
		Questions []Question   `yaml:"questions"`
		Rules     []ruleDef    `yaml:"rules"`
		Memory    []memoryDef  `yaml:"memory"`
	} `yaml:"survey"`
	Agents    []Agent             `yaml:"agents"`
	Scenarios []map[string]string `yaml:"scenarios"`
	Models    []ModelSpec         `yaml:"models"`
	N         int                 `yaml:"n"`
}

type ruleDef struct {
	Question string `yaml:"question"`
	Kind     string `yaml:"kind"` // skip, stop, jump
	When     string `yaml:"when"`
	To       string `yaml:"to,omitempty"`
	Priority int    `yaml:"priority,omitempty"`
}

type memoryDef struct {
	Question string            `yaml:"question"`
	Policy   memory.PolicyKind `yaml:"policy"`
	Lag      int               `yaml:"lag,omitempty"`
	Targets  []string          `yaml:"targets,omitempty"`
}

// LoadJobFile reads a complete job definition (survey, agents, scenarios,
// models, iteration count) from a YAML file.
func LoadJobFile(path string) (*Job, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "model: read %s", path)
	}
	return ParseJob(raw)
}

// ParseJob builds a Job from YAML bytes.
func ParseJob(raw []byte) (*Job, error) {
	var f jobFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, eris.Wrap(err, "model: parse job yaml")
	}

	s, err := NewSurvey(f.Survey.Questions...)
	if err != nil {
		return nil, err
	}
	for _, r := range f.Survey.Rules {
		switch r.Kind {
		case "skip":
			err = s.AddSkipRule(r.Question, r.When)
		case "stop":
			err = s.AddStopRule(r.Question, r.When)
		case "jump", "":
			err = s.AddJumpRule(r.Question, r.When, r.To, r.Priority)
		default:
			err = eris.Errorf("model: unknown rule kind %q", r.Kind)
		}
		if err != nil {
			return nil, err
		}
	}
	for _, m := range f.Survey.Memory {
		if err := s.SetMemory(m.Question, m.Policy, m.Lag, m.Targets); err != nil {
			return nil, err
		}
	}

	job := &Job{
		Survey: s,
		Agents: f.Agents,
		Models: f.Models,
		N:      f.N,
	}
	for _, kv := range f.Scenarios {
		job.Scenarios = append(job.Scenarios, NewScenario(kv))
	}
	return job, nil
}
