package model

import (
	"github.com/rotisserie/eris"
)

// Job pairs a survey with the cross product of agents, models, and
// scenarios to run, repeated N times. Jobs are ephemeral: built right
// before execution and discarded after.
type Job struct {
	Survey    *Survey
	Agents    []Agent
	Models    []ModelSpec
	Scenarios []Scenario
	N         int
}

// Normalize fills empty dimensions with their single-element defaults (one
// empty agent, one empty scenario, the supplied default model) and
// validates the job. It returns the job for chaining.
func (j *Job) Normalize(defaultModel ModelSpec) (*Job, error) {
	if j.Survey == nil || len(j.Survey.Questions) == 0 {
		return nil, eris.New("job: survey has no questions")
	}
	if len(j.Agents) == 0 {
		j.Agents = []Agent{{}}
	}
	if len(j.Scenarios) == 0 {
		j.Scenarios = []Scenario{{}}
	}
	if len(j.Models) == 0 {
		j.Models = []ModelSpec{defaultModel}
	}
	for _, m := range j.Models {
		if m.Provider == "" || m.Name == "" {
			return nil, eris.Errorf("job: model %q missing provider or name", m.String())
		}
	}
	if j.N <= 0 {
		j.N = 1
	}
	return j, nil
}

// Size returns the number of interviews the job enumerates.
func (j *Job) Size() int {
	return len(j.Agents) * len(j.Models) * len(j.Scenarios) * j.N
}
