package results

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
)

// WriteCSV flattens the collection to CSV: one row per interview, one
// column per question, preceded by identity columns. Agent trait and
// scenario columns are the union across records, sorted for stable output.
func (r *Results) WriteCSV(w io.Writer) error {
	traitCols := map[string]bool{}
	scenarioCols := map[string]bool{}
	questionCols := []string{}
	seenQ := map[string]bool{}
	for _, rec := range r.Records {
		for k := range rec.AgentTraits {
			traitCols[k] = true
		}
		for k := range rec.Scenario {
			scenarioCols[k] = true
		}
		for _, q := range rec.Questions {
			if !seenQ[q.Name] {
				seenQ[q.Name] = true
				questionCols = append(questionCols, q.Name)
			}
		}
	}
	traits := sortedKeys(traitCols)
	scenarios := sortedKeys(scenarioCols)

	header := []string{"interview_id", "model", "iteration", "status"}
	for _, k := range traits {
		header = append(header, "agent."+k)
	}
	for _, k := range scenarios {
		header = append(header, "scenario."+k)
	}
	header = append(header, questionCols...)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "results: write csv header")
	}

	for _, rec := range r.Records {
		row := []string{rec.ID, rec.Model, strconv.Itoa(rec.Iteration), string(rec.Status)}
		for _, k := range traits {
			row = append(row, rec.AgentTraits[k])
		}
		for _, k := range scenarios {
			row = append(row, rec.Scenario[k])
		}
		for _, name := range questionCols {
			row = append(row, rec.Answer(name).String())
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "results: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "results: flush csv")
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
