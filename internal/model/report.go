package model

import "time"

// NotAvailable marks an absent score in tabular and narrative output.
const NotAvailable = "NA"

// Presence is the threshold-based summary of one pillar.
type Presence string

const (
	PresencePresent      Presence = "Present"
	PresenceNotPresent   Presence = "Not Present"
	PresenceNotAvailable Presence = "Not Available"
)

// AggregatedScore holds per-pillar sub-scores and the composite.
// Composite is absent exactly when every sub-score is absent.
type AggregatedScore struct {
	SubScores map[Pillar]NullFloat `json:"sub_scores" yaml:"sub_scores"`
	Composite NullFloat            `json:"composite" yaml:"composite"`
}

// SubScore returns the pillar's sub-score.
func (a AggregatedScore) SubScore(p Pillar) NullFloat {
	return a.SubScores[p]
}

// Present returns the pillars with a sub-score, in reporting order.
func (a AggregatedScore) Present() []Pillar {
	var out []Pillar
	for _, p := range Pillars {
		if a.SubScores[p].Valid {
			out = append(out, p)
		}
	}
	return out
}

// ComplianceReport is the full evaluation outcome for one dataset.
type ComplianceReport struct {
	File        string                  `json:"file" yaml:"file"`
	GeneratedAt time.Time               `json:"generated_at" yaml:"generated_at"`
	Columns     []string                `json:"columns" yaml:"columns"`
	Kept        []string                `json:"kept_columns" yaml:"kept_columns"`
	Results     map[Pillar]PillarResult `json:"results" yaml:"results"`
	Score       AggregatedScore         `json:"score" yaml:"score"`
	Summary     map[Pillar]Presence     `json:"summary" yaml:"summary"`
	Narrative   string                  `json:"narrative" yaml:"narrative"`
}

// Result returns the pillar's raw result.
func (r *ComplianceReport) Result(p Pillar) PillarResult {
	return r.Results[p]
}

// SummaryRow is one line of the consolidated batch table.
type SummaryRow struct {
	File      string               `json:"file"`
	SubScores map[Pillar]NullFloat `json:"sub_scores"`
	Composite NullFloat            `json:"composite"`
	Error     string               `json:"error,omitempty"`
}

// RowFromReport builds a summary row from a finished report.
func RowFromReport(r *ComplianceReport) SummaryRow {
	return SummaryRow{File: r.File, SubScores: r.Score.SubScores, Composite: r.Score.Composite}
}

// RowFromFailure builds an all-NA summary row for a dataset that could not be evaluated.
func RowFromFailure(file string, err error) SummaryRow {
	row := SummaryRow{File: file, SubScores: map[Pillar]NullFloat{}}
	if err != nil {
		row.Error = err.Error()
	}
	return row
}

// RunSummary collects the outcome of a batch, in input order.
type RunSummary struct {
	Reports []*ComplianceReport `json:"reports"`
	Rows    []SummaryRow        `json:"rows"`
}

// Succeeded returns the number of datasets that produced a report.
func (s *RunSummary) Succeeded() int {
	return len(s.Reports)
}

// Failed returns the number of datasets that produced no report.
func (s *RunSummary) Failed() int {
	return len(s.Rows) - len(s.Reports)
}
