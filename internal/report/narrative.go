package report

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/compliance-cli/internal/model"
)

var signalNotes = map[model.SignalKind]string{
	model.SignalAuditability:   "This checks if decision-making logs are available.",
	model.SignalExplainability: "This verifies if justifications for decisions are recorded.",
	model.SignalTraceability:   "This ensures that model decisions are tracked over time.",
}

// Narrative renders the human-readable conclusion for one report.
func Narrative(r *model.ComplianceReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Final Note (Overall Compliance Score): %s (0-1 scale)\n\n", r.Score.Composite)
	for _, p := range model.Pillars {
		fmt.Fprintf(&b, "%s Score: %s\n", p.Title(), r.Score.SubScore(p))
	}

	title := cases.Title(language.English)
	acc := r.Result(model.PillarAccountability)
	b.WriteString("Accountability:\n")
	for _, k := range model.SignalKinds {
		state := model.PresenceNotPresent
		switch {
		case acc.Failed():
			state = model.PresenceNotAvailable
		case acc.Flag(string(k)):
			state = model.PresencePresent
		}
		fmt.Fprintf(&b, "- %s: %s.\n  %s\n", title.String(string(k)), state, signalNotes[k])
	}
	return b.String()
}

// RunNarrative concatenates the narratives of a batch, one section per file,
// followed by failed datasets.
func RunNarrative(s *model.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Compliance run: %d dataset(s), %d evaluated, %d failed\n\n",
		len(s.Rows), s.Succeeded(), s.Failed())
	for _, r := range s.Reports {
		fmt.Fprintf(&b, "== %s ==\n", r.File)
		b.WriteString(r.Narrative)
		b.WriteString("\n")
	}
	for _, row := range s.Rows {
		if row.Error == "" {
			continue
		}
		fmt.Fprintf(&b, "== %s ==\nNot evaluated: %s\n\n", row.File, row.Error)
	}
	return b.String()
}
