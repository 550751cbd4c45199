// Package classify assigns heuristic roles to dataset columns from their names.
package classify

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/compliance-cli/internal/model"
)

// MatchMode selects how a vocabulary is compared against a column name.
type MatchMode int

const (
	// MatchExact requires the folded name to equal a keyword.
	MatchExact MatchMode = iota
	// MatchSubstring requires the folded name to contain a keyword.
	MatchSubstring
)

// Vocabulary is a named keyword list with its matching mode.
type Vocabulary struct {
	Name     string
	Mode     MatchMode
	Keywords []string
}

// Matches reports whether the already-folded name hits the vocabulary.
func (v Vocabulary) Matches(folded string) bool {
	for _, kw := range v.Keywords {
		switch v.Mode {
		case MatchExact:
			if folded == kw {
				return true
			}
		case MatchSubstring:
			if strings.Contains(folded, kw) {
				return true
			}
		}
	}
	return false
}

// SignalRule binds an accountability vocabulary to its signal kind.
type SignalRule struct {
	Kind  model.SignalKind
	Vocab Vocabulary
}

// Rules is the full keyword table used by the classifier and the
// accountability evaluator.
type Rules struct {
	Signals   []SignalRule
	Protected Vocabulary
	Preserve  Vocabulary
}

// DefaultRules returns the built-in keyword table.
func DefaultRules() Rules {
	return Rules{
		Signals: []SignalRule{
			{
				Kind: model.SignalAuditability,
				Vocab: Vocabulary{Name: "auditability", Mode: MatchSubstring,
					Keywords: []string{"audit", "log", "audit_flag"}},
			},
			{
				Kind: model.SignalExplainability,
				Vocab: Vocabulary{Name: "explainability", Mode: MatchSubstring,
					Keywords: []string{"explain", "reason", "justification", "explanation"}},
			},
			{
				Kind: model.SignalTraceability,
				Vocab: Vocabulary{Name: "traceability", Mode: MatchSubstring,
					Keywords: []string{"time", "timestamp", "history", "trace"}},
			},
		},
		Protected: Vocabulary{Name: "protected", Mode: MatchExact,
			Keywords: []string{"sex", "gender", "race", "ethnicity"}},
		Preserve: Vocabulary{Name: "preserve", Mode: MatchExact,
			Keywords: []string{
				"sex", "gender", "race", "ethnicity",
				"approved", "income", "credit_score", "transaction_count",
				"debt_ratio", "account_balance", "loan_amount",
			}},
	}
}

// Fold normalizes a column name for case-insensitive matching.
func Fold(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// SignalsFor returns every accountability signal the name carries, in rule order.
func (r Rules) SignalsFor(name string) []model.SignalKind {
	folded := Fold(name)
	var out []model.SignalKind
	for _, rule := range r.Signals {
		if rule.Vocab.Matches(folded) {
			out = append(out, rule.Kind)
		}
	}
	return out
}

// IsProtected reports whether the name is a protected attribute.
func (r Rules) IsProtected(name string) bool {
	return r.Protected.Matches(Fold(name))
}

// IsPreserved reports whether the name is on the explicit preserve list.
func (r Rules) IsPreserved(name string) bool {
	return r.Preserve.Matches(Fold(name))
}

// SignalsIn scans all names and reports which accountability signals appear anywhere.
func (r Rules) SignalsIn(names []string) map[model.SignalKind]bool {
	found := make(map[model.SignalKind]bool, len(r.Signals))
	for _, rule := range r.Signals {
		found[rule.Kind] = false
	}
	for _, name := range names {
		for _, k := range r.SignalsFor(name) {
			found[k] = true
		}
	}
	return found
}
