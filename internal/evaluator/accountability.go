package evaluator

import (
	"context"

	"github.com/sells-group/compliance-cli/internal/classify"
	"github.com/sells-group/compliance-cli/internal/model"
)

// Accountability detects audit, explanation and trace signals in the
// dataset's original column names.
type Accountability struct {
	rules classify.Rules
}

// NewAccountability creates an accountability evaluator over the given rule table.
func NewAccountability(rules classify.Rules) *Accountability {
	return &Accountability{rules: rules}
}

// Pillar implements Evaluator.
func (a *Accountability) Pillar() model.Pillar { return model.PillarAccountability }

// Evaluate implements Evaluator.
func (a *Accountability) Evaluate(_ context.Context, in Input) (model.PillarResult, error) {
	names := in.Columns
	if names == nil && in.Data != nil {
		names = in.Data.ColumnNames()
	}

	found := a.rules.SignalsIn(names)
	flags := make(map[string]bool, len(found))
	detected := false
	for _, k := range model.SignalKinds {
		flags[string(k)] = found[k]
		detected = detected || found[k]
	}

	if !detected {
		res := model.Degenerate(a.Pillar(), "no accountability signals in column names", nil)
		res.Flags = flags
		return res, nil
	}
	res := model.Success(a.Pillar(), nil)
	res.Flags = flags
	return res, nil
}
