package evaluator

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/sells-group/compliance-cli/internal/classify"
	"github.com/sells-group/compliance-cli/internal/ml"
	"github.com/sells-group/compliance-cli/internal/model"
)

// Fairness measures demographic parity of a binary outcome across the
// first protected attribute. Predictions are the observed outcome itself.
type Fairness struct {
	rules classify.Rules
}

// NewFairness creates a fairness evaluator over the given rule table.
func NewFairness(rules classify.Rules) *Fairness {
	return &Fairness{rules: rules}
}

// Pillar implements Evaluator.
func (f *Fairness) Pillar() model.Pillar { return model.PillarFairness }

// Evaluate implements Evaluator.
func (f *Fairness) Evaluate(_ context.Context, in Input) (model.PillarResult, error) {
	ds := in.Data
	nullMetrics := map[string]model.NullFloat{
		model.MetricParityDifference: model.Null(),
		model.MetricMeanDifference:   model.Null(),
	}

	protected := -1
	for i, c := range ds.Columns {
		if f.rules.IsProtected(c.Name) {
			protected = i
			break
		}
	}
	target := -1
	for i, c := range ds.Columns {
		if f.rules.IsProtected(c.Name) {
			continue
		}
		if distinct(c) == 2 {
			target = i
			break
		}
	}

	if target < 0 {
		return model.Degenerate(f.Pillar(), "no binary target column", nullMetrics), nil
	}
	if protected < 0 {
		return model.Degenerate(f.Pillar(), "no protected attribute column", nullMetrics), nil
	}

	yTrue := ds.Vector(target)
	yPred := ds.Vector(target)
	sensitive := ds.Vector(protected)

	zap.L().Debug("evaluator: fairness columns",
		zap.String("dataset", ds.Name),
		zap.String("target", ds.Columns[target].Name),
		zap.String("protected", ds.Columns[protected].Name),
	)
	return model.Success(f.Pillar(), map[string]model.NullFloat{
		model.MetricParityDifference: model.Float(ml.DemographicParityDifference(yPred, sensitive)),
		model.MetricMeanDifference:   model.Float(ml.MeanDifference(yTrue, yPred)),
	}), nil
}

// distinct counts distinct non-missing numeric values of c.
func distinct(c model.Column) int {
	var seen []float64
	for i, v := range c.Nums {
		if c.Missing != nil && c.Missing[i] {
			continue
		}
		if !slices.Contains(seen, v) {
			seen = append(seen, v)
			if len(seen) > 2 {
				return len(seen)
			}
		}
	}
	return len(seen)
}
