package evaluator

import (
	"context"

	"github.com/sells-group/compliance-cli/internal/ml"
	"github.com/sells-group/compliance-cli/internal/model"
)

// Transparency fits an interpretable model, reports its held-out accuracy
// and explains the first held-out row.
type Transparency struct{}

// NewTransparency creates a transparency evaluator.
func NewTransparency() *Transparency { return &Transparency{} }

// Pillar implements Evaluator.
func (t *Transparency) Pillar() model.Pillar { return model.PillarTransparency }

// Evaluate implements Evaluator.
func (t *Transparency) Evaluate(_ context.Context, in Input) (model.PillarResult, error) {
	sv, err := prepare(in)
	if err != nil {
		return model.PillarResult{}, err
	}
	m, err := ml.FitLogistic(sv.XTrain, sv.YTrain, in.Options.fitOptions())
	if err != nil {
		return model.PillarResult{}, err
	}

	res := model.Success(t.Pillar(), map[string]model.NullFloat{
		model.MetricModelAccuracy: model.Float(m.Score(sv.XTest, sv.YTest)),
	})
	for _, a := range ml.Explain(m, sv.XTest[0], sv.features) {
		res.Attributions = append(res.Attributions, model.Attribution{Feature: a.Feature, Weight: a.Weight})
	}
	return res, nil
}
