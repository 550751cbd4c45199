package evaluator

import (
	"context"

	"github.com/sells-group/compliance-cli/internal/ml"
	"github.com/sells-group/compliance-cli/internal/model"
)

// Robustness measures how accuracy holds up under FGSM perturbation of the
// held-out rows.
type Robustness struct{}

// NewRobustness creates a robustness evaluator.
func NewRobustness() *Robustness { return &Robustness{} }

// Pillar implements Evaluator.
func (r *Robustness) Pillar() model.Pillar { return model.PillarRobustness }

// Evaluate implements Evaluator.
func (r *Robustness) Evaluate(_ context.Context, in Input) (model.PillarResult, error) {
	sv, err := prepare(in)
	if err != nil {
		return model.PillarResult{}, err
	}
	m, err := ml.FitLogistic(sv.XTrain, sv.YTrain, in.Options.fitOptions())
	if err != nil {
		return model.PillarResult{}, err
	}

	rr := ml.EvaluateRobustness(m, sv.XTest, sv.YTest, in.Options.AdversarialEps)
	return model.Success(r.Pillar(), map[string]model.NullFloat{
		model.MetricInitialAccuracy: model.Float(rr.Initial),
		model.MetricAdversarialAcc:  model.Float(rr.Adversarial),
	}), nil
}
