package evaluator

import (
	"context"

	"github.com/sells-group/compliance-cli/internal/ml"
	"github.com/sells-group/compliance-cli/internal/model"
)

// Privacy reports the held-out accuracy of a differentially private model.
type Privacy struct{}

// NewPrivacy creates a privacy evaluator.
func NewPrivacy() *Privacy { return &Privacy{} }

// Pillar implements Evaluator.
func (p *Privacy) Pillar() model.Pillar { return model.PillarPrivacy }

// Evaluate implements Evaluator.
func (p *Privacy) Evaluate(_ context.Context, in Input) (model.PillarResult, error) {
	sv, err := prepare(in)
	if err != nil {
		return model.PillarResult{}, err
	}
	m, err := ml.FitPrivateLogistic(sv.XTrain, sv.YTrain, ml.PrivateOptions{
		Options: in.Options.fitOptions(),
		Epsilon: in.Options.Epsilon,
		Seed:    in.Options.Seed,
	})
	if err != nil {
		return model.PillarResult{}, err
	}

	return model.Success(p.Pillar(), map[string]model.NullFloat{
		model.MetricPrivacyAccuracy: model.Float(m.Score(sv.XTest, sv.YTest)),
		model.MetricEpsilon:         model.Float(in.Options.Epsilon),
	}), nil
}
