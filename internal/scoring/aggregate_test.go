package scoring

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/compliance-cli/internal/model"
)

func accountability(audit, explain, trace bool) model.PillarResult {
	res := model.Success(model.PillarAccountability, nil)
	res.Flags = map[string]bool{
		"auditability":   audit,
		"explainability": explain,
		"traceability":   trace,
	}
	return res
}

func metric(p model.Pillar, name string, v float64) model.PillarResult {
	return model.Success(p, map[string]model.NullFloat{name: model.Float(v)})
}

func TestSubScore(t *testing.T) {
	tests := []struct {
		name   string
		pillar model.Pillar
		res    model.PillarResult
		want   model.NullFloat
	}{
		{"fairness zero dp", model.PillarFairness, metric(model.PillarFairness, model.MetricParityDifference, 0), model.Float(1)},
		{"fairness negative dp", model.PillarFairness, metric(model.PillarFairness, model.MetricParityDifference, -0.25), model.Float(0.75)},
		{"fairness dp above one", model.PillarFairness, metric(model.PillarFairness, model.MetricParityDifference, 1.5), model.Float(0)},
		{"fairness null dp", model.PillarFairness, model.Degenerate(model.PillarFairness, "no target", map[string]model.NullFloat{
			model.MetricParityDifference: model.Null(),
		}), model.Null()},
		{"fairness nan dp", model.PillarFairness, metric(model.PillarFairness, model.MetricParityDifference, math.NaN()), model.Null()},
		{"transparency", model.PillarTransparency, metric(model.PillarTransparency, model.MetricModelAccuracy, 0.8), model.Float(0.8)},
		{"robustness uses adversarial", model.PillarRobustness, model.Success(model.PillarRobustness, map[string]model.NullFloat{
			model.MetricInitialAccuracy: model.Float(0.9),
			model.MetricAdversarialAcc:  model.Float(0.4),
		}), model.Float(0.4)},
		{"privacy clamped", model.PillarPrivacy, metric(model.PillarPrivacy, model.MetricPrivacyAccuracy, 1.2), model.Float(1)},
		{"privacy failure", model.PillarPrivacy, model.Failure(model.PillarPrivacy, errors.New("x")), model.Null()},
		{"missing result", model.PillarTransparency, model.PillarResult{}, model.Null()},
		{"accountability all", model.PillarAccountability, accountability(true, true, true), model.Float(1)},
		{"accountability one", model.PillarAccountability, accountability(false, true, false), model.Float(1.0 / 3)},
		{"accountability none", model.PillarAccountability, accountability(false, false, false), model.Null()},
		{"unknown pillar", model.Pillar("other"), metric("other", "x", 1), model.Null()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SubScore(tt.pillar, tt.res))
		})
	}
}

func TestAggregate_ScenarioA(t *testing.T) {
	results := map[model.Pillar]model.PillarResult{
		model.PillarFairness:       metric(model.PillarFairness, model.MetricParityDifference, 0),
		model.PillarTransparency:   metric(model.PillarTransparency, model.MetricModelAccuracy, 0.8),
		model.PillarRobustness:     metric(model.PillarRobustness, model.MetricAdversarialAcc, 0.6),
		model.PillarPrivacy:        metric(model.PillarPrivacy, model.MetricPrivacyAccuracy, 0.6),
		model.PillarAccountability: accountability(false, false, false),
	}
	agg := Aggregate(results)

	assert.False(t, agg.SubScore(model.PillarAccountability).Valid)
	require.True(t, agg.Composite.Valid)
	assert.InDelta(t, 0.75, agg.Composite.Float, 1e-12)
	assert.Equal(t, []model.Pillar{
		model.PillarFairness, model.PillarTransparency, model.PillarRobustness, model.PillarPrivacy,
	}, agg.Present())
}

func TestAggregate_ScenarioD(t *testing.T) {
	tooFew := errors.New("evaluator: at least two columns required")
	results := map[model.Pillar]model.PillarResult{
		model.PillarFairness:       metric(model.PillarFairness, model.MetricParityDifference, 0.2),
		model.PillarTransparency:   model.Failure(model.PillarTransparency, tooFew),
		model.PillarRobustness:     model.Failure(model.PillarRobustness, tooFew),
		model.PillarPrivacy:        model.Failure(model.PillarPrivacy, tooFew),
		model.PillarAccountability: accountability(true, false, false),
	}
	agg := Aggregate(results)

	require.True(t, agg.Composite.Valid)
	assert.InDelta(t, (0.8+1.0/3)/2, agg.Composite.Float, 1e-12)
}

func TestAggregate_Vacuous(t *testing.T) {
	agg := Aggregate(nil)
	assert.False(t, agg.Composite.Valid)
	assert.Len(t, agg.SubScores, len(model.Pillars))
	assert.Equal(t, model.NotAvailable, agg.Composite.String())

	all := map[model.Pillar]model.PillarResult{}
	for _, p := range model.Pillars {
		all[p] = model.Failure(p, nil)
	}
	agg = Aggregate(all)
	assert.False(t, agg.Composite.Valid)
	assert.Empty(t, agg.Present())
}

// TestAggregate_Properties checks bounds and composite-mean identity over
// randomized result sets.
func TestAggregate_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	random := func(p model.Pillar) model.PillarResult {
		switch rng.IntN(4) {
		case 0:
			return model.Failure(p, errors.New("fail"))
		case 1:
			return model.Degenerate(p, "n/a", nil)
		}
		if p == model.PillarAccountability {
			return accountability(rng.IntN(2) == 0, rng.IntN(2) == 0, rng.IntN(2) == 0)
		}
		v := rng.Float64()*3 - 1
		return model.Success(p, map[string]model.NullFloat{
			model.MetricParityDifference: model.Float(v),
			model.MetricModelAccuracy:    model.Float(v),
			model.MetricAdversarialAcc:   model.Float(v),
			model.MetricPrivacyAccuracy:  model.Float(v),
		})
	}

	for range 500 {
		results := map[model.Pillar]model.PillarResult{}
		for _, p := range model.Pillars {
			results[p] = random(p)
		}
		agg := Aggregate(results)

		var sum float64
		var n int
		for _, p := range model.Pillars {
			s := agg.SubScore(p)
			if results[p].Failed() {
				assert.False(t, s.Valid)
			}
			if !s.Valid {
				continue
			}
			assert.GreaterOrEqual(t, s.Float, 0.0)
			assert.LessOrEqual(t, s.Float, 1.0)
			sum += s.Float
			n++
		}

		if n == 0 {
			assert.False(t, agg.Composite.Valid)
			continue
		}
		require.True(t, agg.Composite.Valid)
		assert.InDelta(t, sum/float64(n), agg.Composite.Float, 1e-9)
		assert.GreaterOrEqual(t, agg.Composite.Float, 0.0)
		assert.LessOrEqual(t, agg.Composite.Float, 1.0)
	}
}

func TestSignalCount(t *testing.T) {
	assert.Equal(t, 2, SignalCount(accountability(true, false, true)))
	assert.Equal(t, 0, SignalCount(model.PillarResult{}))
}
