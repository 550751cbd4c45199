// Package scoring turns raw pillar results into bounded sub-scores and a
// composite compliance score.
package scoring

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/compliance-cli/internal/model"
)

// Aggregate computes every pillar's sub-score and the composite. A pillar
// that failed, was degenerate or produced a non-finite metric is absent.
// The composite is the unweighted mean of present sub-scores and is absent
// when none are present.
func Aggregate(results map[model.Pillar]model.PillarResult) model.AggregatedScore {
	agg := model.AggregatedScore{SubScores: make(map[model.Pillar]model.NullFloat, len(model.Pillars))}

	var present []float64
	for _, p := range model.Pillars {
		s := SubScore(p, results[p])
		agg.SubScores[p] = s
		if s.Valid {
			present = append(present, s.Float)
		}
	}

	if len(present) > 0 {
		agg.Composite = model.Float(clamp01(stat.Mean(present, nil)))
	}
	return agg
}

// SubScore maps a single pillar result to its [0,1] sub-score.
func SubScore(p model.Pillar, res model.PillarResult) model.NullFloat {
	if res.Outcome == "" || res.Failed() {
		return model.Null()
	}
	switch p {
	case model.PillarFairness:
		return scoreFairness(res.Metric(model.MetricParityDifference))
	case model.PillarTransparency:
		return scoreAccuracy(res.Metric(model.MetricModelAccuracy))
	case model.PillarRobustness:
		return scoreAccuracy(res.Metric(model.MetricAdversarialAcc))
	case model.PillarPrivacy:
		return scoreAccuracy(res.Metric(model.MetricPrivacyAccuracy))
	case model.PillarAccountability:
		return scoreAccountability(res)
	default:
		return model.Null()
	}
}

// scoreFairness is 1 - |parity difference|, clamped.
func scoreFairness(dp model.NullFloat) model.NullFloat {
	if !finite(dp) {
		return model.Null()
	}
	return model.Float(clamp01(1 - math.Abs(dp.Float)))
}

func scoreAccuracy(acc model.NullFloat) model.NullFloat {
	if !finite(acc) {
		return model.Null()
	}
	return model.Float(clamp01(acc.Float))
}

// scoreAccountability is the share of the three signals detected, absent
// when none are.
func scoreAccountability(res model.PillarResult) model.NullFloat {
	n := SignalCount(res)
	if n == 0 {
		return model.Null()
	}
	return model.Float(float64(n) / float64(len(model.SignalKinds)))
}

// SignalCount returns how many accountability flags are set.
func SignalCount(res model.PillarResult) int {
	n := 0
	for _, k := range model.SignalKinds {
		if res.Flag(string(k)) {
			n++
		}
	}
	return n
}

func finite(v model.NullFloat) bool {
	return v.Valid && !math.IsNaN(v.Float) && !math.IsInf(v.Float, 0)
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
