// Package report assembles compliance reports and writes them to disk.
package report

import (
	"time"

	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/scoring"
)

// Builder assembles a ComplianceReport from pillar results and scores.
type Builder struct {
	thresholds map[model.Pillar]float64
	now        func() time.Time
}

// NewBuilder creates a Builder with per-pillar presence thresholds keyed by
// pillar name. Pillars without a threshold use 0.
func NewBuilder(thresholds map[string]float64) *Builder {
	t := make(map[model.Pillar]float64, len(model.Pillars))
	for _, p := range model.Pillars {
		t[p] = thresholds[string(p)]
	}
	return &Builder{thresholds: t, now: time.Now}
}

// Build assembles the structured report and its narrative from the same values.
func (b *Builder) Build(file string, columns, kept []string, results map[model.Pillar]model.PillarResult, score model.AggregatedScore) *model.ComplianceReport {
	r := &model.ComplianceReport{
		File:        file,
		GeneratedAt: b.now().UTC(),
		Columns:     columns,
		Kept:        kept,
		Results:     make(map[model.Pillar]model.PillarResult, len(model.Pillars)),
		Score:       score,
		Summary:     make(map[model.Pillar]model.Presence, len(model.Pillars)),
	}
	for _, p := range model.Pillars {
		res, ok := results[p]
		if !ok {
			res = model.Failure(p, nil)
		}
		r.Results[p] = res
		r.Summary[p] = b.presence(p, res)
	}
	r.Narrative = Narrative(r)
	return r
}

// RawMetric returns the metric a pillar's presence is judged on.
func RawMetric(p model.Pillar, res model.PillarResult) model.NullFloat {
	switch p {
	case model.PillarFairness:
		return res.Metric(model.MetricParityDifference)
	case model.PillarTransparency:
		return res.Metric(model.MetricModelAccuracy)
	case model.PillarRobustness:
		return res.Metric(model.MetricAdversarialAcc)
	case model.PillarPrivacy:
		return res.Metric(model.MetricPrivacyAccuracy)
	case model.PillarAccountability:
		if res.Failed() {
			return model.Null()
		}
		return model.Float(float64(scoring.SignalCount(res)) / float64(len(model.SignalKinds)))
	}
	return model.Null()
}

func (b *Builder) presence(p model.Pillar, res model.PillarResult) model.Presence {
	raw := RawMetric(p, res)
	if !raw.Valid {
		return model.PresenceNotAvailable
	}
	if raw.Float >= b.thresholds[p] {
		return model.PresencePresent
	}
	return model.PresenceNotPresent
}
