package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/store"
)

// collectLimit caps the number of runs inspected per snapshot.
const collectLimit = 10000

// MetricsSnapshot holds a point-in-time view of evaluation health.
type MetricsSnapshot struct {
	Total      int     `json:"total"`
	Reported   int     `json:"reported"`
	Failed     int     `json:"failed"`
	InProgress int     `json:"in_progress"`
	FailRate   float64 `json:"fail_rate"`

	// AvgComposite is the mean composite over reported runs that have one.
	AvgComposite model.NullFloat `json:"avg_composite"`

	// Availability is, per pillar, the fraction of reported runs with a sub-score.
	Availability map[model.Pillar]float64 `json:"availability"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the subset of store.Store needed by the collector.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers snapshots from the run store.
type Collector struct {
	store RunLister
	now   func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(st RunLister) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window. A non-positive
// window includes every stored run.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		Availability:  make(map[model.Pillar]float64, len(model.Pillars)),
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	runs, err := c.store.ListRuns(ctx, store.RunFilter{Limit: collectLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)
	present := make(map[model.Pillar]int, len(model.Pillars))
	var compositeSum float64
	var composites int

	for _, r := range runs {
		if lookbackHours > 0 && r.CreatedAt.Before(cutoff) {
			continue
		}
		snap.Total++
		switch {
		case r.Status == model.RunStatusReported:
			snap.Reported++
		case r.Status.Failed():
			snap.Failed++
		default:
			snap.InProgress++
		}
		if r.Status != model.RunStatusReported || r.Result == nil {
			continue
		}
		for _, p := range model.Pillars {
			if r.Result.Score.SubScore(p).Valid {
				present[p]++
			}
		}
		if r.Result.Score.Composite.Valid {
			compositeSum += r.Result.Score.Composite.Float
			composites++
		}
	}

	if finished := snap.Reported + snap.Failed; finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}
	if composites > 0 {
		snap.AvgComposite = model.Float(compositeSum / float64(composites))
	}
	for _, p := range model.Pillars {
		if snap.Reported > 0 {
			snap.Availability[p] = float64(present[p]) / float64(snap.Reported)
		}
	}
	return snap, nil
}
