package monitoring

import (
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sells-group/compliance-cli/internal/model"
)

// Metrics records evaluation activity for Prometheus.
//
// A nil *Metrics is valid and records nothing, so callers that run without a
// registry (one-off CLI evaluations) need no special casing.
type Metrics struct {
	// DatasetsTotal counts datasets by terminal run status.
	// Labels: status (reported|load_failed|preprocess_failed)
	DatasetsTotal *prometheus.CounterVec

	// PillarOutcomes counts pillar results.
	// Labels: pillar, outcome (success|degenerate|failure)
	PillarOutcomes *prometheus.CounterVec

	// PillarDuration measures evaluator latency in seconds.
	// Labels: pillar
	PillarDuration *prometheus.HistogramVec

	// CompositeScore observes the composite score of reported datasets.
	// Vacuous composites are not observed.
	CompositeScore prometheus.Histogram

	// Snapshot gauges are set by the Checker from stored run history.
	PillarAvailability *prometheus.GaugeVec
	FailureRate        prometheus.Gauge
	AvgComposite       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DatasetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compliance_datasets_total",
				Help: "Total number of datasets processed by terminal status",
			},
			[]string{"status"},
		),
		PillarOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compliance_pillar_outcomes_total",
				Help: "Total number of pillar evaluations by pillar and outcome",
			},
			[]string{"pillar", "outcome"},
		),
		PillarDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "compliance_pillar_duration_seconds",
				Help:    "Duration of pillar evaluations in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"pillar"},
		),
		CompositeScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "compliance_composite_score",
				Help:    "Composite compliance score of reported datasets",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
			},
		),
		PillarAvailability: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "compliance_pillar_availability_ratio",
				Help: "Fraction of recently reported datasets with a sub-score for the pillar",
			},
			[]string{"pillar"},
		),
		FailureRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "compliance_dataset_failure_ratio",
			Help: "Fraction of recently finished datasets that were not evaluated",
		}),
		AvgComposite: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "compliance_avg_composite_score",
			Help: "Mean composite score of recently reported datasets, NaN when none has one",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.DatasetsTotal, m.PillarOutcomes, m.PillarDuration, m.CompositeScore,
			m.PillarAvailability, m.FailureRate, m.AvgComposite,
		)
	}
	return m
}

// Dataset records a dataset reaching a terminal status.
func (m *Metrics) Dataset(status model.RunStatus) {
	if m == nil {
		return
	}
	m.DatasetsTotal.WithLabelValues(string(status)).Inc()
}

// Pillar records one finished pillar evaluation.
func (m *Metrics) Pillar(res model.PillarResult, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.PillarOutcomes.WithLabelValues(string(res.Pillar), string(res.Outcome)).Inc()
	m.PillarDuration.WithLabelValues(string(res.Pillar)).Observe(elapsed.Seconds())
}

// Composite records a report's composite score when present.
func (m *Metrics) Composite(score model.NullFloat) {
	if m == nil || !score.Valid {
		return
	}
	m.CompositeScore.Observe(score.Float)
}

// Snapshot publishes a run-history snapshot as gauges.
func (m *Metrics) Snapshot(snap *MetricsSnapshot) {
	if m == nil || snap == nil {
		return
	}
	for _, p := range model.Pillars {
		m.PillarAvailability.WithLabelValues(string(p)).Set(snap.Availability[p])
	}
	m.FailureRate.Set(snap.FailRate)
	if snap.AvgComposite.Valid {
		m.AvgComposite.Set(snap.AvgComposite.Float)
	} else {
		m.AvgComposite.Set(math.NaN())
	}
}
