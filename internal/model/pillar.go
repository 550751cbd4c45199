package model

import (
	"encoding/json"
	"math"
	"strconv"
)

// Pillar is one of the five compliance dimensions.
type Pillar string

const (
	PillarFairness       Pillar = "fairness"
	PillarTransparency   Pillar = "transparency"
	PillarRobustness     Pillar = "robustness"
	PillarPrivacy        Pillar = "privacy"
	PillarAccountability Pillar = "accountability"
)

// Pillars lists every pillar in reporting order.
var Pillars = []Pillar{
	PillarFairness,
	PillarTransparency,
	PillarRobustness,
	PillarPrivacy,
	PillarAccountability,
}

// Title returns the capitalized pillar name.
func (p Pillar) Title() string {
	if p == "" {
		return ""
	}
	s := string(p)
	return string(s[0]-'a'+'A') + s[1:]
}

// Metric names produced by the evaluators.
const (
	MetricParityDifference = "demographic_parity_difference"
	MetricMeanDifference   = "mean_difference"
	MetricModelAccuracy    = "model_accuracy"
	MetricInitialAccuracy  = "initial_accuracy"
	MetricAdversarialAcc   = "adversarial_accuracy"
	MetricPrivacyAccuracy  = "privacy_accuracy"
	MetricEpsilon          = "epsilon"
)

// NullFloat is a number that may be absent. It encodes as JSON null when absent.
type NullFloat struct {
	Float float64
	Valid bool
}

// Float returns a present NullFloat.
func Float(v float64) NullFloat { return NullFloat{Float: v, Valid: true} }

// Null returns an absent NullFloat.
func Null() NullFloat { return NullFloat{} }

// String renders the value with two decimals, or NA when absent.
func (n NullFloat) String() string {
	if !n.Valid {
		return NotAvailable
	}
	return strconv.FormatFloat(n.Float, 'f', 2, 64)
}

// MarshalJSON implements json.Marshaler.
func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid || math.IsNaN(n.Float) || math.IsInf(n.Float, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(n.Float)
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NullFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = NullFloat{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Float(f)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (n NullFloat) MarshalYAML() (any, error) {
	if !n.Valid || math.IsNaN(n.Float) || math.IsInf(n.Float, 0) {
		return nil, nil
	}
	return n.Float, nil
}

// UnmarshalYAML implements the yaml.v3 obsolete unmarshaler interface.
func (n *NullFloat) UnmarshalYAML(unmarshal func(any) error) error {
	var f *float64
	if err := unmarshal(&f); err != nil {
		return err
	}
	if f == nil {
		*n = NullFloat{}
		return nil
	}
	*n = Float(*f)
	return nil
}

// Outcome tags a pillar result.
type Outcome string

const (
	// OutcomeSuccess carries measured metrics.
	OutcomeSuccess Outcome = "success"
	// OutcomeDegenerate is a well-formed "nothing measurable" result.
	OutcomeDegenerate Outcome = "degenerate"
	// OutcomeFailure means the evaluator raised.
	OutcomeFailure Outcome = "failure"
)

// Attribution is a local feature attribution for one explained row.
type Attribution struct {
	Feature string  `json:"feature" yaml:"feature"`
	Weight  float64 `json:"weight" yaml:"weight"`
}

// PillarResult is the outcome of one pillar evaluation. It is not modified after creation.
type PillarResult struct {
	Pillar       Pillar               `json:"pillar" yaml:"pillar"`
	Outcome      Outcome              `json:"outcome" yaml:"outcome"`
	Metrics      map[string]NullFloat `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Flags        map[string]bool      `json:"flags,omitempty" yaml:"flags,omitempty"`
	Attributions []Attribution        `json:"attributions,omitempty" yaml:"attributions,omitempty"`
	Reason       string               `json:"reason,omitempty" yaml:"reason,omitempty"`
	Cause        string               `json:"cause,omitempty" yaml:"cause,omitempty"`
}

// Success builds a successful result.
func Success(p Pillar, metrics map[string]NullFloat) PillarResult {
	return PillarResult{Pillar: p, Outcome: OutcomeSuccess, Metrics: metrics}
}

// Degenerate builds a "not measurable" result that still carries its (null) metrics.
func Degenerate(p Pillar, reason string, metrics map[string]NullFloat) PillarResult {
	return PillarResult{Pillar: p, Outcome: OutcomeDegenerate, Reason: reason, Metrics: metrics}
}

// Failure builds a failed result.
func Failure(p Pillar, cause error) PillarResult {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return PillarResult{Pillar: p, Outcome: OutcomeFailure, Cause: msg}
}

// Metric returns the named metric, absent if the result failed or lacks it.
func (r PillarResult) Metric(name string) NullFloat {
	if r.Outcome == OutcomeFailure {
		return Null()
	}
	return r.Metrics[name]
}

// Flag returns the named boolean signal.
func (r PillarResult) Flag(name string) bool {
	return r.Flags[name]
}

// Failed reports whether the evaluator raised.
func (r PillarResult) Failed() bool { return r.Outcome == OutcomeFailure }
