package ml

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Accuracy returns the fraction of positions where yPred equals yTrue.
// Empty input yields 0.
func Accuracy(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	hits := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(yTrue))
}

// PositiveLabel is the label counted as a selection by the parity metric.
const PositiveLabel = 1.0

// SelectionRates returns, per distinct sensitive value in first-seen
// order, the share of rows whose prediction equals PositiveLabel.
func SelectionRates(yPred, sensitive []float64) (groups []float64, rates []float64) {
	var totals, hits []float64
	for i, g := range sensitive {
		k := slices.Index(groups, g)
		if k < 0 {
			groups = append(groups, g)
			totals = append(totals, 0)
			hits = append(hits, 0)
			k = len(groups) - 1
		}
		totals[k]++
		if yPred[i] == PositiveLabel {
			hits[k]++
		}
	}
	rates = make([]float64, len(groups))
	for k := range groups {
		rates[k] = hits[k] / totals[k]
	}
	return groups, rates
}

// DemographicParityDifference is the spread between the highest and lowest
// group selection rates. A single group yields 0.
func DemographicParityDifference(yPred, sensitive []float64) float64 {
	_, rates := SelectionRates(yPred, sensitive)
	if len(rates) == 0 {
		return 0
	}
	return floats.Max(rates) - floats.Min(rates)
}

// MeanDifference is |mean(a) - mean(b)|.
func MeanDifference(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return math.Abs(stat.Mean(a, nil) - stat.Mean(b, nil))
}
