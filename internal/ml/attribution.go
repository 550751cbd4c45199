package ml

import (
	"cmp"
	"math"
	"slices"
)

// Attribution is one feature's contribution to a single prediction.
type Attribution struct {
	Feature string
	Weight  float64
}

// Explain returns local attributions for row: the standardized feature value
// times the coefficient of the model scoring the predicted class. Binary
// models are explained toward the positive class. Results are ordered by
// absolute weight, largest first; ties keep feature order.
func Explain(m *Logistic, row []float64, names []string) []Attribution {
	z := m.transform(row)
	k := 0
	if len(m.Classes) > 2 {
		k = slices.Index(m.Classes, m.PredictRow(row))
	}

	out := make([]Attribution, len(z))
	for j, v := range z {
		name := ""
		if j < len(names) {
			name = names[j]
		}
		out[j] = Attribution{Feature: name, Weight: m.Weights[k][j] * v}
	}
	slices.SortStableFunc(out, func(a, b Attribution) int {
		return cmp.Compare(math.Abs(b.Weight), math.Abs(a.Weight))
	})
	return out
}
