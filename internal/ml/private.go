package ml

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// PrivateOptions controls the differentially private fit.
type PrivateOptions struct {
	Options
	Epsilon float64
	Seed    uint64
}

// FitPrivateLogistic trains an L2-regularized logistic regression on
// standardized rows clipped to unit norm, then perturbs every coefficient
// with Laplace noise of scale 2/(n*lambda*epsilon), lambda = 1/C.
func FitPrivateLogistic(X [][]float64, y []float64, opts PrivateOptions) (*Logistic, error) {
	if opts.Epsilon <= 0 || math.IsNaN(opts.Epsilon) {
		return nil, eris.Errorf("ml: epsilon must be positive, got %v", opts.Epsilon)
	}
	if opts.C <= 0 {
		opts.C = 1
	}
	if len(X) == 0 || len(X) != len(y) {
		return nil, eris.Errorf("ml: fit with %d rows and %d labels", len(X), len(y))
	}
	classes, err := Classes(y)
	if err != nil {
		return nil, err
	}

	m := &Logistic{Classes: classes, Scaler: FitScaler(X), UnitNorm: true}
	Z := make([][]float64, len(X))
	for i, row := range X {
		Z[i] = m.transform(row)
	}

	noise := distuv.Laplace{
		Mu:    0,
		Scale: 2 * opts.C / (float64(len(Z)) * opts.Epsilon),
		Src:   NewSource(opts.Seed),
	}
	for _, c := range m.targets() {
		w, b := fitBinary(Z, binaryLabels(y, c), opts.Options)
		for j := range w {
			w[j] += noise.Rand()
		}
		m.Weights = append(m.Weights, w)
		m.Bias = append(m.Bias, b)
	}
	return m, nil
}

// clipNorm scales v in place so its L2 norm is at most 1.
func clipNorm(v []float64) {
	if n := floats.Norm(v, 2); n > 1 {
		floats.Scale(1/n, v)
	}
}
