// Package ml holds the small statistical toolkit the pillar evaluators use:
// a seeded train/test split, standardization, one-vs-rest logistic
// regression, FGSM perturbation, a differentially private variant and
// group parity metrics.
package ml

import (
	"math"
	"math/rand/v2"

	"github.com/rotisserie/eris"
)

// ErrTooFewRows is returned when a split cannot leave at least one row on each side.
var ErrTooFewRows = eris.New("ml: too few rows to split")

// Split holds row indices for the two partitions.
type Split struct {
	Train []int
	Test  []int
}

// NewSource returns a deterministic PCG source for the given seed.
func NewSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

// NewRand returns a deterministic generator for the given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(NewSource(seed))
}

// TrainTestSplit shuffles row indices 0..n-1 with the seed and assigns
// ceil(n*testRatio) of them to the test partition.
func TrainTestSplit(n int, testRatio float64, seed uint64) (Split, error) {
	if testRatio <= 0 || testRatio >= 1 {
		return Split{}, eris.Errorf("ml: test ratio %v out of range (0,1)", testRatio)
	}
	nTest := int(math.Ceil(float64(n) * testRatio))
	if n < 2 || nTest < 1 || n-nTest < 1 {
		return Split{}, eris.Wrapf(ErrTooFewRows, "ml: split %d rows", n)
	}

	idx := NewRand(seed).Perm(n)
	return Split{
		Test:  append([]int(nil), idx[:nTest]...),
		Train: append([]int(nil), idx[nTest:]...),
	}, nil
}

// Rows selects rows of X by index.
func Rows(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, r := range idx {
		out[i] = X[r]
	}
	return out
}

// Values selects entries of y by index.
func Values(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, r := range idx {
		out[i] = y[r]
	}
	return out
}
