package ml

import (
	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes features to zero mean and unit population variance.
// Constant features map to zero.
type Scaler struct {
	Mean []float64
	Std  []float64
}

// FitScaler computes per-column statistics of X.
func FitScaler(X [][]float64) *Scaler {
	if len(X) == 0 {
		return &Scaler{}
	}
	cols := len(X[0])
	s := &Scaler{Mean: make([]float64, cols), Std: make([]float64, cols)}
	col := make([]float64, len(X))
	for j := range cols {
		for i, row := range X {
			col[i] = row[j]
		}
		s.Mean[j], s.Std[j] = stat.PopMeanStdDev(col, nil)
	}
	return s
}

// TransformRow standardizes one row into a new slice.
func (s *Scaler) TransformRow(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		if s.Std[j] == 0 {
			continue
		}
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out
}

// Transform standardizes every row of X.
func (s *Scaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = s.TransformRow(row)
	}
	return out
}
