package ml

import (
	"math"
	"slices"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrSingleClass is returned when the training target has fewer than two classes.
	ErrSingleClass = eris.New("ml: target needs at least two classes")
	// ErrContinuousTarget is returned when the target holds non-integer values.
	ErrContinuousTarget = eris.New("ml: target is continuous")
)

// Options controls logistic regression fitting.
type Options struct {
	MaxIter      int
	LearningRate float64
	// C is the inverse L2 regularization strength. Zero disables the penalty.
	C float64
}

// DefaultOptions mirrors common library defaults.
func DefaultOptions() Options {
	return Options{MaxIter: 1000, LearningRate: 0.1, C: 1.0}
}

// Logistic is a one-vs-rest logistic regression over standardized inputs.
// A binary problem fits a single model for the second class.
type Logistic struct {
	Classes []float64
	Scaler  *Scaler
	Weights [][]float64
	Bias    []float64
	// UnitNorm clips standardized rows to the unit L2 ball before scoring.
	UnitNorm bool
}

// Classes returns the sorted distinct labels of y or an error if y is not
// a usable classification target.
func Classes(y []float64) ([]float64, error) {
	var classes []float64
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return nil, eris.Wrapf(ErrContinuousTarget, "ml: value %v", v)
		}
		if !slices.Contains(classes, v) {
			classes = append(classes, v)
		}
	}
	if len(classes) < 2 {
		return nil, ErrSingleClass
	}
	slices.Sort(classes)
	return classes, nil
}

// FitLogistic trains a model on raw features X and labels y.
func FitLogistic(X [][]float64, y []float64, opts Options) (*Logistic, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, eris.Errorf("ml: fit with %d rows and %d labels", len(X), len(y))
	}
	classes, err := Classes(y)
	if err != nil {
		return nil, err
	}

	scaler := FitScaler(X)
	Z := scaler.Transform(X)
	m := &Logistic{Classes: classes, Scaler: scaler}

	for _, c := range m.targets() {
		w, b := fitBinary(Z, binaryLabels(y, c), opts)
		m.Weights = append(m.Weights, w)
		m.Bias = append(m.Bias, b)
	}
	return m, nil
}

// targets returns the classes that get their own binary model.
func (m *Logistic) targets() []float64 {
	if len(m.Classes) == 2 {
		return m.Classes[1:]
	}
	return m.Classes
}

func binaryLabels(y []float64, class float64) []float64 {
	out := make([]float64, len(y))
	for i, v := range y {
		if v == class {
			out[i] = 1
		}
	}
	return out
}

// fitBinary runs full-batch gradient descent from zero weights on the mean
// log-loss plus an L2 penalty of 1/(2*C*n)*||w||^2.
func fitBinary(Z [][]float64, y []float64, opts Options) ([]float64, float64) {
	n := float64(len(Z))
	w := make([]float64, len(Z[0]))
	b := 0.0
	gw := make([]float64, len(w))

	for range opts.MaxIter {
		for j := range gw {
			gw[j] = 0
		}
		gb := 0.0
		for i, row := range Z {
			d := Sigmoid(floats.Dot(w, row)+b) - y[i]
			floats.AddScaled(gw, d, row)
			gb += d
		}
		floats.Scale(1/n, gw)
		gb /= n
		if opts.C > 0 {
			floats.AddScaled(gw, 1/(opts.C*n), w)
		}
		floats.AddScaled(w, -opts.LearningRate, gw)
		b -= opts.LearningRate * gb
	}
	return w, b
}

// Sigmoid is the logistic function.
func Sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// transform standardizes a raw row and applies the norm clip if set.
func (m *Logistic) transform(row []float64) []float64 {
	z := m.Scaler.TransformRow(row)
	if m.UnitNorm {
		clipNorm(z)
	}
	return z
}

// scores returns the per-model sigmoid outputs for a standardized row.
func (m *Logistic) scores(z []float64) []float64 {
	out := make([]float64, len(m.Weights))
	for k, w := range m.Weights {
		out[k] = Sigmoid(floats.Dot(w, z) + m.Bias[k])
	}
	return out
}

// PredictProba returns class probabilities for a raw row, ordered as Classes.
func (m *Logistic) PredictProba(row []float64) []float64 {
	s := m.scores(m.transform(row))
	if len(m.Classes) == 2 {
		return []float64{1 - s[0], s[0]}
	}
	if sum := floats.Sum(s); sum > 0 {
		floats.Scale(1/sum, s)
	}
	return s
}

// PredictRow returns the most likely class for a raw row.
func (m *Logistic) PredictRow(row []float64) float64 {
	p := m.PredictProba(row)
	return m.Classes[floats.MaxIdx(p)]
}

// Predict labels every row of X.
func (m *Logistic) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = m.PredictRow(row)
	}
	return out
}

// Score returns the accuracy of the model on X against y.
func (m *Logistic) Score(X [][]float64, y []float64) float64 {
	return Accuracy(y, m.Predict(X))
}

// InputGradient returns d(log-loss)/d(raw input) for row with true label y.
// Binary models use the single model; multiclass models use the model for
// the true class.
func (m *Logistic) InputGradient(row []float64, y float64) []float64 {
	z := m.transform(row)
	var k int
	var target float64
	if len(m.Classes) == 2 {
		k = 0
		if y == m.Classes[1] {
			target = 1
		}
	} else {
		k = slices.Index(m.Classes, y)
		if k < 0 {
			return make([]float64, len(row))
		}
		target = 1
	}

	d := Sigmoid(floats.Dot(m.Weights[k], z)+m.Bias[k]) - target
	grad := make([]float64, len(row))
	for j, w := range m.Weights[k] {
		if m.Scaler.Std[j] == 0 {
			continue
		}
		grad[j] = d * w / m.Scaler.Std[j]
	}
	return grad
}
