package ml

import (
	"math"
)

// FGSM perturbs each row by eps in the direction of the sign of the loss
// gradient with respect to its true label. Rows are copied; X is not modified.
func FGSM(m *Logistic, X [][]float64, y []float64, eps float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		grad := m.InputGradient(row, y[i])
		adv := make([]float64, len(row))
		for j, v := range row {
			adv[j] = v + eps*sign(grad[j])
		}
		out[i] = adv
	}
	return out
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// RobustnessResult holds clean and perturbed accuracy on the same test rows.
type RobustnessResult struct {
	Initial     float64
	Adversarial float64
}

// EvaluateRobustness scores m on the clean test rows and on their FGSM
// perturbations.
func EvaluateRobustness(m *Logistic, X [][]float64, y []float64, eps float64) RobustnessResult {
	if math.IsNaN(eps) || eps < 0 {
		eps = 0
	}
	return RobustnessResult{
		Initial:     m.Score(X, y),
		Adversarial: m.Score(FGSM(m, X, y, eps), y),
	}
}
