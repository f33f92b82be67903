package operators

import (
	"fmt"
	"math"

	"AlphaLab/internal/domain/models"
)

// SignedPower returns sign(x) * |x|^a.
func SignedPower(x []float64, a float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		switch {
		case math.IsNaN(v):
			out[i] = math.NaN()
		case v == 0:
			out[i] = 0
		default:
			out[i] = math.Copysign(math.Pow(math.Abs(v), a), v)
		}
	}
	return out
}

// IfElse selects x[i] where cond[i] holds and y[i] otherwise.
func IfElse(cond []bool, x, y []float64) ([]float64, error) {
	if len(cond) != len(x) || len(x) != len(y) {
		return nil, fmt.Errorf("if_else lengths %d/%d/%d: %w", len(cond), len(x), len(y), models.ErrShapeMismatch)
	}
	out := make([]float64, len(x))
	for i, c := range cond {
		if c {
			out[i] = x[i]
		} else {
			out[i] = y[i]
		}
	}
	return out, nil
}
