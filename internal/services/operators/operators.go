// Package operators implements the time-series and cross-sectional primitives
// that alpha factors are composed from. Every function is pure and safe for
// concurrent use. Positions without enough history or peers are NaN.
package operators

import (
	"errors"
	"fmt"
	"math"

	"AlphaLab/internal/domain/models"
)

// ErrInvalidWindow is returned for a window length below 1 or a negative lag.
var ErrInvalidWindow = errors.New("invalid window")

func checkWindow(w int) error {
	if w < 1 {
		return fmt.Errorf("window %d: %w", w, ErrInvalidWindow)
	}
	return nil
}

func checkAligned(x, y []float64) error {
	if len(x) != len(y) {
		return fmt.Errorf("series lengths %d and %d: %w", len(x), len(y), models.ErrShapeMismatch)
	}
	return nil
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// nanPrefix returns c where c[i] is the number of NaNs in x[:i].
func nanPrefix(x []float64) []int {
	c := make([]int, len(x)+1)
	for i, v := range x {
		c[i+1] = c[i]
		if math.IsNaN(v) {
			c[i+1]++
		}
	}
	return c
}

// fullWindow reports whether the window of length w ending at i exists and holds no NaN.
func fullWindow(prefix []int, i, w int) bool {
	if i < w-1 {
		return false
	}
	return prefix[i+1]-prefix[i+1-w] == 0
}
