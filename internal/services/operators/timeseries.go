package operators

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Delay returns x shifted n periods into the future; the first n positions are NaN.
func Delay(x []float64, n int) ([]float64, error) {
	if n < 0 {
		return nil, fmt.Errorf("delay %d: %w", n, ErrInvalidWindow)
	}
	out := nanSlice(len(x))
	for i := n; i < len(x); i++ {
		out[i] = x[i-n]
	}
	return out, nil
}

// Delta returns x[t] - x[t-n].
func Delta(x []float64, n int) ([]float64, error) {
	if n < 0 {
		return nil, fmt.Errorf("delta %d: %w", n, ErrInvalidWindow)
	}
	out := nanSlice(len(x))
	for i := n; i < len(x); i++ {
		out[i] = x[i] - x[i-n]
	}
	return out, nil
}

// Sum is the trailing sum over w observations.
func Sum(x []float64, w int) ([]float64, error) {
	if err := checkWindow(w); err != nil {
		return nil, err
	}
	out := nanSlice(len(x))
	prefix := nanPrefix(x)
	for i := w - 1; i < len(x); i++ {
		if fullWindow(prefix, i, w) {
			out[i] = floats.Sum(x[i-w+1 : i+1])
		}
	}
	return out, nil
}

// Product is the trailing product over w observations.
// A window holding a non-positive value is NaN.
func Product(x []float64, w int) ([]float64, error) {
	if err := checkWindow(w); err != nil {
		return nil, err
	}
	out := nanSlice(len(x))
	prefix := nanPrefix(x)
	for i := w - 1; i < len(x); i++ {
		if !fullWindow(prefix, i, w) {
			continue
		}
		win := x[i-w+1 : i+1]
		if floats.Min(win) <= 0 {
			continue
		}
		out[i] = floats.Prod(win)
	}
	return out, nil
}

// StdDev is the trailing sample standard deviation. Windows shorter than 2 are NaN.
func StdDev(x []float64, w int) ([]float64, error) {
	if err := checkWindow(w); err != nil {
		return nil, err
	}
	out := nanSlice(len(x))
	if w < 2 {
		return out, nil
	}
	prefix := nanPrefix(x)
	for i := range x {
		if fullWindow(prefix, i, w) {
			out[i] = stat.StdDev(x[i-w+1:i+1], nil)
		}
	}
	return out, nil
}

// Correlation is the trailing Pearson correlation of x and y.
// A window where either side is constant is NaN.
func Correlation(x, y []float64, w int) ([]float64, error) {
	return pairwise(x, y, w, func(xs, ys []float64) float64 {
		return stat.Correlation(xs, ys, nil)
	})
}

// Covariance is the trailing sample covariance of x and y.
// A window where either side is constant is NaN.
func Covariance(x, y []float64, w int) ([]float64, error) {
	return pairwise(x, y, w, func(xs, ys []float64) float64 {
		return stat.Covariance(xs, ys, nil)
	})
}

func pairwise(x, y []float64, w int, fn func(xs, ys []float64) float64) ([]float64, error) {
	if err := checkWindow(w); err != nil {
		return nil, err
	}
	if err := checkAligned(x, y); err != nil {
		return nil, err
	}
	out := nanSlice(len(x))
	if w < 2 {
		return out, nil
	}
	px, py := nanPrefix(x), nanPrefix(y)
	for i := range x {
		if !fullWindow(px, i, w) || !fullWindow(py, i, w) {
			continue
		}
		xs, ys := x[i-w+1:i+1], y[i-w+1:i+1]
		if constant(xs) || constant(ys) {
			continue
		}
		out[i] = fn(xs, ys)
	}
	return out, nil
}

func constant(xs []float64) bool {
	return floats.Min(xs) == floats.Max(xs)
}

// TsMin is the trailing minimum.
func TsMin(x []float64, w int) ([]float64, error) {
	v, _, err := extremum(x, w, func(a, b float64) bool { return a < b })
	return v, err
}

// TsMax is the trailing maximum.
func TsMax(x []float64, w int) ([]float64, error) {
	v, _, err := extremum(x, w, func(a, b float64) bool { return a > b })
	return v, err
}

// TsArgMin is the zero-based offset of the trailing minimum, counted from the
// oldest element of the window. The earliest of tied values wins.
func TsArgMin(x []float64, w int) ([]float64, error) {
	_, a, err := extremum(x, w, func(a, b float64) bool { return a < b })
	return a, err
}

// TsArgMax is the zero-based offset of the trailing maximum.
func TsArgMax(x []float64, w int) ([]float64, error) {
	_, a, err := extremum(x, w, func(a, b float64) bool { return a > b })
	return a, err
}

// extremum runs a monotonic deque of indices. Only strictly better values evict
// the tail, so the front always holds the earliest extremum in the window.
func extremum(x []float64, w int, better func(a, b float64) bool) ([]float64, []float64, error) {
	if err := checkWindow(w); err != nil {
		return nil, nil, err
	}
	vals, args := nanSlice(len(x)), nanSlice(len(x))
	dq := make([]int, 0, w)
	nans := 0
	for i, v := range x {
		if i >= w && math.IsNaN(x[i-w]) {
			nans--
		}
		for len(dq) > 0 && dq[0] <= i-w {
			dq = dq[1:]
		}
		if math.IsNaN(v) {
			nans++
		} else {
			for len(dq) > 0 && better(v, x[dq[len(dq)-1]]) {
				dq = dq[:len(dq)-1]
			}
			dq = append(dq, i)
		}
		if i >= w-1 && nans == 0 {
			vals[i] = x[dq[0]]
			args[i] = float64(dq[0] - (i - w + 1))
		}
	}
	return vals, args, nil
}

// TsRank is the rank (1 = smallest) of the current value within the trailing
// window, averaging ties. The result lies in [1, w].
func TsRank(x []float64, w int) ([]float64, error) {
	if err := checkWindow(w); err != nil {
		return nil, err
	}
	out := nanSlice(len(x))
	prefix := nanPrefix(x)
	for i, cur := range x {
		if !fullWindow(prefix, i, w) {
			continue
		}
		less, equal := 0, 0
		for _, v := range x[i-w+1 : i+1] {
			switch {
			case v < cur:
				less++
			case v == cur:
				equal++
			}
		}
		out[i] = float64(less) + float64(equal+1)/2
	}
	return out, nil
}

// DecayLinear is the linearly weighted moving average with weights 1..w, oldest to newest.
func DecayLinear(x []float64, w int) ([]float64, error) {
	if err := checkWindow(w); err != nil {
		return nil, err
	}
	weights := make([]float64, w)
	for k := range weights {
		weights[k] = float64(k + 1)
	}
	total := floats.Sum(weights)
	out := nanSlice(len(x))
	prefix := nanPrefix(x)
	for i := range x {
		if fullWindow(prefix, i, w) {
			out[i] = floats.Dot(x[i-w+1:i+1], weights) / total
		}
	}
	return out, nil
}
