package operators

import (
	"math"
	"sort"
)

// Rank is the percentile rank of each value within one cross-section, in (0, 1].
// Ties get the average of their ranks; N counts defined values only.
func Rank(x []float64) []float64 {
	out := nanSlice(len(x))
	idx := make([]int, 0, len(x))
	for i, v := range x {
		if !math.IsNaN(v) {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return out
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })
	n := float64(len(idx))
	for start := 0; start < len(idx); {
		end := start + 1
		for end < len(idx) && x[idx[end]] == x[idx[start]] {
			end++
		}
		// ranks start+1..end averaged
		avg := float64(start+1+end) / 2
		for _, j := range idx[start:end] {
			out[j] = avg / n
		}
		start = end
	}
	return out
}

// Scale rescales a cross-section so its absolute values sum to target.
// An all-zero or all-NaN cross-section yields all NaN.
func Scale(x []float64, target float64) []float64 {
	out := nanSlice(len(x))
	var sumAbs float64
	for _, v := range x {
		if !math.IsNaN(v) {
			sumAbs += math.Abs(v)
		}
	}
	if sumAbs == 0 || math.IsInf(sumAbs, 0) {
		return out
	}
	for i, v := range x {
		if !math.IsNaN(v) {
			out[i] = v * target / sumAbs
		}
	}
	return out
}
