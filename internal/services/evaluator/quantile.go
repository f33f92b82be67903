package evaluator

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"AlphaLab/internal/domain/models"
)

// ErrInvalidQuantiles is returned for a bucket count below 1.
var ErrInvalidQuantiles = errors.New("invalid quantile count")

// QuantileLayers splits one cross-section into k equal-population buckets by
// ascending factor value and reports the mean forward return of each.
// Edges are linearly interpolated quantiles; coinciding edges are merged, so
// heavily tied inputs yield fewer buckets. Empty buckets are omitted.
func QuantileLayers(factor, fwd []float64, k int) ([]models.BucketReturn, error) {
	if k < 1 {
		return nil, fmt.Errorf("k=%d: %w", k, ErrInvalidQuantiles)
	}
	if len(factor) != len(fwd) {
		return nil, fmt.Errorf("factor has %d values, returns %d: %w", len(factor), len(fwd), models.ErrShapeMismatch)
	}
	xs := make([]float64, 0, len(factor))
	ys := make([]float64, 0, len(fwd))
	for i := range factor {
		if math.IsNaN(factor[i]) || math.IsNaN(fwd[i]) {
			continue
		}
		xs = append(xs, factor[i])
		ys = append(ys, fwd[i])
	}
	if len(xs) == 0 {
		return []models.BucketReturn{}, nil
	}

	edges := quantileEdges(xs, k)
	buckets := len(edges) - 1
	if buckets < 1 {
		buckets = 1
	}
	members := make([][]int, buckets)
	for i, v := range xs {
		b := sort.SearchFloat64s(edges, v) - 1
		if b < 0 {
			b = 0
		}
		if b >= buckets {
			b = buckets - 1
		}
		members[b] = append(members[b], i)
	}

	out := make([]models.BucketReturn, 0, buckets)
	for b, idx := range members {
		if len(idx) == 0 {
			continue
		}
		rets := make([]float64, len(idx))
		vals := make([]float64, len(idx))
		for j, i := range idx {
			rets[j], vals[j] = ys[i], xs[i]
		}
		out = append(out, models.BucketReturn{
			Bucket:     b,
			Count:      len(idx),
			MeanReturn: models.Number(stat.Mean(rets, nil)),
			MinFactor:  models.Number(floats.Min(vals)),
			MaxFactor:  models.Number(floats.Max(vals)),
		})
	}
	return out, nil
}

// quantileEdges returns the k+1 linear-interpolation quantile edges of xs with
// duplicates removed.
func quantileEdges(xs []float64, k int) []float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	edges := make([]float64, 0, k+1)
	for j := 0; j <= k; j++ {
		pos := float64(j) / float64(k) * float64(n-1)
		lo := int(math.Floor(pos))
		e := sorted[lo]
		if lo+1 < n {
			e += (pos - float64(lo)) * (sorted[lo+1] - sorted[lo])
		}
		if len(edges) > 0 && e <= edges[len(edges)-1] {
			continue
		}
		edges = append(edges, e)
	}
	return edges
}

// TopBottom returns the indices of the n largest values (descending) and the
// n smallest (ascending). NaNs are ignored.
func TopBottom(values []float64, n int) (top, bottom []int) {
	idx := make([]int, 0, len(values))
	for i, v := range values {
		if !math.IsNaN(v) {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })
	if n > len(idx) {
		n = len(idx)
	}
	if n <= 0 {
		return []int{}, []int{}
	}
	bottom = append([]int(nil), idx[:n]...)
	top = make([]int, n)
	for j := 0; j < n; j++ {
		top[j] = idx[len(idx)-1-j]
	}
	return top, bottom
}
