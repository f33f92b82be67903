// Package similarity finds historical observations whose technical indicator
// vector lies closest to a query, and extracts their price paths.
package similarity

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"AlphaLab/internal/domain/models"
)

var (
	// ErrDimensionMismatch is returned when a vector's arity differs from the weights.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrIncompleteQuery is returned when the query vector has an undefined component.
	ErrIncompleteQuery = errors.New("incomplete query vector")
)

// Indicator is one weighted component of the feature vector.
type Indicator struct {
	Name   string  `yaml:"name" json:"name"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// DefaultIndicators is rsi_14, bias_20 scaled 5x and cci_14 scaled 0.5x.
var DefaultIndicators = []Indicator{
	{Name: "rsi_14", Weight: 1},
	{Name: "bias_20", Weight: 5},
	{Name: "cci_14", Weight: 0.5},
}

// Split returns the names and weights of indicators in order.
func Split(indicators []Indicator) (names []string, weights []float64) {
	names = make([]string, len(indicators))
	weights = make([]float64, len(indicators))
	for i, ind := range indicators {
		names[i], weights[i] = ind.Name, ind.Weight
	}
	return names, weights
}

// Distance is sqrt(sum((w_i * (a_i - b_i))^2)).
func Distance(a, b, weights []float64) float64 {
	var s float64
	for i := range weights {
		d := weights[i] * (a[i] - b[i])
		s += d * d
	}
	return math.Sqrt(s)
}

// minChunk keeps small corpora on a single goroutine.
const minChunk = 4096

type candidate struct {
	idx  int
	dist float64
}

// Search returns the n candidates closest to query, ascending by distance.
// Only candidates dated strictly before the query with every component
// defined are eligible. Equal distances keep corpus order.
func Search(query models.FeatureVector, corpus []models.FeatureVector, weights []float64, n int) ([]models.Match, error) {
	if len(query.Values) != len(weights) {
		return nil, fmt.Errorf("query has %d components, %d weights: %w", len(query.Values), len(weights), ErrDimensionMismatch)
	}
	if !query.Complete() {
		return nil, fmt.Errorf("%s on %s: %w", query.Security, query.Date.Format(models.DateLayout), ErrIncompleteQuery)
	}
	for i, c := range corpus {
		if len(c.Values) != len(weights) {
			return nil, fmt.Errorf("candidate %d has %d components, %d weights: %w", i, len(c.Values), len(weights), ErrDimensionMismatch)
		}
	}
	if n <= 0 || len(corpus) == 0 {
		return []models.Match{}, nil
	}

	parts := runtime.GOMAXPROCS(0)
	size := (len(corpus) + parts - 1) / parts
	if size < minChunk {
		size = minChunk
	}
	var chunks [][]candidate
	for start := 0; start < len(corpus); start += size {
		chunks = append(chunks, nil)
	}

	var g errgroup.Group
	for c := range chunks {
		start := c * size
		end := min(start+size, len(corpus))
		g.Go(func() error {
			chunks[c] = scan(query, corpus, weights, start, end, n)
			return nil
		})
	}
	_ = g.Wait()

	var merged []candidate
	for _, c := range chunks {
		merged = append(merged, c...)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].dist != merged[j].dist {
			return merged[i].dist < merged[j].dist
		}
		return merged[i].idx < merged[j].idx
	})
	if len(merged) > n {
		merged = merged[:n]
	}

	out := make([]models.Match, len(merged))
	for i, m := range merged {
		c := corpus[m.idx]
		out[i] = models.Match{Security: c.Security, Date: models.TradeDate(c.Date), Distance: m.dist}
	}
	return out, nil
}

// scan keeps a bounded, ascending top-n over corpus[start:end].
func scan(query models.FeatureVector, corpus []models.FeatureVector, weights []float64, start, end, n int) []candidate {
	top := make([]candidate, 0, n+1)
	for i := start; i < end; i++ {
		c := corpus[i]
		if !c.Date.Before(query.Date) || !c.Complete() {
			continue
		}
		d := Distance(c.Values, query.Values, weights)
		if len(top) == n && d >= top[n-1].dist {
			continue
		}
		pos := sort.Search(len(top), func(k int) bool { return top[k].dist > d })
		top = append(top, candidate{})
		copy(top[pos+1:], top[pos:])
		top[pos] = candidate{idx: i, dist: d}
		if len(top) > n {
			top = top[:n]
		}
	}
	return top
}
