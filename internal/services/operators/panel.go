package operators

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"AlphaLab/internal/domain/models"
)

// SeriesFunc maps the date-ordered series of one security (one slice per input
// column) to an output series of the same length.
type SeriesFunc func(cols [][]float64) ([]float64, error)

// SectionFunc maps one cross-section to a cross-section of the same length.
type SectionFunc func(x []float64) []float64

// ApplyTimeSeries runs fn once per security and scatters the result back into
// panel order. Securities are processed in parallel.
func ApplyTimeSeries(p *models.Panel, cols []string, fn SeriesFunc) ([]float64, error) {
	inputs := make([][]float64, len(cols))
	for i, name := range cols {
		col, err := p.Column(name)
		if err != nil {
			return nil, err
		}
		if len(col) != p.Len() {
			return nil, fmt.Errorf("column %q: %w", name, models.ErrShapeMismatch)
		}
		inputs[i] = col
	}
	groups, err := p.GroupBySecurity()
	if err != nil {
		return nil, err
	}

	out := nanSlice(p.Len())
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for sec, rows := range groups {
		g.Go(func() error {
			series := make([][]float64, len(inputs))
			for c, col := range inputs {
				s := make([]float64, len(rows))
				for j, r := range rows {
					s[j] = col[r]
				}
				series[c] = s
			}
			res, err := fn(series)
			if err != nil {
				return fmt.Errorf("security %s: %w", sec, err)
			}
			if len(res) != len(rows) {
				return fmt.Errorf("security %s returned %d values for %d rows: %w", sec, len(res), len(rows), models.ErrShapeMismatch)
			}
			for j, r := range rows {
				out[r] = res[j]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyCrossSection runs fn once per date over the named column.
func ApplyCrossSection(p *models.Panel, col string, fn SectionFunc) ([]float64, error) {
	in, err := p.Column(col)
	if err != nil {
		return nil, err
	}
	if len(in) != p.Len() {
		return nil, fmt.Errorf("column %q: %w", col, models.ErrShapeMismatch)
	}
	out := nanSlice(p.Len())
	for _, day := range p.GroupByDate() {
		x := make([]float64, len(day.Rows))
		for j, r := range day.Rows {
			x[j] = in[r]
		}
		res := fn(x)
		if len(res) != len(x) {
			return nil, fmt.Errorf("date %s: %w", day.Date.Format(models.DateLayout), models.ErrShapeMismatch)
		}
		for j, r := range day.Rows {
			out[r] = res[j]
		}
	}
	return out, nil
}
