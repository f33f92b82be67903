// Package evaluator scores factor signals against forward returns.
package evaluator

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"AlphaLab/internal/domain/models"
	"AlphaLab/internal/services/operators"
)

// SpearmanIC is the rank correlation of factor and fwd over the pairs where
// both are defined. Fewer than two pairs or a constant side yields NaN.
func SpearmanIC(factor, fwd []float64) (float64, error) {
	if len(factor) != len(fwd) {
		return math.NaN(), fmt.Errorf("factor has %d values, returns %d: %w", len(factor), len(fwd), models.ErrShapeMismatch)
	}
	ic, _ := spearman(factor, fwd)
	return ic, nil
}

// SpearmanICN is SpearmanIC on aligned inputs, also returning the number of
// pairs that entered the correlation.
func SpearmanICN(factor, fwd []float64) (float64, int) {
	if len(factor) != len(fwd) {
		return math.NaN(), 0
	}
	return spearman(factor, fwd)
}

func spearman(factor, fwd []float64) (float64, int) {
	xs := make([]float64, 0, len(factor))
	ys := make([]float64, 0, len(fwd))
	for i := range factor {
		if math.IsNaN(factor[i]) || math.IsNaN(fwd[i]) {
			continue
		}
		xs = append(xs, factor[i])
		ys = append(ys, fwd[i])
	}
	n := len(xs)
	if n < 2 || floats.Min(xs) == floats.Max(xs) || floats.Min(ys) == floats.Max(ys) {
		return math.NaN(), n
	}
	return stat.Correlation(operators.Rank(xs), operators.Rank(ys), nil), n
}

// DailyIC computes one IC per date, ascending, with a running cumulative sum.
// Undefined days keep a NaN cumulative value and do not move the running sum.
func DailyIC(p *models.Panel, factorCol, returnCol string) (models.ICSeries, error) {
	factor, err := p.Column(factorCol)
	if err != nil {
		return nil, err
	}
	fwd, err := p.Column(returnCol)
	if err != nil {
		return nil, err
	}
	if len(factor) != p.Len() || len(fwd) != p.Len() {
		return nil, fmt.Errorf("daily ic: %w", models.ErrShapeMismatch)
	}

	days := p.GroupByDate()
	out := make(models.ICSeries, 0, len(days))
	var cum float64
	for _, d := range days {
		xs := make([]float64, len(d.Rows))
		ys := make([]float64, len(d.Rows))
		for j, r := range d.Rows {
			xs[j], ys[j] = factor[r], fwd[r]
		}
		ic, n := spearman(xs, ys)
		rec := models.ICRecord{Date: d.Date, IC: ic, Cumulative: math.NaN(), N: n}
		if !math.IsNaN(ic) {
			cum += ic
			rec.Cumulative = cum
		}
		out = append(out, rec)
	}
	return out, nil
}

// Summarize aggregates the defined days of an IC series.
func Summarize(series models.ICSeries) models.ICSummary {
	nan := models.Number(math.NaN())
	sum := models.ICSummary{MeanIC: nan, StdIC: nan, ICIR: nan, PositiveRatio: nan, Days: len(series)}
	defined := series.Defined()
	sum.DefinedDays = len(defined)
	if len(defined) == 0 {
		return sum
	}
	ics := make([]float64, len(defined))
	positive := 0
	for i, r := range defined {
		ics[i] = r.IC
		if r.IC > 0 {
			positive++
		}
	}
	mean, std := stat.MeanStdDev(ics, nil)
	sum.MeanIC = models.Number(mean)
	sum.PositiveRatio = models.Number(float64(positive) / float64(len(ics)))
	if len(ics) > 1 {
		sum.StdIC = models.Number(std)
		if std > 0 {
			sum.ICIR = models.Number(mean / std)
		}
	}
	return sum
}

// SortByAbsIC orders scan results by |IC| descending; undefined ICs go last.
func SortByAbsIC(results []models.AlphaIC) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].IC.Float(), results[j].IC.Float()
		switch {
		case math.IsNaN(a):
			return false
		case math.IsNaN(b):
			return true
		}
		return math.Abs(a) > math.Abs(b)
	})
}
