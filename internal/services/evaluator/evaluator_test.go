package evaluator

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlphaLab/internal/domain/models"
)

func TestSpearmanPerfect(t *testing.T) {
	ic, err := SpearmanIC([]float64{1, 2, 3, 4}, []float64{10, 20, 30, 40})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ic, 1e-12)

	ic, err = SpearmanIC([]float64{1, 2, 3, 4}, []float64{4, 3, 2, 1})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, ic, 1e-12)
}

func TestSpearmanMonotoneInvariant(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	x := make([]float64, 50)
	y := make([]float64, 50)
	for i := range x {
		x[i] = r.NormFloat64()
		y[i] = x[i] + r.NormFloat64()
	}
	base, err := SpearmanIC(x, y)
	require.NoError(t, err)

	tx := make([]float64, len(x))
	ty := make([]float64, len(y))
	for i := range x {
		tx[i] = math.Exp(x[i])
		ty[i] = 3*y[i]*y[i]*y[i] + 7
	}
	got, err := SpearmanIC(tx, ty)
	require.NoError(t, err)
	assert.InDelta(t, base, got, 1e-12)
}

func TestSpearmanDegenerate(t *testing.T) {
	nan := math.NaN()
	cases := []struct {
		name   string
		factor []float64
		fwd    []float64
	}{
		{"empty", nil, nil},
		{"single pair", []float64{1, nan}, []float64{1, 2}},
		{"constant factor", []float64{5, 5, 5}, []float64{1, 2, 3}},
		{"constant returns", []float64{1, 2, 3}, []float64{0, 0, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ic, err := SpearmanIC(tc.factor, tc.fwd)
			require.NoError(t, err)
			assert.True(t, math.IsNaN(ic))
		})
	}

	_, err := SpearmanIC([]float64{1}, []float64{1, 2})
	require.ErrorIs(t, err, models.ErrShapeMismatch)
}

func TestSpearmanDropsMissingPairs(t *testing.T) {
	nan := math.NaN()
	ic, err := SpearmanIC([]float64{1, 2, nan, 3}, []float64{1, 2, 100, 3})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ic, 1e-12)
}

func day(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

func TestDailyIC(t *testing.T) {
	var keys []models.Key
	var factor, fwd []float64
	add := func(d int, sec string, f, r float64) {
		keys = append(keys, models.Key{Security: sec, Date: day(d)})
		factor = append(factor, f)
		fwd = append(fwd, r)
	}
	// day 2 listed first to check ordering
	add(2, "A", 1, 0.03)
	add(2, "B", 2, 0.02)
	add(2, "C", 3, 0.01)
	add(1, "A", 1, 0.01)
	add(1, "B", 2, 0.02)
	add(1, "C", 3, 0.03)
	add(3, "A", 1, 0.05)
	add(3, "B", 1, 0.01)
	add(4, "A", 1, 0.01)
	add(4, "B", 2, 0.02)
	add(4, "C", 3, 0.03)

	p := models.NewPanel(keys)
	require.NoError(t, p.SetColumn("alpha_001", factor))
	require.NoError(t, p.SetColumn("fwd", fwd))

	series, err := DailyIC(p, "alpha_001", "fwd")
	require.NoError(t, err)
	require.Len(t, series, 4)

	assert.True(t, series[0].Date.Equal(day(1)))
	assert.InDelta(t, 1.0, series[0].IC, 1e-12)
	assert.InDelta(t, 1.0, series[0].Cumulative, 1e-12)
	assert.InDelta(t, -1.0, series[1].IC, 1e-12)
	assert.InDelta(t, 0.0, series[1].Cumulative, 1e-12)
	assert.True(t, math.IsNaN(series[2].IC), "constant factor day is undefined")
	assert.True(t, math.IsNaN(series[2].Cumulative))
	assert.Equal(t, 2, series[2].N)
	assert.InDelta(t, 1.0, series[3].Cumulative, 1e-12)

	sum := Summarize(series)
	assert.Equal(t, 4, sum.Days)
	assert.Equal(t, 3, sum.DefinedDays)
	assert.InDelta(t, 1.0/3.0, sum.MeanIC.Float(), 1e-12)
	assert.InDelta(t, 2.0/3.0, sum.PositiveRatio.Float(), 1e-12)
	assert.True(t, sum.ICIR.Valid())

	_, err = DailyIC(p, "alpha_999", "fwd")
	require.ErrorIs(t, err, models.ErrUnknownColumn)
}

func TestSummarizeEmpty(t *testing.T) {
	sum := Summarize(nil)
	assert.Equal(t, 0, sum.DefinedDays)
	assert.False(t, sum.MeanIC.Valid())
	assert.False(t, sum.ICIR.Valid())
}

func TestSortByAbsIC(t *testing.T) {
	res := []models.AlphaIC{
		{Alpha: "a", IC: models.Number(0.1)},
		{Alpha: "b", IC: models.Number(math.NaN())},
		{Alpha: "c", IC: models.Number(-0.3)},
		{Alpha: "d", IC: models.Number(0.2)},
	}
	SortByAbsIC(res)
	var order []string
	for _, r := range res {
		order = append(order, r.Alpha)
	}
	assert.Equal(t, []string{"c", "d", "a", "b"}, order)
}
