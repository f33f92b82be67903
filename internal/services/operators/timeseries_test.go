package operators

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlphaLab/internal/domain/models"
)

var nan = math.NaN()

func assertSeries(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.Truef(t, math.IsNaN(got[i]), "index %d: want NaN, got %v", i, got[i])
			continue
		}
		assert.InDeltaf(t, want[i], got[i], 1e-9, "index %d", i)
	}
}

func TestDelayDelta(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}

	d, err := Delta(x, 2)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, 2, 2, 2}, d)

	l, err := Delay(x, 1)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, 1, 2, 3, 4}, l)

	l, err = Delay(x, 0)
	require.NoError(t, err)
	assertSeries(t, x, l)

	_, err = Delay(x, -1)
	require.ErrorIs(t, err, ErrInvalidWindow)
}

func TestTsMinMax(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	lo, err := TsMin(x, 3)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, 1, 2, 3}, lo)

	hi, err := TsMax(x, 3)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, 3, 4, 5}, hi)

	_, err = TsMax(x, 0)
	require.ErrorIs(t, err, ErrInvalidWindow)
}

func TestTsMaxNotBelowTsMin(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	x := make([]float64, 500)
	for i := range x {
		x[i] = r.NormFloat64()
		if i%37 == 0 {
			x[i] = nan
		}
	}
	for _, w := range []int{1, 2, 5, 20} {
		lo, err := TsMin(x, w)
		require.NoError(t, err)
		hi, err := TsMax(x, w)
		require.NoError(t, err)
		for i := range x {
			if math.IsNaN(lo[i]) || math.IsNaN(hi[i]) {
				continue
			}
			assert.GreaterOrEqual(t, hi[i]-lo[i], 0.0)
		}
	}
}

func TestTsMinMatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	x := make([]float64, 200)
	for i := range x {
		x[i] = float64(r.Intn(10))
	}
	w := 6
	lo, err := TsMin(x, w)
	require.NoError(t, err)
	arg, err := TsArgMin(x, w)
	require.NoError(t, err)
	for i := w - 1; i < len(x); i++ {
		best, off := x[i-w+1], 0
		for k := 1; k < w; k++ {
			if x[i-w+1+k] < best {
				best, off = x[i-w+1+k], k
			}
		}
		assert.Equal(t, best, lo[i])
		assert.Equal(t, float64(off), arg[i])
	}
}

func TestTsArgFirstOccurrence(t *testing.T) {
	x := []float64{3, 1, 1, 5, 5}
	amin, err := TsArgMin(x, 3)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, 1, 0, 0}, amin)

	amax, err := TsArgMax(x, 3)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, 0, 2, 1}, amax)
}

func TestWindowWithNaNIsUndefined(t *testing.T) {
	x := []float64{1, nan, 3, 4, 5, 6}
	s, err := Sum(x, 2)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, nan, 7, 9, 11}, s)

	m, err := TsMin(x, 2)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, nan, 3, 4, 5}, m)
}

func TestSumRecoversAfterLargeValueLeaves(t *testing.T) {
	s, err := Sum([]float64{1e20, 1, 1, 1}, 2)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(s[0]))
	assert.Equal(t, []float64{1e20, 2, 2}, s[1:])
}

func TestSumMatchesBruteForceAcrossMagnitudes(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	x := make([]float64, 300)
	for i := range x {
		x[i] = r.Float64()
		if i%37 == 0 {
			x[i] = 1e18 * (1 + r.Float64())
		}
	}
	w := 5
	got, err := Sum(x, w)
	require.NoError(t, err)
	for i := w - 1; i < len(x); i++ {
		var want float64
		for _, v := range x[i-w+1 : i+1] {
			want += v
		}
		assert.Equal(t, want, got[i], "index %d", i)
	}
}

func TestProductMatchesBruteForce(t *testing.T) {
	x := []float64{1e10, 0.5, 3, 1e-10, 2, 7, 0.25}
	w := 3
	got, err := Product(x, w)
	require.NoError(t, err)
	for i := w - 1; i < len(x); i++ {
		want := 1.0
		for _, v := range x[i-w+1 : i+1] {
			want *= v
		}
		assert.InEpsilon(t, want, got[i], 1e-12, "index %d", i)
	}
}

func TestProduct(t *testing.T) {
	p, err := Product([]float64{1, 2, 3, 4}, 2)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, 2, 6, 12}, p)

	p, err = Product([]float64{2, -1, 3, 4, 0, 5}, 2)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, nan, 12, nan, nan}, p)
}

func TestStdDev(t *testing.T) {
	s, err := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(32.0/7.0), s[7], 1e-12)
	assert.True(t, math.IsNaN(s[6]))

	s, err = StdDev([]float64{1, 2, 3}, 1)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, nan}, s)
}

func TestCorrelation(t *testing.T) {
	x := []float64{1, 3, 2, 5, 4, 6}
	c, err := Correlation(x, x, 3)
	require.NoError(t, err)
	for i := 2; i < len(x); i++ {
		assert.InDelta(t, 1.0, c[i], 1e-12)
	}

	neg := make([]float64, len(x))
	for i, v := range x {
		neg[i] = -2 * v
	}
	c, err = Correlation(x, neg, 4)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, c[5], 1e-12)

	flat := []float64{2, 2, 2, 2, 2, 2}
	c, err = Correlation(x, flat, 3)
	require.NoError(t, err)
	assertSeries(t, nanSlice(len(x)), c)

	_, err = Correlation(x, x[:3], 3)
	require.ErrorIs(t, err, models.ErrShapeMismatch)
}

func TestCovariance(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	y := []float64{2, 4, 6, 8}
	c, err := Covariance(x, y, 4)
	require.NoError(t, err)
	assert.InDelta(t, 10.0/3.0, c[3], 1e-12)

	c, err = Covariance(x, []float64{1, 1, 1, 1}, 4)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(c[3]))
}

func TestTsRank(t *testing.T) {
	r, err := TsRank([]float64{1, 2, 3, 2, 2, 1}, 3)
	require.NoError(t, err)
	// windows: [1 2 3]->3, [2 3 2]->1.5, [3 2 2]->1.5, [2 2 1]->1
	assertSeries(t, []float64{nan, nan, 3, 1.5, 1.5, 1}, r)
}

func TestDecayLinear(t *testing.T) {
	c := []float64{4, 4, 4, 4, 4}
	d, err := DecayLinear(c, 3)
	require.NoError(t, err)
	assertSeries(t, []float64{nan, nan, 4, 4, 4}, d)

	d, err = DecayLinear([]float64{1, 2, 3}, 3)
	require.NoError(t, err)
	assert.InDelta(t, (1*1+2*2+3*3)/6.0, d[2], 1e-12)
}
