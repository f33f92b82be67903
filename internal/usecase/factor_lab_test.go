package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanCrossSectionOrdersByAbsIC(t *testing.T) {
	lab := newTestLab(newFakeStore())

	scan, err := lab.ScanCrossSection(context.Background(), day("2024-01-03"))
	require.NoError(t, err)
	require.Len(t, scan.Results, 3)

	assert.Equal(t, "alpha_001", scan.Results[0].Alpha)
	assert.InDelta(t, 1, scan.Results[0].IC.Float(), 1e-12)
	assert.Equal(t, 5, scan.Results[0].N)
	assert.Equal(t, "alpha_002", scan.Results[1].Alpha)
	assert.InDelta(t, -1, scan.Results[1].IC.Float(), 1e-12)
	assert.Equal(t, "alpha_003", scan.Results[2].Alpha)
	assert.True(t, math.IsNaN(scan.Results[2].IC.Float()))
	assert.Equal(t, day("2024-01-03"), scan.Date.Time())
}

func TestScanCrossSectionDefaultsToLatestDate(t *testing.T) {
	lab := newTestLab(newFakeStore())

	scan, err := lab.ScanCrossSection(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-12"), scan.Date.Time())
	// no forward close exists after the last session
	for _, r := range scan.Results {
		assert.True(t, math.IsNaN(r.IC.Float()), r.Alpha)
	}
}

func TestScanCrossSectionRejectsNonTradingDate(t *testing.T) {
	lab := newTestLab(newFakeStore())

	_, err := lab.ScanCrossSection(context.Background(), day("2024-01-06"))
	assert.ErrorIs(t, err, ErrNoTradeDate)
}

func TestListAlphasFallsBackToCanonicalNames(t *testing.T) {
	s := newFakeStore()
	lab := newTestLab(s)

	got, err := lab.ListAlphas(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha_001", "alpha_002", "alpha_003"}, got)

	s.listErr = errors.New("describe failed")
	got, err = lab.ListAlphas(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha_001", "alpha_002", "alpha_003"}, got)
}

func TestAnalyzeBuildsDailyICAndLayers(t *testing.T) {
	lab := newTestLab(newFakeStore())

	a, err := lab.Analyze(context.Background(), AnalyzeParams{Alpha: "alpha_001", Date: day("2024-01-10"), Top: -1})
	require.NoError(t, err)

	require.Len(t, a.Daily, 5)
	assert.Equal(t, day("2024-01-04"), a.Daily[0].Date.Time())
	assert.Equal(t, day("2024-01-10"), a.Daily[4].Date.Time())
	for _, r := range a.Daily {
		assert.InDelta(t, 1, r.IC.Float(), 1e-12)
	}
	assert.InDelta(t, 5, a.Daily[4].Cumulative.Float(), 1e-9)

	assert.InDelta(t, 1, a.Summary.MeanIC.Float(), 1e-12)
	assert.InDelta(t, 1, a.Summary.PositiveRatio.Float(), 1e-12)
	assert.Equal(t, 5, a.Summary.DefinedDays)

	require.GreaterOrEqual(t, len(a.Layers), 2)
	first, last := a.Layers[0], a.Layers[len(a.Layers)-1]
	assert.Less(t, first.MeanReturn.Float(), last.MeanReturn.Float())

	require.Len(t, a.Top, 2)
	assert.Equal(t, "S4", a.Top[0].Security)
	assert.Equal(t, "name-S4", a.Top[0].Name)
	assert.InDelta(t, 0.05, a.Top[0].Return.Float(), 1e-9)
	require.Len(t, a.Bottom, 2)
	assert.Equal(t, "S0", a.Bottom[0].Security)
}

func TestResolveParamsFillsZeroFromConfig(t *testing.T) {
	lab := newTestLab(newFakeStore())
	cfg := lab.cfg

	for _, top := range []int{0, -1} {
		p := lab.ResolveParams(AnalyzeParams{Alpha: "alpha_001", Top: top})
		assert.Equal(t, cfg.TopN, p.Top)
		assert.Equal(t, cfg.LookbackDays, p.Days)
		assert.Equal(t, cfg.Quantiles, p.Quantiles)
	}

	p := lab.ResolveParams(AnalyzeParams{Days: 30, Quantiles: 3, Top: 1})
	assert.Equal(t, AnalyzeParams{Days: 30, Quantiles: 3, Top: 1}, p)
}

func TestAnalyzeRejectsUnknownAlpha(t *testing.T) {
	lab := newTestLab(newFakeStore())

	for _, alpha := range []string{"alpha_999", "beta_001", "alpha_001; DROP"} {
		_, err := lab.Analyze(context.Background(), AnalyzeParams{Alpha: alpha, Date: day("2024-01-10")})
		assert.ErrorIs(t, err, ErrUnknownAlpha, alpha)
	}
}

func TestScanTargetDateLeavesRoomForHorizon(t *testing.T) {
	lab := newTestLab(newFakeStore())

	d, err := lab.ScanTargetDate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-11"), d)

	s := newFakeStore()
	s.dates = s.dates[:1]
	_, err = newTestLab(s).ScanTargetDate(context.Background())
	assert.ErrorIs(t, err, ErrNoTradeDate)
}
