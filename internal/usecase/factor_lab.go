package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"AlphaLab/internal/domain/models"
	domrepo "AlphaLab/internal/domain/repository"
	"AlphaLab/internal/services/evaluator"
	"AlphaLab/internal/services/features"
	applogger "AlphaLab/pkg/logger"
)

var (
	ErrNoTradeDate  = errors.New("no trade date")
	ErrUnknownAlpha = errors.New("unknown alpha")
)

// fwdColumn holds the forward return attached to every panel.
const fwdColumn = "fwd_ret"

type FactorLabConfig struct {
	Horizon      int
	Quantiles    int
	LookbackDays int
	TopN         int
	AlphaPrefix  string
	AlphaCount   int
}

// AnalyzeParams selects one alpha deep dive. Zero or negative Days, Quantiles and Top
// fall back to the lab config.
type AnalyzeParams struct {
	Alpha     string
	Date      time.Time
	Days      int
	Quantiles int
	Top       int
}

// SecurityDirectory resolves display metadata for securities.
type SecurityDirectory interface {
	GetSecurityInfo(ctx context.Context, securities []string) (map[string]models.SecurityInfo, error)
}

// FactorLab evaluates stored alpha columns against forward returns.
type FactorLab struct {
	store   domrepo.PanelStore
	dir     SecurityDirectory
	cfg     FactorLabConfig
	l       *applogger.Logger
	metrics domrepo.Metrics
}

func NewFactorLab(store domrepo.PanelStore, dir SecurityDirectory, cfg FactorLabConfig) *FactorLab {
	if cfg.Horizon < 1 {
		cfg.Horizon = 1
	}
	if cfg.AlphaPrefix == "" {
		cfg.AlphaPrefix = "alpha_"
	}
	return &FactorLab{store: store, dir: dir, cfg: cfg, l: applogger.Nop()}
}

func (f *FactorLab) SetLogger(l *applogger.Logger) { f.l = l }

func (f *FactorLab) SetMetrics(m domrepo.Metrics) { f.metrics = m }

// Horizon is the forward-return horizon in sessions.
func (f *FactorLab) Horizon() int { return f.cfg.Horizon }

// ListAlphas returns the alpha columns of the factor table, sorted. When the
// table cannot be described the canonical alpha_001..alpha_NNN names are returned.
func (f *FactorLab) ListAlphas(ctx context.Context) ([]string, error) {
	cols, err := f.store.ListColumns(ctx, domrepo.SourceAlphas, f.cfg.AlphaPrefix)
	if err == nil && len(cols) > 0 {
		sort.Strings(cols)
		return cols, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		f.l.Warn("describe factor table failed, using default alpha list", applogger.Error(err))
	}
	out := make([]string, f.cfg.AlphaCount)
	for i := range out {
		out[i] = fmt.Sprintf("%s%03d", f.cfg.AlphaPrefix, i+1)
	}
	return out, nil
}

// LatestTradeDate is the most recent date with market data.
func (f *FactorLab) LatestTradeDate(ctx context.Context) (time.Time, error) {
	d, err := f.store.LatestTradeDate(ctx)
	if errors.Is(err, domrepo.ErrNotFound) {
		return time.Time{}, fmt.Errorf("latest trade date: %w", ErrNoTradeDate)
	}
	return d, err
}

// ScanTargetDate is the most recent date whose forward return is already observable.
func (f *FactorLab) ScanTargetDate(ctx context.Context) (time.Time, error) {
	latest, err := f.LatestTradeDate(ctx)
	if err != nil {
		return time.Time{}, err
	}
	dates, err := f.store.TradeDates(ctx, features.LookbackStart(latest, f.cfg.Horizon+5), latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("trade dates: %w", err)
	}
	if len(dates) <= f.cfg.Horizon {
		return time.Time{}, fmt.Errorf("%d sessions before %s: %w", f.cfg.Horizon, latest.Format(models.DateLayout), ErrNoTradeDate)
	}
	return dates[len(dates)-1-f.cfg.Horizon], nil
}

func (f *FactorLab) resolveDate(ctx context.Context, d time.Time) (time.Time, error) {
	if d.IsZero() {
		return f.LatestTradeDate(ctx)
	}
	return d, nil
}

// forwardEnd returns the last date needed to compute h-session returns for date d.
func (f *FactorLab) forwardEnd(ctx context.Context, d time.Time) (time.Time, error) {
	dates, err := f.store.TradeDates(ctx, d, features.LookaheadEnd(d, f.cfg.Horizon))
	if err != nil {
		return time.Time{}, fmt.Errorf("trade dates: %w", err)
	}
	if len(dates) == 0 || !dates[0].Equal(d) {
		return time.Time{}, fmt.Errorf("%s: %w", d.Format(models.DateLayout), ErrNoTradeDate)
	}
	if len(dates) > f.cfg.Horizon {
		return dates[f.cfg.Horizon], nil
	}
	return dates[len(dates)-1], nil
}

func (f *FactorLab) loadPanel(ctx context.Context, fields []string, from, to time.Time) (*models.Panel, error) {
	p, err := f.store.GetPanel(ctx, domrepo.PanelQuery{
		Source: domrepo.SourceAlphas,
		Fields: fields,
		From:   from,
		To:     to,
	})
	if err != nil {
		return nil, fmt.Errorf("load panel: %w", err)
	}
	if err := features.AttachForwardReturns(p, domrepo.CloseColumn, fwdColumn, f.cfg.Horizon); err != nil {
		return nil, err
	}
	return p, nil
}

// ScanCrossSection computes the IC of every alpha on one date, sorted by |IC|
// descending with undefined ICs last. A zero date means the latest trade date.
func (f *FactorLab) ScanCrossSection(ctx context.Context, date time.Time) (*models.CrossSectionScan, error) {
	start := time.Now()
	d, err := f.resolveDate(ctx, date)
	if err != nil {
		return nil, err
	}
	alphas, err := f.ListAlphas(ctx)
	if err != nil {
		return nil, err
	}
	end, err := f.forwardEnd(ctx, d)
	if err != nil {
		return nil, err
	}
	p, err := f.loadPanel(ctx, alphas, d, end)
	if err != nil {
		return nil, err
	}

	cs := p.CrossSection(d)
	fwd, err := cs.Column(fwdColumn)
	if err != nil {
		return nil, err
	}
	results := make([]models.AlphaIC, 0, len(alphas))
	for _, a := range alphas {
		x, err := cs.Column(a)
		if err != nil {
			return nil, err
		}
		ic, n := evaluator.SpearmanICN(x, fwd)
		results = append(results, models.AlphaIC{Alpha: a, IC: models.Number(ic), N: n})
		if f.metrics != nil {
			f.metrics.RecordIC(a, ic)
		}
	}
	evaluator.SortByAbsIC(results)

	f.observe("scan", start)
	f.l.Info("cross-section scan done",
		applogger.Date("date", d),
		applogger.Int("alphas", len(alphas)),
		applogger.Int("securities", cs.Len()),
		applogger.Duration("took", time.Since(start)),
	)
	return &models.CrossSectionScan{Date: models.TradeDate(d), Horizon: f.cfg.Horizon, Results: results}, nil
}

// Analyze runs the single-alpha deep dive: daily IC over the lookback window
// ending at the date, its summary, quantile layers and extreme exposures on the date.
func (f *FactorLab) Analyze(ctx context.Context, params AnalyzeParams) (*models.AlphaAnalysis, error) {
	a, _, err := f.analyze(ctx, params)
	return a, err
}

func (f *FactorLab) analyze(ctx context.Context, params AnalyzeParams) (*models.AlphaAnalysis, models.ICSeries, error) {
	start := time.Now()
	params = f.withDefaults(params)
	if !domrepo.IsValidIdentifier(params.Alpha) || !strings.HasPrefix(params.Alpha, f.cfg.AlphaPrefix) {
		return nil, nil, fmt.Errorf("%q: %w", params.Alpha, ErrUnknownAlpha)
	}
	alphas, err := f.ListAlphas(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !contains(alphas, params.Alpha) {
		return nil, nil, fmt.Errorf("%q: %w", params.Alpha, ErrUnknownAlpha)
	}

	end, err := f.resolveDate(ctx, params.Date)
	if err != nil {
		return nil, nil, err
	}
	window, err := f.store.TradeDates(ctx, features.LookbackStart(end, params.Days), end)
	if err != nil {
		return nil, nil, fmt.Errorf("trade dates: %w", err)
	}
	window = features.TrimDates(window, params.Days)
	if len(window) == 0 || !window[len(window)-1].Equal(end) {
		return nil, nil, fmt.Errorf("%s: %w", end.Format(models.DateLayout), ErrNoTradeDate)
	}
	fwdEnd, err := f.forwardEnd(ctx, end)
	if err != nil {
		return nil, nil, err
	}
	from := window[0]

	p, err := f.loadPanel(ctx, []string{params.Alpha}, from, fwdEnd)
	if err != nil {
		return nil, nil, err
	}
	p = p.Filter(func(k models.Key) bool { return !k.Date.After(end) })

	series, err := evaluator.DailyIC(p, params.Alpha, fwdColumn)
	if err != nil {
		return nil, nil, err
	}

	cs := p.CrossSection(end)
	x, _ := cs.Column(params.Alpha)
	fwd, _ := cs.Column(fwdColumn)
	layers, err := evaluator.QuantileLayers(x, fwd, params.Quantiles)
	if err != nil {
		return nil, nil, err
	}
	topIdx, bottomIdx := evaluator.TopBottom(x, params.Top)

	out := &models.AlphaAnalysis{
		Alpha:   params.Alpha,
		Date:    models.TradeDate(end),
		Horizon: f.cfg.Horizon,
		Summary: evaluator.Summarize(series),
		Daily:   series.View(),
		Layers:  layers,
	}
	out.Top, out.Bottom = f.exposures(ctx, cs, x, fwd, topIdx, bottomIdx)

	if f.metrics != nil {
		if def := series.Defined(); len(def) > 0 {
			f.metrics.RecordIC(params.Alpha, def[len(def)-1].IC)
		}
	}
	f.observe("analyze", start)
	f.l.Info("alpha analysis done",
		applogger.String("alpha", params.Alpha),
		applogger.Date("date", end),
		applogger.Int("days", len(series)),
		applogger.Int("buckets", len(layers)),
		applogger.Duration("took", time.Since(start)),
	)
	return out, series, nil
}

// ResolveParams fills zero or negative Days, Quantiles and Top from the lab config.
func (f *FactorLab) ResolveParams(p AnalyzeParams) AnalyzeParams { return f.withDefaults(p) }

func (f *FactorLab) withDefaults(p AnalyzeParams) AnalyzeParams {
	if p.Days <= 0 {
		p.Days = f.cfg.LookbackDays
	}
	if p.Quantiles <= 0 {
		p.Quantiles = f.cfg.Quantiles
	}
	if p.Top <= 0 {
		p.Top = f.cfg.TopN
	}
	return p
}

// exposures resolves names for the extreme rows. Directory failures only drop the names.
func (f *FactorLab) exposures(ctx context.Context, cs *models.Panel, x, fwd []float64, top, bottom []int) ([]models.Exposure, []models.Exposure) {
	secs := make([]string, 0, len(top)+len(bottom))
	for _, i := range append(append([]int(nil), top...), bottom...) {
		secs = append(secs, cs.Keys[i].Security)
	}
	info := map[string]models.SecurityInfo{}
	if f.dir != nil && len(secs) > 0 {
		m, err := f.dir.GetSecurityInfo(ctx, secs)
		if err != nil {
			f.l.Warn("security info lookup failed", applogger.Error(err))
		} else {
			info = m
		}
	}
	build := func(idx []int) []models.Exposure {
		out := make([]models.Exposure, len(idx))
		for j, i := range idx {
			sec := cs.Keys[i].Security
			out[j] = models.Exposure{
				Security: sec,
				Name:     info[sec].Name,
				Industry: info[sec].Industry,
				Value:    models.Number(x[i]),
				Return:   models.Number(fwd[i]),
			}
		}
		return out
	}
	return build(top), build(bottom)
}

func (f *FactorLab) observe(op string, start time.Time) {
	if f.metrics != nil {
		f.metrics.RecordLatency(op, time.Since(start).Seconds())
	}
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
