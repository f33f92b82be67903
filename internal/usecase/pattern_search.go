package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"AlphaLab/internal/domain/models"
	domrepo "AlphaLab/internal/domain/repository"
	"AlphaLab/internal/services/features"
	"AlphaLab/internal/services/similarity"
	applogger "AlphaLab/pkg/logger"
)

var (
	ErrVectorNotFound  = errors.New("feature vector not found")
	ErrNoPriceHistory  = errors.New("no price history")
	ErrIncompleteQuery = similarity.ErrIncompleteQuery
)

type PatternSearchConfig struct {
	Indicators []similarity.Indicator
	TopN       int
	DaysBefore int
	DaysAfter  int
}

// PatternSearch finds historical (security, date) pairs whose indicator
// vector is closest to a query and attaches their price paths.
type PatternSearch struct {
	store   domrepo.FeatureStore
	cfg     PatternSearchConfig
	names   []string
	weights []float64
	l       *applogger.Logger
	metrics domrepo.Metrics
}

func NewPatternSearch(store domrepo.FeatureStore, cfg PatternSearchConfig) *PatternSearch {
	if len(cfg.Indicators) == 0 {
		cfg.Indicators = similarity.DefaultIndicators
	}
	names, weights := similarity.Split(cfg.Indicators)
	return &PatternSearch{
		store:   store,
		cfg:     cfg,
		names:   names,
		weights: weights,
		l:       applogger.Nop(),
	}
}

func (s *PatternSearch) SetLogger(l *applogger.Logger) { s.l = l }

func (s *PatternSearch) SetMetrics(m domrepo.Metrics) { s.metrics = m }

// FindSimilar returns the n nearest earlier observations to (security, date).
// A non-positive n uses the configured default.
func (s *PatternSearch) FindSimilar(ctx context.Context, security string, date time.Time, n int) (*models.PatternResult, error) {
	start := time.Now()
	if n <= 0 {
		n = s.cfg.TopN
	}

	query, err := s.store.GetFeatureVector(ctx, security, date, s.names)
	if errors.Is(err, domrepo.ErrNotFound) {
		return nil, fmt.Errorf("%s on %s: %w", security, date.Format(models.DateLayout), ErrVectorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load query vector: %w", err)
	}
	if !query.Complete() {
		return nil, fmt.Errorf("%s on %s: %w", security, date.Format(models.DateLayout), ErrIncompleteQuery)
	}

	corpus, err := s.store.GetFeatureCorpus(ctx, date, s.names)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordRows(string(domrepo.SourceTechnical), len(corpus))
	}
	matches, err := similarity.Search(query, corpus, s.weights, n)
	if err != nil {
		return nil, err
	}

	paths := make([]models.MatchPath, len(matches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, m := range matches {
		g.Go(func() error {
			w, err := s.window(gctx, m.Security, m.Date.Time(), s.cfg.DaysBefore, s.cfg.DaysAfter)
			if err != nil {
				return fmt.Errorf("window for %s: %w", m.Security, err)
			}
			paths[i] = models.MatchPath{Match: m, Window: w}
			return nil
		})
	}
	var queryWindow []models.WindowPoint
	g.Go(func() error {
		w, err := s.window(gctx, security, date, s.cfg.DaysBefore, 0)
		queryWindow = w
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	secs := make([]string, 0, len(paths))
	for _, p := range paths {
		secs = append(secs, p.Security)
	}
	if len(secs) > 0 {
		info, err := s.store.GetSecurityInfo(ctx, secs)
		if err != nil {
			s.l.Warn("security info lookup failed", applogger.Error(err))
		}
		for i := range paths {
			paths[i].Name = info[paths[i].Security].Name
		}
	}

	indicators := make(map[string]float64, len(s.names))
	for i, name := range s.names {
		indicators[name] = query.Values[i]
	}
	if s.metrics != nil {
		s.metrics.RecordLatency("similar", time.Since(start).Seconds())
	}
	s.l.Info("pattern search done",
		applogger.String("security", security),
		applogger.Date("date", date),
		applogger.Int("corpus", len(corpus)),
		applogger.Int("matches", len(paths)),
		applogger.Duration("took", time.Since(start)),
	)
	return &models.PatternResult{
		Security:   security,
		Date:       models.TradeDate(date),
		Indicators: indicators,
		Query:      queryWindow,
		Matches:    paths,
	}, nil
}

// Window returns the anchor-normalised close path around (security, date).
func (s *PatternSearch) Window(ctx context.Context, security string, date time.Time, before, after int) ([]models.WindowPoint, error) {
	w, err := s.window(ctx, security, date, before, after)
	if err != nil {
		return nil, err
	}
	if len(w) == 0 {
		return nil, fmt.Errorf("%s on %s: %w", security, date.Format(models.DateLayout), ErrNoPriceHistory)
	}
	return w, nil
}

func (s *PatternSearch) window(ctx context.Context, security string, date time.Time, before, after int) ([]models.WindowPoint, error) {
	if before < 0 || after < 0 {
		return similarity.PriceWindow(nil, date, before, after)
	}
	// one extra lookback session so the anchor survives a holiday on date
	prices, err := s.store.GetPriceSeries(ctx, security, features.LookbackStart(date, before+1), features.LookaheadEnd(date, after))
	if err != nil && !errors.Is(err, domrepo.ErrNotFound) {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	return similarity.PriceWindow(prices, date, before, after)
}
