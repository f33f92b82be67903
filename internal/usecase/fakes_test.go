package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"AlphaLab/internal/domain/models"
	domrepo "AlphaLab/internal/domain/repository"
)

func day(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

// fakeStore serves a synthetic market where security i gains 1%*(i+1) per
// session. alpha_001 ranks securities by that return, alpha_002 inverts it
// and alpha_003 is constant.
type fakeStore struct {
	dates   []time.Time
	secs    []string
	listErr error

	vectors map[string]models.FeatureVector
	corpus  []models.FeatureVector
	prices  map[string][]models.PricePoint
}

func newFakeStore() *fakeStore {
	s := &fakeStore{secs: []string{"S0", "S1", "S2", "S3", "S4"}}
	for _, d := range []string{
		"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05",
		"2024-01-08", "2024-01-09", "2024-01-10", "2024-01-11", "2024-01-12",
	} {
		s.dates = append(s.dates, day(d))
	}
	return s
}

func (s *fakeStore) LatestTradeDate(context.Context) (time.Time, error) {
	if len(s.dates) == 0 {
		return time.Time{}, domrepo.ErrNotFound
	}
	return s.dates[len(s.dates)-1], nil
}

func (s *fakeStore) TradeDates(_ context.Context, from, to time.Time) ([]time.Time, error) {
	var out []time.Time
	for _, d := range s.dates {
		if !d.Before(from) && !d.After(to) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *fakeStore) ListColumns(context.Context, domrepo.Source, string) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return []string{"alpha_002", "alpha_001", "alpha_003"}, nil
}

func (s *fakeStore) value(field string, sec, t int) (float64, error) {
	switch field {
	case domrepo.CloseColumn:
		return 100 * math.Pow(1+0.01*float64(sec+1), float64(t)), nil
	case "alpha_001":
		return float64(sec), nil
	case "alpha_002":
		return -float64(sec), nil
	case "alpha_003":
		return 1, nil
	}
	return 0, fmt.Errorf("column %q: %w", field, models.ErrUnknownColumn)
}

func (s *fakeStore) GetPanel(_ context.Context, q domrepo.PanelQuery) (*models.Panel, error) {
	fields := append([]string{domrepo.CloseColumn}, q.Fields...)
	var keys []models.Key
	cols := make(map[string][]float64, len(fields))
	for t, d := range s.dates {
		if d.Before(q.From) || d.After(q.To) {
			continue
		}
		for i, sec := range s.secs {
			keys = append(keys, models.Key{Security: sec, Date: d})
			for _, f := range fields {
				v, err := s.value(f, i, t)
				if err != nil {
					return nil, err
				}
				cols[f] = append(cols[f], v)
			}
		}
	}
	p := models.NewPanel(keys)
	for f, v := range cols {
		if err := p.SetColumn(f, v); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (s *fakeStore) GetFeatureVector(_ context.Context, security string, date time.Time, _ []string) (models.FeatureVector, error) {
	v, ok := s.vectors[security+date.Format(models.DateLayout)]
	if !ok {
		return models.FeatureVector{}, domrepo.ErrNotFound
	}
	return v, nil
}

func (s *fakeStore) GetFeatureCorpus(_ context.Context, before time.Time, _ []string) ([]models.FeatureVector, error) {
	var out []models.FeatureVector
	for _, v := range s.corpus {
		if v.Date.Before(before) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *fakeStore) GetPriceSeries(_ context.Context, security string, from, to time.Time) ([]models.PricePoint, error) {
	var out []models.PricePoint
	for _, p := range s.prices[security] {
		if !p.Date.Before(from) && !p.Date.After(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) GetSecurityInfo(_ context.Context, securities []string) (map[string]models.SecurityInfo, error) {
	out := make(map[string]models.SecurityInfo, len(securities))
	for _, sec := range securities {
		out[sec] = models.SecurityInfo{Security: sec, Name: "name-" + sec, Industry: "bank"}
	}
	return out, nil
}

type fakeICStore struct {
	mu    sync.Mutex
	saved map[string]models.ICSeries
}

func (f *fakeICStore) Init(context.Context) error   { return nil }
func (f *fakeICStore) Health(context.Context) error { return nil }

func (f *fakeICStore) SaveICRecords(_ context.Context, alpha string, _ int, records models.ICSeries) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = make(map[string]models.ICSeries)
	}
	f.saved[alpha] = append(f.saved[alpha], records...)
	return nil
}

type fakeReports struct {
	mu      sync.Mutex
	reports []*models.EvaluationReport
}

func (f *fakeReports) Publish(_ context.Context, r *models.EvaluationReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return nil
}

func (f *fakeReports) Close() error { return nil }

type fakeJobs struct {
	jobs []models.EvaluationJob
}

func (f *fakeJobs) Submit(_ context.Context, jobs []models.EvaluationJob) error {
	f.jobs = append(f.jobs, jobs...)
	return nil
}

func newTestLab(s *fakeStore) *FactorLab {
	return NewFactorLab(s, s, FactorLabConfig{
		Horizon:      1,
		Quantiles:    5,
		LookbackDays: 5,
		TopN:         2,
		AlphaPrefix:  "alpha_",
		AlphaCount:   3,
	})
}
