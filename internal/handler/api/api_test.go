package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlphaLab/internal/domain/models"
	domrepo "AlphaLab/internal/domain/repository"
	"AlphaLab/internal/service/ratelimit"
	"AlphaLab/internal/services/operators"
	"AlphaLab/internal/usecase"
	"AlphaLab/pkg/cache"
)

// stubStore: security i closes at 10*(1.01+0.01i)^t; alpha_001 = i, alpha_002 = -i.
type stubStore struct {
	dates []time.Time
}

func newStubStore() *stubStore {
	s := &stubStore{}
	for _, d := range []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05", "2024-01-08", "2024-01-09", "2024-01-10", "2024-01-11"} {
		t, _ := time.Parse(models.DateLayout, d)
		s.dates = append(s.dates, t)
	}
	return s
}

func (s *stubStore) LatestTradeDate(context.Context) (time.Time, error) {
	return s.dates[len(s.dates)-1], nil
}

func (s *stubStore) TradeDates(_ context.Context, from, to time.Time) ([]time.Time, error) {
	var out []time.Time
	for _, d := range s.dates {
		if !d.Before(from) && !d.After(to) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *stubStore) ListColumns(context.Context, domrepo.Source, string) ([]string, error) {
	return []string{"alpha_001", "alpha_002"}, nil
}

func (s *stubStore) GetPanel(_ context.Context, q domrepo.PanelQuery) (*models.Panel, error) {
	var keys []models.Key
	cols := map[string][]float64{}
	for t, d := range s.dates {
		if d.Before(q.From) || d.After(q.To) {
			continue
		}
		for i := 0; i < 4; i++ {
			keys = append(keys, models.Key{Security: fmt.Sprintf("S%d", i), Date: d})
			cl := 10.0
			for k := 0; k < t; k++ {
				cl *= 1.01 + 0.01*float64(i)
			}
			cols[domrepo.CloseColumn] = append(cols[domrepo.CloseColumn], cl)
			cols["alpha_001"] = append(cols["alpha_001"], float64(i))
			cols["alpha_002"] = append(cols["alpha_002"], -float64(i))
		}
	}
	p := models.NewPanel(keys)
	for _, f := range append([]string{domrepo.CloseColumn}, q.Fields...) {
		if err := p.SetColumn(f, cols[f]); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (s *stubStore) GetFeatureVector(context.Context, string, time.Time, []string) (models.FeatureVector, error) {
	return models.FeatureVector{}, domrepo.ErrNotFound
}

func (s *stubStore) GetFeatureCorpus(context.Context, time.Time, []string) ([]models.FeatureVector, error) {
	return nil, nil
}

func (s *stubStore) GetPriceSeries(_ context.Context, security string, from, to time.Time) ([]models.PricePoint, error) {
	if security != "S0" {
		return nil, nil
	}
	var out []models.PricePoint
	for i, d := range s.dates {
		if !d.Before(from) && !d.After(to) {
			out = append(out, models.PricePoint{Date: d, Close: 10 + float64(i)})
		}
	}
	return out, nil
}

func (s *stubStore) GetSecurityInfo(context.Context, []string) (map[string]models.SecurityInfo, error) {
	return map[string]models.SecurityInfo{}, nil
}

type stubJobs struct{ n int }

func (s *stubJobs) Submit(_ context.Context, jobs []models.EvaluationJob) error {
	s.n += len(jobs)
	return nil
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, pub *stubJobs, rl *ratelimit.Limiter) *echo.Echo {
	t.Helper()
	store := newStubStore()
	lab := usecase.NewFactorLab(store, store, usecase.FactorLabConfig{Horizon: 1, Quantiles: 4, LookbackDays: 5, TopN: 2, AlphaPrefix: "alpha_", AlphaCount: 2})
	search := usecase.NewPatternSearch(store, usecase.PatternSearchConfig{TopN: 3, DaysBefore: 2, DaysAfter: 2})
	var submitter *usecase.JobSubmitter
	if pub != nil {
		submitter = usecase.NewJobSubmitter(lab, pub)
	} else {
		submitter = usecase.NewJobSubmitter(lab, nil)
	}
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	t.Cleanup(func() { _ = mc.Close() })
	loader := cache.NewLoader(mc, nil)
	ttl := CacheTTL{Catalog: time.Minute, Scan: time.Minute, Analyze: time.Minute, Similar: time.Minute}

	e := echo.New()
	NewFactorHandler(lab, submitter, loader, rl, ttl, nil).RegisterRoutes(e)
	NewPatternHandler(search, loader, rl, ttl, nil).RegisterRoutes(e)
	NewHealthHandler(map[string]HealthCheck{"store": func(context.Context) error { return nil }}, nil).RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestScanEndpoint(t *testing.T) {
	e := newTestServer(t, nil, nil)

	rec := do(e, http.MethodGet, "/api/alphas/scan?date=2024-01-03", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var scan struct {
		Date    string `json:"date"`
		Results []struct {
			Alpha string   `json:"alpha"`
			IC    *float64 `json:"ic"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &scan))
	assert.Equal(t, "2024-01-03", scan.Date)
	require.Len(t, scan.Results, 2)
	require.NotNil(t, scan.Results[0].IC)
	assert.InDelta(t, 1, *scan.Results[0].IC, 1e-9)

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/api/alphas/scan?date=03-01-2024", "").Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/api/alphas/scan?date=2024-01-06", "").Code)
}

func TestAlphasAndAnalyzeEndpoints(t *testing.T) {
	e := newTestServer(t, nil, nil)

	rec := do(e, http.MethodGet, "/api/alphas", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":2`)

	rec = do(e, http.MethodGet, "/api/alphas/analyze?alpha=alpha_001&date=2024-01-10&days=5&quantiles=2&top=1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"alpha":"alpha_001"`)

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/api/alphas/analyze?alpha=alpha_404", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/api/alphas/analyze?alpha=beta", "").Code)

	rec = do(e, http.MethodGet, "/api/alphas/analyze/export?alpha=alpha_002&date=2024-01-10&days=5", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, xlsxMIME, rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "alpha_002_2024-01-10.xlsx")
}

func TestAnalyzeZeroTopUsesConfiguredTopN(t *testing.T) {
	e := newTestServer(t, nil, nil)

	var bodies []string
	for _, q := range []string{"", "&top=0"} {
		rec := do(e, http.MethodGet, "/api/alphas/analyze?alpha=alpha_001&date=2024-01-10"+q, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var env envelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		var a struct {
			Top    []json.RawMessage `json:"top"`
			Bottom []json.RawMessage `json:"bottom"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &a))
		assert.Len(t, a.Top, 2)
		assert.Len(t, a.Bottom, 2)
		bodies = append(bodies, rec.Body.String())
	}
	assert.Equal(t, bodies[0], bodies[1])

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/api/alphas/analyze?alpha=alpha_001&top=-1", "").Code)
}

func TestJobsEndpoint(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, do(newTestServer(t, nil, nil), http.MethodPost, "/api/jobs", `{}`).Code)

	pub := &stubJobs{}
	e := newTestServer(t, pub, nil)
	rec := do(e, http.MethodPost, "/api/jobs", `{"alphas":["alpha_002"],"days":10}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, 1, pub.n)

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodPost, "/api/jobs", `{"alphas":["alpha_404"]}`).Code)
}

func TestPatternEndpoints(t *testing.T) {
	e := newTestServer(t, nil, nil)

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/api/similar?security=S0&date=2024-01-10", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/api/similar?security=S0", "").Code)

	rec := do(e, http.MethodGet, "/api/window?security=S0&date=2024-01-06&before=2&after=1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"total":4`)

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/api/window?security=S9&date=2024-01-06", "").Code)
}

func TestRateLimitRejects(t *testing.T) {
	e := newTestServer(t, nil, ratelimit.New(0.0001, 1, time.Minute))

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/alphas", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(e, http.MethodGet, "/api/alphas", "").Code)
	// buckets are per endpoint
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/healthz", "").Code)
}

func TestToAppErrorStatuses(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("w: %w", operators.ErrInvalidWindow), http.StatusBadRequest},
		{fmt.Errorf("w: %w", usecase.ErrIncompleteQuery), http.StatusBadRequest},
		{fmt.Errorf("w: %w", usecase.ErrVectorNotFound), http.StatusNotFound},
		{fmt.Errorf("w: %w", domrepo.ErrNotFound), http.StatusNotFound},
		{gobreaker.ErrOpenState, http.StatusServiceUnavailable},
		{usecase.ErrJobsDisabled, http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, toAppError(tc.err).Status, tc.err.Error())
	}
}
