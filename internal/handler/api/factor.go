package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"AlphaLab/internal/domain/models"
	"AlphaLab/internal/service/metrics"
	"AlphaLab/internal/service/ratelimit"
	"AlphaLab/internal/services/report"
	"AlphaLab/internal/usecase"
	"AlphaLab/pkg/cache"
	xhttp "AlphaLab/pkg/http"
	applogger "AlphaLab/pkg/logger"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// CacheTTL sets how long each endpoint's results are cached.
type CacheTTL struct {
	Catalog time.Duration
	Scan    time.Duration
	Analyze time.Duration
	Similar time.Duration
}

// FactorHandler serves the alpha catalogue, scans, deep dives and job submission.
type FactorHandler struct {
	guard
	lab    *usecase.FactorLab
	jobs   *usecase.JobSubmitter
	loader *cache.Loader
	ttl    CacheTTL
}

func NewFactorHandler(lab *usecase.FactorLab, jobs *usecase.JobSubmitter, loader *cache.Loader, rl *ratelimit.Limiter, ttl CacheTTL, l *applogger.Logger) *FactorHandler {
	metrics.Register()
	if l == nil {
		l = applogger.Nop()
	}
	return &FactorHandler{guard: guard{rl: rl, l: l}, lab: lab, jobs: jobs, loader: loader, ttl: ttl}
}

func (h *FactorHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/alphas", h.Alphas, h.limit("alphas"))
	g.GET("/alphas/scan", h.Scan, h.limit("scan"))
	g.GET("/alphas/analyze", h.Analyze, h.limit("analyze"))
	g.GET("/alphas/analyze/export", h.Export, h.limit("export"))
	g.POST("/jobs", h.SubmitJobs, h.limit("jobs"))
}

func (h *FactorHandler) Alphas(c echo.Context) error {
	ctx := c.Request().Context()
	key := cache.GenerateKey(usecase.CacheKeyAlphas, "catalog")
	alphas, err := cache.GetOrLoad(ctx, h.loader, key, h.ttl.Catalog, h.lab.ListAlphas)
	if err != nil {
		return h.fail(c, "alphas", err)
	}
	return xhttp.ListResponse(c, alphas, int64(len(alphas)))
}

func (h *FactorHandler) Scan(c echo.Context) error {
	req := &models.ScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()
	date, err := h.resolve(ctx, req.Date)
	if err != nil {
		return h.fail(c, "scan", err)
	}

	key := cache.GenerateKeyWithParams(usecase.CacheKeyScan, date.Format(models.DateLayout), fmt.Sprintf("h%d", h.lab.Horizon()))
	scan, err := cache.GetOrLoad(ctx, h.loader, key, h.ttl.Scan, func(ctx context.Context) (*models.CrossSectionScan, error) {
		return h.lab.ScanCrossSection(ctx, date)
	})
	if err != nil {
		return h.fail(c, "scan", err)
	}
	return xhttp.SuccessResponse(c, scan)
}

func (h *FactorHandler) Analyze(c echo.Context) error {
	a, err := h.analyze(c)
	if err != nil {
		return h.fail(c, "analyze", err)
	}
	if a == nil {
		return nil
	}
	return xhttp.SuccessResponse(c, a)
}

// Export returns the deep dive as an xlsx workbook.
func (h *FactorHandler) Export(c echo.Context) error {
	a, err := h.analyze(c)
	if err != nil {
		return h.fail(c, "export", err)
	}
	if a == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := report.WriteAnalysisXLSX(&buf, a); err != nil {
		return h.fail(c, "export", err)
	}
	name := fmt.Sprintf("%s_%s.xlsx", a.Alpha, a.Date.Time().Format(models.DateLayout))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, xlsxMIME, buf.Bytes())
}

// analyze validates the request and loads the (cached) analysis. A nil
// analysis with a nil error means a validation response was already written.
func (h *FactorHandler) analyze(c echo.Context) (*models.AlphaAnalysis, error) {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return nil, xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()
	date, err := h.resolve(ctx, req.Date)
	if err != nil {
		return nil, err
	}
	params := h.lab.ResolveParams(usecase.AnalyzeParams{Alpha: req.Alpha, Date: date, Days: req.Days, Quantiles: req.Quantiles, Top: req.Top})
	key := cache.GenerateKeyWithParams(usecase.CacheKeyAnalyze, req.Alpha, date.Format(models.DateLayout),
		params.Days, params.Quantiles, params.Top, fmt.Sprintf("h%d", h.lab.Horizon()))
	return cache.GetOrLoad(ctx, h.loader, key, h.ttl.Analyze, func(ctx context.Context) (*models.AlphaAnalysis, error) {
		return h.lab.Analyze(ctx, params)
	})
}

func (h *FactorHandler) SubmitJobs(c echo.Context) error {
	if !h.jobs.Enabled() {
		return h.fail(c, "jobs", usecase.ErrJobsDisabled)
	}
	req := &models.JobRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return h.fail(c, "jobs", err)
	}
	jobs, err := h.jobs.Submit(c.Request().Context(), req.Alphas, usecase.AnalyzeParams{
		Date:      date,
		Days:      req.Days,
		Quantiles: req.Quantiles,
		Top:       req.Top,
	})
	if err != nil {
		return h.fail(c, "jobs", err)
	}
	h.l.Info("evaluation jobs queued", applogger.Int("jobs", len(jobs)))
	return xhttp.AcceptedResponse(c, models.JobsAccepted{Jobs: jobs})
}

// resolve parses date, falling back to the latest trade date so cache keys never say "latest".
func (h *FactorHandler) resolve(ctx context.Context, s string) (time.Time, error) {
	d, err := parseDate(s)
	if err != nil || !d.IsZero() {
		return d, err
	}
	return h.lab.LatestTradeDate(ctx)
}
