package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"AlphaLab/internal/domain/models"
	"AlphaLab/internal/service/metrics"
	"AlphaLab/internal/service/ratelimit"
	"AlphaLab/internal/usecase"
	"AlphaLab/pkg/cache"
	xhttp "AlphaLab/pkg/http"
	applogger "AlphaLab/pkg/logger"
)

// PatternHandler serves similarity search and price windows.
type PatternHandler struct {
	guard
	search *usecase.PatternSearch
	loader *cache.Loader
	ttl    CacheTTL
}

func NewPatternHandler(search *usecase.PatternSearch, loader *cache.Loader, rl *ratelimit.Limiter, ttl CacheTTL, l *applogger.Logger) *PatternHandler {
	metrics.Register()
	if l == nil {
		l = applogger.Nop()
	}
	return &PatternHandler{guard: guard{rl: rl, l: l}, search: search, loader: loader, ttl: ttl}
}

func (h *PatternHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/similar", h.Similar, h.limit("similar"))
	g.GET("/window", h.Window, h.limit("window"))
}

func (h *PatternHandler) Similar(c echo.Context) error {
	req := &models.SimilarRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return h.fail(c, "similar", err)
	}
	ctx := c.Request().Context()
	key := cache.GenerateKeyWithParams(usecase.CacheKeySimilar, req.Security, req.Date, req.N)
	res, err := cache.GetOrLoad(ctx, h.loader, key, h.ttl.Similar, func(ctx context.Context) (*models.PatternResult, error) {
		return h.search.FindSimilar(ctx, req.Security, date, req.N)
	})
	if err != nil {
		return h.fail(c, "similar", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PatternHandler) Window(c echo.Context) error {
	req := &models.WindowRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return h.fail(c, "window", err)
	}
	w, err := h.search.Window(c.Request().Context(), req.Security, date, req.Before, req.After)
	if err != nil {
		return h.fail(c, "window", err)
	}
	return xhttp.ListResponse(c, w, int64(len(w)))
}
