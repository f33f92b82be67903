package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sony/gobreaker"

	"AlphaLab/internal/domain/models"
	domrepo "AlphaLab/internal/domain/repository"
	"AlphaLab/internal/service/metrics"
	"AlphaLab/internal/service/ratelimit"
	"AlphaLab/internal/services/operators"
	"AlphaLab/internal/services/similarity"
	"AlphaLab/internal/usecase"
	xhttp "AlphaLab/pkg/http"
	applogger "AlphaLab/pkg/logger"
	"AlphaLab/pkg/util"
)

// toAppError maps domain errors onto HTTP statuses.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, operators.ErrInvalidWindow),
		errors.Is(err, models.ErrShapeMismatch),
		errors.Is(err, models.ErrDuplicateKey),
		errors.Is(err, models.ErrUnknownColumn),
		errors.Is(err, similarity.ErrDimensionMismatch),
		errors.Is(err, similarity.ErrIncompleteQuery):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, domrepo.ErrNotFound),
		errors.Is(err, usecase.ErrVectorNotFound),
		errors.Is(err, usecase.ErrNoPriceHistory),
		errors.Is(err, usecase.ErrUnknownAlpha),
		errors.Is(err, usecase.ErrNoTradeDate):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests):
		return xhttp.UnavailableError("storage temporarily unavailable").WithError(err)
	case errors.Is(err, usecase.ErrJobsDisabled):
		return xhttp.UnavailableError(err.Error()).WithError(err)
	}
	return xhttp.InternalError("internal error").WithError(err)
}

// guard bundles the per-endpoint concerns shared by every API handler.
type guard struct {
	rl *ratelimit.Limiter
	l  *applogger.Logger
}

// limit rejects requests over the per-client, per-endpoint budget and times the rest.
func (g guard) limit(endpoint string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			defer metrics.ObserveSince(endpoint, start)
			if g.rl != nil && !g.rl.Allow(c.RealIP()+":"+endpoint) {
				metrics.RateLimited.WithLabelValues(endpoint).Inc()
				g.l.Warn("rate limited", applogger.String("endpoint", endpoint), applogger.String("remote", c.RealIP()))
				return xhttp.TooManyRequestsResponse(c)
			}
			return next(c)
		}
	}
}

func (g guard) fail(c echo.Context, endpoint string, err error) error {
	appErr := toAppError(err)
	metrics.EndpointErrors.WithLabelValues(endpoint, strconv.Itoa(appErr.Status)).Inc()
	if appErr.Status >= http.StatusInternalServerError {
		g.l.Error("request failed", applogger.String("endpoint", endpoint), applogger.Error(err))
	} else {
		g.l.Debug("request rejected", applogger.String("endpoint", endpoint), applogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// parseDate parses an already validated YYYY-MM-DD value; empty yields the zero time.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := util.MustDate(s)
	if err != nil {
		return time.Time{}, xhttp.BadRequestError(err.Error())
	}
	return t, nil
}
