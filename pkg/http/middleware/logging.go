package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	applogger "AlphaLab/pkg/logger"
)

// RequestLogging logs every HTTP request at debug level with its route and status.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			l.Debug("http request",
				applogger.String("method", c.Request().Method),
				applogger.String("route", routeLabel(c)),
				applogger.String("uri", c.Request().RequestURI),
				applogger.String("remote", c.RealIP()),
				applogger.Int("status", c.Response().Status),
				applogger.Duration("duration_ms", time.Since(start)),
			)
			return err
		}
	}
}
