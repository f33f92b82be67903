package http

import "github.com/labstack/echo/v4"

// Handler owns a set of routes. FactorHandler, PatternHandler and
// HealthHandler are the service's implementations.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// registerHandlers mounts handlers in order, skipping nil entries left by
// optional components.
func registerHandlers(e *echo.Echo, handlers []Handler) {
	for _, h := range handlers {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
}
