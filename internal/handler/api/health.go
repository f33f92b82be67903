package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"AlphaLab/internal/scheduler"
	xhttp "AlphaLab/pkg/http"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports dependency health and scheduled task state.
type HealthHandler struct {
	checks map[string]HealthCheck
	sched  *scheduler.Scheduler
}

func NewHealthHandler(checks map[string]HealthCheck, sched *scheduler.Scheduler) *HealthHandler {
	return &HealthHandler{checks: checks, sched: sched}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	e.GET("/api/tasks", h.Tasks)
}

func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	code := http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}
	return xhttp.DataResponse(c, code, status)
}

func (h *HealthHandler) Tasks(c echo.Context) error {
	if h.sched == nil {
		return xhttp.ListResponse(c, []scheduler.Task{}, 0)
	}
	tasks := h.sched.ListTasks()
	return xhttp.ListResponse(c, tasks, int64(len(tasks)))
}
