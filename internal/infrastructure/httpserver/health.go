// Package httpserver provides HTTP server infrastructure components.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Component and probe states.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
	StatusReady     = "ready"
	StatusNotReady  = "not_ready"
)

// ComponentStatus is one line of /health/details.
type ComponentStatus struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the body of every probe endpoint.
type HealthResponse struct {
	Status     string            `json:"status"`
	Uptime     string            `json:"uptime,omitempty"`
	Components []ComponentStatus `json:"components,omitempty"`
}

// HealthChecker is implemented by healthcheck.Set and by the container.
type HealthChecker interface {
	IsReady(ctx context.Context) bool
	GetHealthStatus(ctx context.Context) []ComponentStatus
}

// HealthEndpoints serves the liveness, readiness and detail probes.
type HealthEndpoints struct {
	checker HealthChecker
	started time.Time
}

// NewHealthEndpoints creates probes backed by checker. A nil checker is
// always ready.
func NewHealthEndpoints(checker HealthChecker) *HealthEndpoints {
	return &HealthEndpoints{checker: checker, started: time.Now()}
}

// Register mounts GET /health, /ready and /health/details on e.
func (h *HealthEndpoints) Register(e *echo.Echo) {
	e.GET("/health", h.live)
	e.GET("/ready", h.ready)
	e.GET("/health/details", h.details)
}

// live answers 200 for as long as the process can serve HTTP.
func (h *HealthEndpoints) live(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status: StatusHealthy,
		Uptime: time.Since(h.started).Truncate(time.Second).String(),
	})
}

func (h *HealthEndpoints) ready(c echo.Context) error {
	ctx := c.Request().Context()
	if h.checker == nil || h.checker.IsReady(ctx) {
		return c.JSON(http.StatusOK, HealthResponse{Status: StatusReady})
	}
	return c.JSON(http.StatusServiceUnavailable, HealthResponse{
		Status:     StatusNotReady,
		Components: h.checker.GetHealthStatus(ctx),
	})
}

func (h *HealthEndpoints) details(c echo.Context) error {
	var components []ComponentStatus
	if h.checker != nil {
		components = h.checker.GetHealthStatus(c.Request().Context())
	}

	status := Overall(components)
	code := http.StatusOK
	if status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, HealthResponse{
		Status:     status,
		Uptime:     time.Since(h.started).Truncate(time.Second).String(),
		Components: components,
	})
}

// Overall folds component states: any unhealthy wins, then any degraded.
func Overall(components []ComponentStatus) string {
	status := StatusHealthy
	for _, comp := range components {
		switch comp.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}
