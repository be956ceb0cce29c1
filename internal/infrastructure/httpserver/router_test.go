package httpserver_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/pulseboard/internal/infrastructure/httpserver"
)

func TestDefaultRouterConfig(t *testing.T) {
	config := httpserver.DefaultRouterConfig()

	assert.NotNil(t, config.Logger)
	assert.Equal(t, "/api", config.APIPrefix)
	assert.Nil(t, config.AuthMiddleware)
}

func TestRouter_APIGroupUsesAuth(t *testing.T) {
	e := echo.New()
	config := httpserver.DefaultRouterConfig()
	config.AuthMiddleware = func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
				return c.NoContent(http.StatusUnauthorized)
			}
			return next(c)
		}
	}
	r := httpserver.NewRouter(e, config)
	r.API().GET("/notifications", func(c echo.Context) error {
		return c.String(http.StatusOK, "list")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notifications", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer x")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "list", rec.Body.String())
}

func TestRouter_NoAuthMiddleware(t *testing.T) {
	e := echo.New()
	r := httpserver.NewRouter(e, httpserver.RouterConfig{})
	r.API().GET("/ping", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Same(t, e, r.Echo())
}

func TestRouter_GlobalMiddleware(t *testing.T) {
	e := echo.New()
	r := httpserver.NewRouter(e, httpserver.DefaultRouterConfig())
	r.API().GET("/panic", func(_ echo.Context) error {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

type registrarFunc func(r *httpserver.Router)

func (f registrarFunc) RegisterRoutes(r *httpserver.Router) { f(r) }

func TestRouter_RegisterAll(t *testing.T) {
	e := echo.New()
	r := httpserver.NewRouter(e, httpserver.DefaultRouterConfig())

	var calls int
	reg := registrarFunc(func(r *httpserver.Router) {
		calls++
		r.API().GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	})
	r.RegisterAll(reg)
	r.PrintRoutes()

	assert.Equal(t, 1, calls)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	e := echo.New()
	r := httpserver.NewRouter(e, httpserver.DefaultRouterConfig())

	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()
	r.RegisterMetricsEndpoint(registry)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_total 1")
}

type stubChecker struct {
	ready      bool
	components []httpserver.ComponentStatus
}

func (s stubChecker) IsReady(context.Context) bool { return s.ready }

func (s stubChecker) GetHealthStatus(context.Context) []httpserver.ComponentStatus {
	return s.components
}
