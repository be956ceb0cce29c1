package middleware_test

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/lllypuk/pulseboard/internal/middleware"
)

func TestRecovery(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "string panic", value: "boom", want: "boom"},
		{name: "error panic", value: errors.New("bad state"), want: "bad state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			config := middleware.DefaultRecoveryConfig()
			config.Logger = slog.New(slog.NewTextHandler(&buf, nil))

			e := echo.New()
			e.Use(middleware.Recovery(config))
			e.GET("/panic", func(_ echo.Context) error {
				panic(tt.value)
			})

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
			assert.Contains(t, buf.String(), "panic recovered")
			assert.Contains(t, buf.String(), tt.want)
			assert.Contains(t, buf.String(), "stack=")
		})
	}
}

func TestRecovery_NoPanic(t *testing.T) {
	e := echo.New()
	e.Use(middleware.Recovery(middleware.RecoveryConfig{DisablePrintStack: true}))
	e.GET("/ok", func(c echo.Context) error {
		return c.String(http.StatusOK, "fine")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fine", rec.Body.String())
}
