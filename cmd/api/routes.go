// Package main provides the API server entry point.
package main

import (
	"net/http"

	"github.com/labstack/echo/v4"

	wshandler "github.com/lllypuk/pulseboard/internal/handler/websocket"
	"github.com/lllypuk/pulseboard/internal/infrastructure/httpserver"
	"github.com/lllypuk/pulseboard/internal/middleware"
)

// SetupRoutes configures all routes and middleware chains on e.
func SetupRoutes(c *Container, e *echo.Echo) *httpserver.Router {
	corsConfig := middleware.DefaultCORSConfig()
	if len(c.Config.Server.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = c.Config.Server.AllowedOrigins
	}

	routerConfig := httpserver.RouterConfig{
		Logger:         c.Logger,
		AuthMiddleware: c.AuthMiddleware(),
		CORSConfig:     corsConfig,
		LoggingConfig:  middleware.DefaultLoggingConfig(),
		RecoveryConfig: middleware.DefaultRecoveryConfig(),
		APIPrefix:      httpserver.DefaultAPIPrefix,
	}

	router := httpserver.NewRouter(e, routerConfig)

	// Health checks are always public
	router.RegisterHealthEndpoints(c)

	if c.Config.Metrics.Enabled {
		router.RegisterMetricsEndpoint(c.Prometheus)
	}

	router.RegisterAll(c.NotificationHandler)

	// The upgrade route sits outside the API group with its own auth chain
	c.WSHandler.RegisterRoutes(e, c.WSAuthMiddleware())

	e.GET("/", func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, map[string]string{
			"name": c.Config.App.Name,
			"ws":   wshandler.Path,
		})
	})

	router.PrintRoutes()

	return router
}
