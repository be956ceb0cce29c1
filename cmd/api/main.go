// Package main provides the API server entry point.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/lllypuk/pulseboard/internal/config"
	"github.com/lllypuk/pulseboard/internal/infrastructure/httpserver"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		//nolint:sloglint // No context available before logger setup
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := setupLogger(cfg)

	logger.Info("starting pulseboard",
		slog.String("version", version),
		slog.String("environment", getEnvironment(cfg)),
		slog.String("storage", cfg.Storage.Driver),
	)

	container, err := NewContainer(cfg, WithLogger(logger))
	if err != nil {
		logger.Error("failed to build container", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	runErr := run(ctx, container)

	if closeErr := container.Close(); closeErr != nil {
		logger.Error("container close error", slog.String("error", closeErr.Error()))
	}

	if runErr != nil {
		logger.Error("server error", slog.String("error", runErr.Error()))
		os.Exit(1) //nolint:gocritic // Intentional exit after cleanup
	}

	logger.Info("server shutdown complete")
}

// run serves HTTP and runs background workers until ctx is done or one of
// them fails.
func run(ctx context.Context, c *Container) error {
	cfg := c.Config

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, c.Logger)

	SetupRoutes(c, server.Echo())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		c.Logger.InfoContext(gctx, "server listening",
			slog.String("address", server.Address()),
			slog.Duration("read_timeout", cfg.Server.ReadTimeout),
			slog.Duration("write_timeout", cfg.Server.WriteTimeout),
		)
		return server.Run(gctx)
	})

	if cfg.WebSocket.IdleTimeout > 0 {
		g.Go(func() error {
			return c.Registry.RunPruner(gctx, cfg.WebSocket.PruneInterval, cfg.WebSocket.IdleTimeout)
		})
	}

	if c.EventBus != nil {
		g.Go(func() error {
			if err := c.EventBus.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// setupLogger creates and configures the structured logger based on configuration.
func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	level := parseLogLevel(cfg.Log.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.IsDevelopment(),
	}

	switch cfg.Log.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default: // "json" or any other value defaults to JSON
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getEnvironment returns the environment name based on configuration.
func getEnvironment(cfg *config.Config) string {
	if cfg.IsDevelopment() {
		return "development"
	}
	if cfg.IsProduction() {
		return "production"
	}
	return "unknown"
}
