// Package main provides the API server entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	notifapp "github.com/lllypuk/pulseboard/internal/application/notification"
	"github.com/lllypuk/pulseboard/internal/config"
	httphandler "github.com/lllypuk/pulseboard/internal/handler/http"
	wshandler "github.com/lllypuk/pulseboard/internal/handler/websocket"
	"github.com/lllypuk/pulseboard/internal/infrastructure/auth"
	"github.com/lllypuk/pulseboard/internal/infrastructure/eventbus"
	"github.com/lllypuk/pulseboard/internal/infrastructure/healthcheck"
	"github.com/lllypuk/pulseboard/internal/infrastructure/httpserver"
	"github.com/lllypuk/pulseboard/internal/infrastructure/metrics"
	mongodbinfra "github.com/lllypuk/pulseboard/internal/infrastructure/mongodb"
	"github.com/lllypuk/pulseboard/internal/infrastructure/repository/badgerdb"
	"github.com/lllypuk/pulseboard/internal/infrastructure/repository/memory"
	"github.com/lllypuk/pulseboard/internal/infrastructure/repository/mongodb"
	"github.com/lllypuk/pulseboard/internal/infrastructure/websocket"
	"github.com/lllypuk/pulseboard/internal/middleware"
)

// Container initialization timeouts.
const (
	containerInitTimeout   = 30 * time.Second
	redisPingTimeout       = 5 * time.Second
	mongoDisconnectTimeout = 10 * time.Second
)

// Container holds all application dependencies and manages their lifecycle.
// It implements httpserver.HealthChecker for unified health endpoint support.
type Container struct {
	// Configuration
	Config *config.Config
	Logger *slog.Logger

	// Infrastructure
	MongoDB    *mongo.Client
	Redis      *redis.Client
	Badger     *badgerdb.NotificationRepository
	EventBus   *eventbus.RedisEventBus
	Prometheus *prometheus.Registry
	Metrics    *metrics.PushMetrics

	// Notification pipeline
	NotificationRepo    notifapp.Repository
	Registry            *websocket.Registry
	Dispatcher          *websocket.Dispatcher
	Broadcaster         *websocket.Broadcaster
	Lifecycle           *websocket.Lifecycle
	NotificationService *notifapp.Service

	// Auth
	Validator auth.Validator

	// HTTP Handlers
	NotificationHandler *httphandler.NotificationHandler
	WSHandler           *wshandler.Handler

	Health *healthcheck.Set

	// connCtx outlives single requests; channels are bound to it.
	connCtx    context.Context
	cancelConn context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// Ensure Container implements httpserver.HealthChecker.
var _ httpserver.HealthChecker = (*Container)(nil)

// ContainerOption configures the Container.
type ContainerOption func(*Container)

// WithLogger sets a custom logger for the container.
func WithLogger(logger *slog.Logger) ContainerOption {
	return func(c *Container) {
		c.Logger = logger
	}
}

// NewContainer creates a new dependency injection container.
// The storage backend is chosen by config.Storage.Driver.
func NewContainer(cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.connCtx, c.cancelConn = context.WithCancel(context.Background())

	if err := c.setupInfrastructure(); err != nil {
		// Clean up any partially initialized resources
		_ = c.Close()
		return nil, fmt.Errorf("failed to setup infrastructure: %w", err)
	}

	if err := c.setupAuth(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to setup auth: %w", err)
	}

	c.setupPipeline()

	if err := c.setupBroadcaster(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("broadcaster: %w", err)
	}

	c.setupHTTPHandlers()
	c.setupHealth()

	if err := c.validateWiring(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("wiring validation failed: %w", err)
	}

	c.Logger.Info("container ready",
		slog.String("storage", c.Config.Storage.Driver),
		slog.Bool("redis", c.Redis != nil),
		slog.Bool("eventbus", c.EventBus != nil),
		slog.Bool("production", c.Config.IsProduction()),
	)

	return c, nil
}

// validateWiring ensures all required dependencies are properly initialized.
func (c *Container) validateWiring() error {
	var errs []error

	if c.NotificationRepo == nil {
		errs = append(errs, errors.New("notification repository not initialized"))
	}
	if c.Registry == nil || c.Dispatcher == nil || c.Lifecycle == nil {
		errs = append(errs, errors.New("websocket pipeline not initialized"))
	}
	if c.Validator == nil {
		errs = append(errs, errors.New("token validator not initialized"))
	}
	if c.NotificationHandler == nil || c.WSHandler == nil {
		errs = append(errs, errors.New("handlers not initialized"))
	}
	if c.Config.EventBus.Enabled && (c.EventBus == nil || c.Broadcaster == nil) {
		errs = append(errs, errors.New("event bus enabled but not initialized"))
	}

	return errors.Join(errs...)
}

// setupInfrastructure initializes metrics, storage and Redis.
func (c *Container) setupInfrastructure() error {
	ctx, cancel := context.WithTimeout(context.Background(), containerInitTimeout)
	defer cancel()

	c.setupMetrics()

	if err := c.setupStorage(ctx); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	if c.Config.Redis.Enabled() {
		if err := c.setupRedis(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}

	if c.Config.EventBus.Enabled {
		c.setupEventBus()
	}

	return nil
}

func (c *Container) setupMetrics() {
	c.Prometheus = prometheus.NewRegistry()
	c.Prometheus.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.Metrics = metrics.NewPushMetrics(c.Prometheus)
}

// setupStorage opens the configured notification store.
func (c *Container) setupStorage(ctx context.Context) error {
	switch c.Config.Storage.Driver {
	case config.StorageMongoDB:
		return c.setupMongoDB(ctx)
	case config.StorageBadger:
		repo, err := badgerdb.Open(c.Config.Storage.BadgerPath)
		if err != nil {
			return err
		}
		c.Badger = repo
		c.NotificationRepo = repo
		c.Logger.InfoContext(ctx, "opened badger store",
			slog.String("path", c.Config.Storage.BadgerPath),
		)
	default:
		c.NotificationRepo = memory.NewNotificationRepository()
		c.Logger.WarnContext(ctx, "using in-memory notification store, data is lost on restart")
	}
	return nil
}

// setupMongoDB initializes the MongoDB client and repository.
func (c *Container) setupMongoDB(ctx context.Context) error {
	clientOpts := options.Client().
		ApplyURI(c.Config.MongoDB.URI).
		SetMaxPoolSize(c.Config.MongoDB.MaxPoolSize)

	client, connectErr := mongo.Connect(clientOpts)
	if connectErr != nil {
		return fmt.Errorf("failed to connect: %w", connectErr)
	}
	c.MongoDB = client

	// Verify connection
	pingCtx, cancel := context.WithTimeout(ctx, c.Config.MongoDB.Timeout)
	defer cancel()

	if pingErr := client.Ping(pingCtx, nil); pingErr != nil {
		return fmt.Errorf("failed to ping: %w", pingErr)
	}

	c.Logger.InfoContext(ctx, "connected to MongoDB",
		slog.String("database", c.Config.MongoDB.Database),
	)

	db := client.Database(c.Config.MongoDB.Database)
	indexCtx, indexCancel := context.WithTimeout(ctx, c.Config.MongoDB.Timeout)
	defer indexCancel()

	if indexErr := mongodbinfra.CreateAllIndexes(indexCtx, db); indexErr != nil {
		return fmt.Errorf("failed to create indexes: %w", indexErr)
	}

	c.NotificationRepo = mongodb.NewMongoNotificationRepository(
		db.Collection(mongodbinfra.CollectionNotifications),
		db.Collection(mongodbinfra.CollectionCounters),
	)
	return nil
}

// setupRedis initializes the Redis client.
func (c *Container) setupRedis(ctx context.Context) error {
	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
		PoolSize: c.Config.Redis.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if pingErr := c.Redis.Ping(pingCtx).Err(); pingErr != nil {
		return fmt.Errorf("failed to ping: %w", pingErr)
	}

	c.Logger.InfoContext(ctx, "connected to Redis",
		slog.String("addr", c.Config.Redis.Addr),
	)
	return nil
}

func (c *Container) setupEventBus() {
	c.EventBus = eventbus.NewRedisEventBus(
		c.Redis,
		eventbus.WithLogger(c.Logger),
		eventbus.WithChannelPrefix(c.Config.EventBus.ChannelPrefix),
	)
	c.Logger.Debug("event bus initialized")
}

func (c *Container) setupAuth() error {
	validator, err := auth.NewValidator(auth.Config{
		Secret:          c.Config.Auth.JWTSecret,
		JWKSURL:         c.Config.Auth.JWKSURL,
		Issuer:          c.Config.Auth.Issuer,
		Audience:        c.Config.Auth.Audience,
		Leeway:          c.Config.Auth.Leeway,
		RefreshInterval: c.Config.Auth.RefreshInterval,
		Logger:          c.Logger,
	})
	if err != nil {
		return err
	}
	c.Validator = validator
	return nil
}

// setupPipeline wires registry, dispatcher, service and lifecycle.
func (c *Container) setupPipeline() {
	c.Registry = websocket.NewRegistry(
		websocket.WithRegistryLogger(c.Logger),
		websocket.WithRegistryMetrics(c.Metrics),
	)
	c.Dispatcher = websocket.NewDispatcher(
		c.Registry,
		websocket.WithDispatcherLogger(c.Logger),
		websocket.WithDispatcherMetrics(c.Metrics),
	)

	// With the bus enabled every instance dispatches from the bus, so the
	// creating instance must not also deliver locally.
	var deliverer notifapp.Deliverer = c.Dispatcher
	if c.EventBus != nil {
		deliverer = eventbus.NewNotificationPublisher(c.EventBus)
	}

	c.NotificationService = notifapp.NewService(
		c.NotificationRepo,
		deliverer,
		c.Logger,
		notifapp.WithObserver(c.Metrics),
	)

	lifecycleOpts := []websocket.LifecycleOption{
		websocket.WithLifecycleLogger(c.Logger),
		websocket.WithLifecycleMetrics(c.Metrics),
	}
	if c.Config.WebSocket.ResyncEnabled {
		lifecycleOpts = append(lifecycleOpts,
			websocket.WithResync(c.NotificationService, c.Config.WebSocket.ResyncLimit))
	}
	c.Lifecycle = websocket.NewLifecycle(c.Registry, lifecycleOpts...)
}

// setupBroadcaster subscribes the dispatcher to bus events.
func (c *Container) setupBroadcaster() error {
	if c.EventBus == nil {
		return nil
	}

	c.Broadcaster = websocket.NewBroadcaster(
		c.Dispatcher,
		c.EventBus,
		websocket.WithBroadcasterLogger(c.Logger),
	)
	return c.Broadcaster.Start(c.connCtx)
}

func (c *Container) setupHTTPHandlers() {
	var handlerOpts []httphandler.NotificationHandlerOption
	if c.Config.RateLimit.Enabled {
		handlerOpts = append(handlerOpts, httphandler.WithTestRateLimit(c.rateLimitMiddleware()))
	}
	c.NotificationHandler = httphandler.NewNotificationHandler(c.NotificationService, handlerOpts...)

	wsCfg := c.Config.WebSocket
	c.WSHandler = wshandler.NewHandler(
		c.Lifecycle,
		wshandler.WithHandlerConfig(wshandler.HandlerConfig{
			AllowedOrigins: c.Config.Server.AllowedOrigins,
			RequireToken:   wsCfg.RequireToken,
			Logger:         c.Logger,
			ClientConfig: websocket.ClientConfig{
				ReadBufferSize:  wsCfg.ReadBufferSize,
				WriteBufferSize: wsCfg.WriteBufferSize,
				PingInterval:    wsCfg.PingInterval,
				PongWait:        wsCfg.PongTimeout,
				WriteWait:       wsCfg.WriteWait,
				MaxMessageSize:  wsCfg.MaxMessageSize,
				SendBufferSize:  wsCfg.SendBufferSize,
			},
		}),
		wshandler.WithBaseContext(c.connCtx),
	)
}

// rateLimitMiddleware uses Redis when available so limits hold across instances.
func (c *Container) rateLimitMiddleware() echo.MiddlewareFunc {
	rlCfg := middleware.DefaultRateLimitConfig()
	rlCfg.Logger = c.Logger
	rlCfg.Limit = c.Config.RateLimit.Limit
	rlCfg.Window = c.Config.RateLimit.Window
	rlCfg.Message = "too many test notifications, try again later"

	if c.Redis != nil {
		rlCfg.Store = middleware.NewRedisRateLimitStore(c.Redis, middleware.DefaultRateLimitPrefix)
	} else {
		rlCfg.Store = middleware.NewMemoryRateLimitStore()
	}
	return middleware.RateLimitByUser(rlCfg)
}

// setupHealth registers one checker per running component.
func (c *Container) setupHealth() {
	c.Health = healthcheck.NewSet()

	if c.MongoDB != nil {
		client := c.MongoDB
		c.Health.Add(healthcheck.NewPingChecker("mongodb", func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		}), true)
	}
	if c.Badger != nil {
		c.Health.Add(healthcheck.NewPingChecker("badger", c.Badger.Ping), true)
	}
	if c.Redis != nil {
		client := c.Redis
		c.Health.Add(healthcheck.NewPingChecker("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}), true)
	}
	if c.EventBus != nil {
		c.Health.Add(healthcheck.NewRunningChecker("eventbus", c.EventBus), false)
	}
	c.Health.Add(healthcheck.NewRegistryChecker(c.Registry), false)
}

// AuthMiddleware protects the REST API.
func (c *Container) AuthMiddleware() echo.MiddlewareFunc {
	authCfg := middleware.DefaultAuthConfig()
	authCfg.Logger = c.Logger
	authCfg.Validator = c.Validator
	return middleware.Auth(authCfg)
}

// WSAuthMiddleware lets anonymous upgrades through and reads the token from
// the query string, since browsers cannot set headers on an upgrade.
func (c *Container) WSAuthMiddleware() echo.MiddlewareFunc {
	authCfg := middleware.DefaultAuthConfig()
	authCfg.Logger = c.Logger
	authCfg.Validator = c.Validator
	authCfg.QueryParam = middleware.DefaultQueryParam
	authCfg.Optional = true
	return middleware.Auth(authCfg)
}

// IsReady implements httpserver.HealthChecker.
func (c *Container) IsReady(ctx context.Context) bool {
	if c.Health == nil {
		return false
	}
	return c.Health.IsReady(ctx)
}

// GetHealthStatus implements httpserver.HealthChecker.
func (c *Container) GetHealthStatus(ctx context.Context) []httpserver.ComponentStatus {
	if c.Health == nil {
		return nil
	}
	return c.Health.GetHealthStatus(ctx)
}

// Close gracefully closes all container resources.
// Resources are closed in reverse order of initialization. Repeated calls
// return the first result.
func (c *Container) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.close()
	})
	return c.closeErr
}

func (c *Container) close() error {
	c.Logger.Info("closing container resources...")

	var errs []error

	if c.cancelConn != nil {
		c.cancelConn()
	}

	if c.Registry != nil {
		closed := c.Registry.CloseAll()
		c.Logger.Debug("websocket channels closed", slog.Int("count", closed))
	}

	// Close JWT Validator (stops JWKS refresh goroutine)
	if c.Validator != nil {
		if err := c.Validator.Close(); err != nil {
			errs = append(errs, fmt.Errorf("jwt validator close: %w", err))
		}
	}

	if c.EventBus != nil {
		if err := c.EventBus.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("event bus shutdown: %w", err))
		} else {
			c.Logger.Debug("event bus stopped")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		} else {
			c.Logger.Debug("redis connection closed")
		}
	}

	if c.Badger != nil {
		if err := c.Badger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("badger close: %w", err))
		} else {
			c.Logger.Debug("badger store closed")
		}
	}

	if c.MongoDB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
		defer cancel()

		if err := c.MongoDB.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect: %w", err))
		} else {
			c.Logger.Debug("mongodb connection closed")
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	c.Logger.Info("all container resources closed")
	return nil
}
