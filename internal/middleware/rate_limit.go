package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Rate limit defaults.
const (
	DefaultRateLimit       = 10
	DefaultRateLimitWindow = time.Minute
	DefaultRateLimitPrefix = "pulseboard:ratelimit:"
)

// ErrRateLimitExceeded is reported when a key is over its limit.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// RateLimitStore keeps fixed-window counters.
type RateLimitStore interface {
	// Increment increments the counter for key and returns the new count.
	// A new key expires after window.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)

	// GetTTL returns the remaining TTL for key.
	GetTTL(ctx context.Context, key string) (time.Duration, error)
}

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	// Logger is the structured logger for rate limit events.
	Logger *slog.Logger

	// Store is the counter backend. A nil store disables limiting.
	Store RateLimitStore

	// Limit is the maximum number of requests allowed per window.
	Limit int

	// Window is the time window for rate limiting.
	Window time.Duration

	// KeyFunc generates the counter key. Defaults to the user, then the IP.
	KeyFunc func(c echo.Context) string

	// Message is the error message returned when rate limit is exceeded.
	Message string
}

// DefaultRateLimitConfig returns a RateLimitConfig with sensible defaults.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Logger:  slog.Default(),
		Limit:   DefaultRateLimit,
		Window:  DefaultRateLimitWindow,
		Message: "Too many requests. Please try again later.",
	}
}

// RateLimit returns a rate limiting middleware with the given configuration.
// Store failures let the request through.
func RateLimit(config RateLimitConfig) echo.MiddlewareFunc {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Limit <= 0 {
		config.Limit = DefaultRateLimit
	}
	if config.Window <= 0 {
		config.Window = DefaultRateLimitWindow
	}
	if config.Message == "" {
		config.Message = "Too many requests. Please try again later."
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if config.Store == nil {
				return next(c)
			}

			ctx := c.Request().Context()
			key := generateRateLimitKey(c, config.KeyFunc)

			count, err := config.Store.Increment(ctx, key, config.Window)
			if err != nil {
				config.Logger.Error("failed to increment rate limit counter",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
				return next(c)
			}

			limit := int64(config.Limit)
			remaining := max(limit-count, 0)

			c.Response().Header().Set("X-Ratelimit-Limit", strconv.FormatInt(limit, 10))
			c.Response().Header().Set("X-Ratelimit-Remaining", strconv.FormatInt(remaining, 10))

			ttl, err := config.Store.GetTTL(ctx, key)
			if err == nil && ttl > 0 {
				c.Response().Header().Set("X-Ratelimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
			}

			if count > limit {
				config.Logger.Warn("rate limit exceeded",
					slog.String("key", key),
					slog.Int64("count", count),
					slog.Int64("limit", limit),
					slog.String("path", c.Request().URL.Path),
				)
				return respondRateLimitError(c, config.Message, ttl)
			}

			return next(c)
		}
	}
}

// RateLimitByUser limits each authenticated user on the route path.
// Unauthenticated requests are limited by IP.
func RateLimitByUser(config RateLimitConfig) echo.MiddlewareFunc {
	config.KeyFunc = func(c echo.Context) string {
		return fmt.Sprintf("%s:%s:%s", c.Request().Method, c.Path(), defaultRateLimitKey(c))
	}
	return RateLimit(config)
}

func generateRateLimitKey(c echo.Context, keyFunc func(c echo.Context) string) string {
	if keyFunc != nil {
		return keyFunc(c)
	}
	return defaultRateLimitKey(c)
}

func defaultRateLimitKey(c echo.Context) string {
	if userID := GetUserID(c); !userID.IsZero() {
		return "user:" + userID.String()
	}
	return "ip:" + c.RealIP()
}

// respondRateLimitError sends a rate limit exceeded error response.
func respondRateLimitError(c echo.Context, message string, retryAfter time.Duration) error {
	if retryAfter > 0 {
		c.Response().Header().Set("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
	}
	return respondError(c, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", message)
}

// MemoryRateLimitStore is an in-process store used when Redis is not configured.
// Expired counters are swept from Increment at most once per sweep interval.
type MemoryRateLimitStore struct {
	mu         sync.Mutex
	counts     map[string]*rateLimitEntry
	now        func() time.Time
	sweepEvery time.Duration
	nextSweep  time.Time
}

type rateLimitEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryStoreOption configures a MemoryRateLimitStore.
type MemoryStoreOption func(*MemoryRateLimitStore)

// WithSweepInterval sets how often expired counters are dropped.
func WithSweepInterval(d time.Duration) MemoryStoreOption {
	return func(s *MemoryRateLimitStore) {
		if d > 0 {
			s.sweepEvery = d
		}
	}
}

// NewMemoryRateLimitStore creates a new in-memory rate limit store.
func NewMemoryRateLimitStore(opts ...MemoryStoreOption) *MemoryRateLimitStore {
	s := &MemoryRateLimitStore{
		counts:     make(map[string]*rateLimitEntry),
		now:        time.Now,
		sweepEvery: DefaultRateLimitWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.nextSweep = s.now().Add(s.sweepEvery)
	return s
}

// Increment increments the counter for the given key.
func (s *MemoryRateLimitStore) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !now.Before(s.nextSweep) {
		for k, e := range s.counts {
			if !now.Before(e.expiresAt) {
				delete(s.counts, k)
			}
		}
		s.nextSweep = now.Add(s.sweepEvery)
	}

	entry, exists := s.counts[key]
	if exists && now.Before(entry.expiresAt) {
		entry.count++
		return entry.count, nil
	}

	s.counts[key] = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
	return 1, nil
}

// Len returns the number of tracked keys, expired or not.
func (s *MemoryRateLimitStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counts)
}

// GetTTL returns the remaining TTL for the given key.
func (s *MemoryRateLimitStore) GetTTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.counts[key]
	if !exists {
		return 0, nil
	}
	return max(entry.expiresAt.Sub(s.now()), 0), nil
}

// RedisRateLimitStore keeps counters in Redis so limits hold across instances.
type RedisRateLimitStore struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisRateLimitStore creates a new Redis-based rate limit store.
func NewRedisRateLimitStore(client redis.Cmdable, keyPrefix string) *RedisRateLimitStore {
	if keyPrefix == "" {
		keyPrefix = DefaultRateLimitPrefix
	}
	return &RedisRateLimitStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Increment increments the counter for the given key. INCR and TTL run in one
// transaction; a counter found without expiry gets the window, so a failed
// EXPIRE is repaired by the next hit.
func (s *RedisRateLimitStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	fullKey := s.keyPrefix + key

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, fullKey)
		ttl = pipe.TTL(ctx, fullKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}

	count := incr.Val()
	if ttl.Val() < 0 {
		if expireErr := s.client.Expire(ctx, fullKey, window).Err(); expireErr != nil {
			return count, fmt.Errorf("failed to set expiration: %w", expireErr)
		}
	}

	return count, nil
}

// GetTTL returns the remaining TTL for the given key.
func (s *RedisRateLimitStore) GetTTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read ttl: %w", err)
	}
	return max(ttl, 0), nil
}
