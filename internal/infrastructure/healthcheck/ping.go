package healthcheck

import (
	"context"
	"fmt"
	"time"
)

// PingFunc checks connectivity to a backend.
type PingFunc func(ctx context.Context) error

// PingChecker reports a backend as unhealthy when its ping fails.
type PingChecker struct {
	name string
	ping PingFunc
}

// NewPingChecker creates a checker for a MongoDB, Redis or Badger backend.
func NewPingChecker(name string, ping PingFunc) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

// Name returns the name of this health checker.
func (c *PingChecker) Name() string {
	return c.name
}

// Check performs the health check.
func (c *PingChecker) Check(ctx context.Context) Status {
	start := time.Now()
	if err := c.ping(ctx); err != nil {
		return Status{
			Healthy:   false,
			Message:   fmt.Sprintf("ping failed: %v", err),
			CheckedAt: time.Now(),
		}
	}

	return Status{
		Healthy:   true,
		Details:   map[string]any{"latency": time.Since(start).String()},
		CheckedAt: time.Now(),
	}
}
