package healthcheck

import (
	"context"
	"fmt"
	"time"
)

// Default thresholds for open channels.
const (
	defaultWarningThreshold  = 10000
	defaultCriticalThreshold = 50000
)

// ChannelCounter exposes the size of the connection registry.
type ChannelCounter interface {
	ChannelCount() int
	UserCount() int
}

// RegistryChecker reports the registry as degraded or unhealthy when the
// number of open channels crosses a threshold.
type RegistryChecker struct {
	registry          ChannelCounter
	warningThreshold  int
	criticalThreshold int
}

// RegistryOption configures RegistryChecker.
type RegistryOption func(*RegistryChecker)

// WithWarningThreshold sets the channel count that marks the registry degraded.
func WithWarningThreshold(threshold int) RegistryOption {
	return func(c *RegistryChecker) {
		c.warningThreshold = threshold
	}
}

// WithCriticalThreshold sets the channel count that marks the registry unhealthy.
func WithCriticalThreshold(threshold int) RegistryOption {
	return func(c *RegistryChecker) {
		c.criticalThreshold = threshold
	}
}

// NewRegistryChecker creates a new connection registry health checker.
func NewRegistryChecker(registry ChannelCounter, opts ...RegistryOption) *RegistryChecker {
	c := &RegistryChecker{
		registry:          registry,
		warningThreshold:  defaultWarningThreshold,
		criticalThreshold: defaultCriticalThreshold,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name returns the name of this health checker.
func (c *RegistryChecker) Name() string {
	return "connection_registry"
}

// Check performs the health check.
func (c *RegistryChecker) Check(_ context.Context) Status {
	channels := c.registry.ChannelCount()
	users := c.registry.UserCount()

	return Status{
		Healthy:  channels < c.warningThreshold,
		Degraded: channels >= c.warningThreshold && channels < c.criticalThreshold,
		Message:  fmt.Sprintf("%d channels for %d users", channels, users),
		Details: map[string]any{
			"channels":           channels,
			"users":              users,
			"warning_threshold":  c.warningThreshold,
			"critical_threshold": c.criticalThreshold,
		},
		CheckedAt: time.Now(),
	}
}
