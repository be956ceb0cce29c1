package healthcheck

import (
	"context"
	"time"
)

// Runner is a background component such as the event bus broadcaster.
type Runner interface {
	IsRunning() bool
}

// RunningChecker reports a stopped component as degraded: the instance still
// serves its own channels without it.
type RunningChecker struct {
	name   string
	runner Runner
}

// NewRunningChecker creates a checker for a background component.
func NewRunningChecker(name string, runner Runner) *RunningChecker {
	return &RunningChecker{name: name, runner: runner}
}

// Name returns the name of this health checker.
func (c *RunningChecker) Name() string {
	return c.name
}

// Check performs the health check.
func (c *RunningChecker) Check(_ context.Context) Status {
	if c.runner.IsRunning() {
		return Status{Healthy: true, CheckedAt: time.Now()}
	}
	return Status{
		Degraded:  true,
		Message:   "not running",
		CheckedAt: time.Now(),
	}
}
