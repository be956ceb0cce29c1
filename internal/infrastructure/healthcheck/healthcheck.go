// Package healthcheck provides component checkers behind the health endpoints.
package healthcheck

import (
	"context"
	"time"

	"github.com/lllypuk/pulseboard/internal/infrastructure/httpserver"
)

// Status is the outcome of a single check.
type Status struct {
	Healthy bool
	// Degraded marks a component that works with reduced capability.
	Degraded  bool
	Message   string
	Details   map[string]any
	CheckedAt time.Time
}

// Checker checks one component.
type Checker interface {
	Name() string
	Check(ctx context.Context) Status
}

type entry struct {
	checker  Checker
	critical bool
}

// Set runs a group of checkers. It implements httpserver.HealthChecker.
type Set struct {
	entries []entry
	timeout time.Duration
}

var _ httpserver.HealthChecker = (*Set)(nil)

// DefaultCheckTimeout bounds a single check.
const DefaultCheckTimeout = 3 * time.Second

// NewSet creates an empty checker set.
func NewSet() *Set {
	return &Set{timeout: DefaultCheckTimeout}
}

// Add registers a checker. A failing critical checker makes the set not ready.
func (s *Set) Add(checker Checker, critical bool) *Set {
	s.entries = append(s.entries, entry{checker: checker, critical: critical})
	return s
}

// Len returns the number of registered checkers.
func (s *Set) Len() int {
	return len(s.entries)
}

// IsReady reports whether every critical checker is healthy or degraded.
func (s *Set) IsReady(ctx context.Context) bool {
	for _, e := range s.entries {
		if !e.critical {
			continue
		}
		st := s.run(ctx, e.checker)
		if !st.Healthy && !st.Degraded {
			return false
		}
	}
	return true
}

// GetHealthStatus runs every checker in registration order.
func (s *Set) GetHealthStatus(ctx context.Context) []httpserver.ComponentStatus {
	statuses := make([]httpserver.ComponentStatus, 0, len(s.entries))
	for _, e := range s.entries {
		st := s.run(ctx, e.checker)
		statuses = append(statuses, httpserver.ComponentStatus{
			Name:    e.checker.Name(),
			Status:  componentState(st),
			Message: st.Message,
		})
	}
	return statuses
}

func (s *Set) run(ctx context.Context, checker Checker) Status {
	checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return checker.Check(checkCtx)
}

func componentState(st Status) string {
	switch {
	case st.Healthy:
		return httpserver.StatusHealthy
	case st.Degraded:
		return httpserver.StatusDegraded
	default:
		return httpserver.StatusUnhealthy
	}
}
