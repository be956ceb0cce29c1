// Package websocket provides the live push side of the service: the
// connection registry, fanout dispatch, and the per-connection lifecycle.
package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lllypuk/pulseboard/internal/domain/notification"
)

// Channel is a live push connection. The registry keeps non-owning
// references; the transport owns the connection itself.
type Channel interface {
	// ID is unique for the lifetime of the process.
	ID() string

	// Send queues a frame without blocking.
	Send(message []byte) error

	// Close is idempotent.
	Close()

	// LastActive is the last time the peer was heard from.
	LastActive() time.Time
}

// Registry maps users to their live channels.
// A channel belongs to at most one user, sets never contain duplicates, and
// users without channels are removed.
type Registry struct {
	mu     sync.RWMutex
	users  map[notification.UserID]map[string]Channel
	owners map[string]notification.UserID

	metrics Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithRegistryMetrics sets the metrics sink.
func WithRegistryMetrics(m Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithRegistryClock overrides the time source used for idle pruning.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		users:   make(map[notification.UserID]map[string]Channel),
		owners:  make(map[string]notification.UserID),
		metrics: nopMetrics{},
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds ch to the user's set. Registering the same channel twice is a
// no-op; a channel owned by another user is moved.
func (r *Registry) Register(userID notification.UserID, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.owners[ch.ID()]; ok {
		if prev == userID {
			return
		}
		r.removeLocked(prev, ch.ID())
		r.logger.Debug("channel moved between users",
			slog.String("channel_id", ch.ID()),
			slog.String("from_user_id", prev.String()),
			slog.String("to_user_id", userID.String()),
		)
	}

	set := r.users[userID]
	if set == nil {
		set = make(map[string]Channel)
		r.users[userID] = set
	}
	set[ch.ID()] = ch
	r.owners[ch.ID()] = userID

	r.logger.Debug("channel registered",
		slog.String("channel_id", ch.ID()),
		slog.String("user_id", userID.String()),
		slog.Int("user_channels", len(set)),
	)
	r.reportLocked()
}

// Unregister removes ch from the user's set. It reports whether anything was
// removed; unknown users, unknown channels and channels owned by someone else
// are ignored.
func (r *Registry) Unregister(userID notification.UserID, ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.owners[ch.ID()]; !ok || owner != userID {
		return false
	}
	// a different channel value reusing the id is not ours to remove
	if r.users[userID][ch.ID()] != ch {
		return false
	}

	r.removeLocked(userID, ch.ID())
	r.logger.Debug("channel unregistered",
		slog.String("channel_id", ch.ID()),
		slog.String("user_id", userID.String()),
	)
	r.reportLocked()
	return true
}

// ChannelsFor returns a snapshot of the user's channels.
func (r *Registry) ChannelsFor(userID notification.UserID) []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.users[userID]
	result := make([]Channel, 0, len(set))
	for _, ch := range set {
		result = append(result, ch)
	}
	return result
}

// OwnerOf returns the user a channel is registered under.
func (r *Registry) OwnerOf(ch Channel) (notification.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.owners[ch.ID()]
	return userID, ok
}

// UserCount returns the number of users with at least one channel.
func (r *Registry) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// ChannelCount returns the number of registered channels.
func (r *Registry) ChannelCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}

// UserConnectionCount returns the number of channels registered for a user.
func (r *Registry) UserConnectionCount(userID notification.UserID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID])
}

// PruneStale unregisters and closes channels whose peer has been silent for
// longer than maxIdle. It returns the number of pruned channels.
func (r *Registry) PruneStale(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	var stale []Channel
	for userID, set := range r.users {
		for id, ch := range set {
			if ch.LastActive().Before(cutoff) {
				stale = append(stale, ch)
				r.removeLocked(userID, id)
			}
		}
	}
	if len(stale) > 0 {
		r.reportLocked()
	}
	r.mu.Unlock()

	// Close may block on the transport, keep it outside the lock
	for _, ch := range stale {
		ch.Close()
	}

	if len(stale) > 0 {
		r.metrics.ChannelPruned(PruneReasonIdle, len(stale))
		r.logger.Info("pruned idle channels", slog.Int("count", len(stale)))
	}
	return len(stale)
}

// RunPruner calls PruneStale every interval until ctx is done.
func (r *Registry) RunPruner(ctx context.Context, interval, maxIdle time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "channel pruner started",
		slog.Duration("interval", interval),
		slog.Duration("max_idle", maxIdle),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.PruneStale(maxIdle)
		}
	}
}

// CloseAll empties the registry and closes every channel.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	all := make([]Channel, 0, len(r.owners))
	for _, set := range r.users {
		for _, ch := range set {
			all = append(all, ch)
		}
	}
	r.users = make(map[notification.UserID]map[string]Channel)
	r.owners = make(map[string]notification.UserID)
	r.reportLocked()
	r.mu.Unlock()

	for _, ch := range all {
		ch.Close()
	}

	if len(all) > 0 {
		r.metrics.ChannelPruned(PruneReasonShutdown, len(all))
	}
	return len(all)
}

func (r *Registry) removeLocked(userID notification.UserID, channelID string) {
	delete(r.owners, channelID)

	set := r.users[userID]
	delete(set, channelID)
	if len(set) == 0 {
		delete(r.users, userID)
	}
}

func (r *Registry) reportLocked() {
	r.metrics.RegistrySize(len(r.owners), len(r.users))
}
