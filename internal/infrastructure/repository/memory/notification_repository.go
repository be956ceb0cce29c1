// Package memory provides process-local repository implementations.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lllypuk/pulseboard/internal/domain/errs"
	"github.com/lllypuk/pulseboard/internal/domain/notification"
)

// NotificationRepository keeps notifications in memory.
// Ids come from a process-wide atomic counter starting at 1.
type NotificationRepository struct {
	lastID atomic.Int64
	now    func() time.Time

	mu     sync.RWMutex
	byID   map[int64]*notification.Notification
	byUser map[notification.UserID][]int64 // ascending ids
}

// Option configures NotificationRepository.
type Option func(*NotificationRepository)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *NotificationRepository) {
		r.now = now
	}
}

// NewNotificationRepository creates an empty in-memory repository.
func NewNotificationRepository(opts ...Option) *NotificationRepository {
	r := &NotificationRepository{
		now:    time.Now,
		byID:   make(map[int64]*notification.Notification),
		byUser: make(map[notification.UserID][]int64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create stores the notification under the next id.
func (r *NotificationRepository) Create(
	_ context.Context,
	n *notification.Notification,
) (*notification.Notification, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: notification is nil", errs.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// id is taken under the write lock so byUser stays sorted
	stored := n.Stored(r.lastID.Add(1), r.now().UTC())
	r.byID[stored.ID()] = stored
	r.byUser[stored.UserID()] = append(r.byUser[stored.UserID()], stored.ID())

	return stored.Clone(), nil
}

// FindByID returns a copy of the notification.
func (r *NotificationRepository) FindByID(_ context.Context, id int64) (*notification.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return n.Clone(), nil
}

// FindByUserID returns copies, most recent first.
func (r *NotificationRepository) FindByUserID(
	_ context.Context,
	userID notification.UserID,
) ([]*notification.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byUser[userID]
	result := make([]*notification.Notification, 0, len(ids))
	for _, id := range slices.Backward(ids) {
		result = append(result, r.byID[id].Clone())
	}
	return result, nil
}

// MarkAsRead sets the read flag; repeated calls succeed.
func (r *NotificationRepository) MarkAsRead(_ context.Context, id int64) (*notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	n.MarkAsRead()
	return n.Clone(), nil
}

// MarkAllAsRead marks every notification of the user as read.
func (r *NotificationRepository) MarkAllAsRead(_ context.Context, userID notification.UserID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	marked := 0
	for _, id := range r.byUser[userID] {
		if r.byID[id].MarkAsRead() {
			marked++
		}
	}
	return marked, nil
}

// Delete removes a notification if present.
func (r *NotificationRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.byID[id]
	if !ok {
		return nil
	}
	delete(r.byID, id)

	ids := slices.DeleteFunc(r.byUser[n.UserID()], func(v int64) bool { return v == id })
	if len(ids) == 0 {
		delete(r.byUser, n.UserID())
	} else {
		r.byUser[n.UserID()] = ids
	}
	return nil
}

// DeleteByUserID removes every notification of the user.
func (r *NotificationRepository) DeleteByUserID(_ context.Context, userID notification.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.byUser[userID] {
		delete(r.byID, id)
	}
	delete(r.byUser, userID)
	return nil
}

// Count returns the number of stored notifications.
func (r *NotificationRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
