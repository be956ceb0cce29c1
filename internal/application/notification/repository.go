package notification

import (
	"context"

	"github.com/lllypuk/pulseboard/internal/domain/notification"
)

// CommandRepository defines state-changing notification operations.
// Declared on the consumer side (application layer).
type CommandRepository interface {
	// Create assigns the next id and the current time, stores the notification
	// unread and returns the stored copy.
	Create(ctx context.Context, n *notification.Notification) (*notification.Notification, error)

	// MarkAsRead sets read=true. Returns errs.ErrNotFound if the id is unknown.
	MarkAsRead(ctx context.Context, id int64) (*notification.Notification, error)

	// MarkAllAsRead marks every notification of the user as read and returns
	// how many were unread before the call.
	MarkAllAsRead(ctx context.Context, userID notification.UserID) (int, error)

	// Delete removes a notification. Missing ids are ignored.
	Delete(ctx context.Context, id int64) error

	// DeleteByUserID removes every notification of the user.
	DeleteByUserID(ctx context.Context, userID notification.UserID) error
}

// QueryRepository defines read-only notification operations.
type QueryRepository interface {
	// FindByID returns errs.ErrNotFound if the id is unknown.
	FindByID(ctx context.Context, id int64) (*notification.Notification, error)

	// FindByUserID returns the user's notifications, most recent first.
	FindByUserID(ctx context.Context, userID notification.UserID) ([]*notification.Notification, error)
}

// Repository combines Command and Query interfaces.
type Repository interface {
	CommandRepository
	QueryRepository
}

// Deliverer pushes a stored notification to the owner's live channels.
// It returns the number of channels reached when that is known locally.
type Deliverer interface {
	Deliver(ctx context.Context, n *notification.Notification) (int, error)
}
