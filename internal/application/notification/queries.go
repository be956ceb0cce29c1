package notification

import "github.com/lllypuk/pulseboard/internal/domain/notification"

// Query is the base interface for queries
type Query interface {
	QueryName() string
}

// GetNotificationQuery fetches a single notification
type GetNotificationQuery struct {
	NotificationID int64
	UserID         notification.UserID
}

func (q GetNotificationQuery) QueryName() string { return "GetNotification" }

// ListNotificationsQuery lists a user's notifications, most recent first.
// Limit 0 returns everything.
type ListNotificationsQuery struct {
	UserID     notification.UserID
	UnreadOnly bool
	Limit      int
}

func (q ListNotificationsQuery) QueryName() string { return "ListNotifications" }

// CountUnreadQuery counts unread notifications
type CountUnreadQuery struct {
	UserID notification.UserID
}

func (q CountUnreadQuery) QueryName() string { return "CountUnread" }
