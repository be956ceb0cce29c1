package notification

import "github.com/lllypuk/pulseboard/internal/domain/notification"

// Command is the base interface for commands
type Command interface {
	CommandName() string
}

// CreateNotificationCommand stores a notification and pushes it to live channels
type CreateNotificationCommand struct {
	UserID  notification.UserID
	Title   string
	Message string
	Kind    notification.Kind
}

func (c CreateNotificationCommand) CommandName() string { return "CreateNotification" }

// MarkAsReadCommand marks one notification as read
type MarkAsReadCommand struct {
	NotificationID int64
	UserID         notification.UserID // owner check
}

func (c MarkAsReadCommand) CommandName() string { return "MarkAsRead" }

// MarkAllAsReadCommand marks all of a user's notifications as read
type MarkAllAsReadCommand struct {
	UserID notification.UserID
}

func (c MarkAllAsReadCommand) CommandName() string { return "MarkAllAsRead" }

// DeleteNotificationCommand deletes one notification
type DeleteNotificationCommand struct {
	NotificationID int64
	UserID         notification.UserID
}

func (c DeleteNotificationCommand) CommandName() string { return "DeleteNotification" }

// DeleteAllNotificationsCommand deletes all of a user's notifications
type DeleteAllNotificationsCommand struct {
	UserID notification.UserID
}

func (c DeleteAllNotificationsCommand) CommandName() string { return "DeleteAllNotifications" }
