package notification

import "github.com/lllypuk/pulseboard/internal/domain/notification"

// Result is the outcome of a single-notification operation
type Result struct {
	Value *notification.Notification
}

// CreateResult carries the stored notification and the live delivery count
type CreateResult struct {
	Result

	Delivered int
}

// ListResult is the outcome of a list query
type ListResult struct {
	Notifications []*notification.Notification
	TotalCount    int
	UnreadCount   int
}

// CountResult is the outcome of a count query
type CountResult struct {
	Count int
}
