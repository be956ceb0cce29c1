package notification

import (
	"context"
	"fmt"

	"github.com/lllypuk/pulseboard/internal/application/appcore"
	"github.com/lllypuk/pulseboard/internal/domain/notification"
)

// ListNotificationsUseCase lists a user's notifications
type ListNotificationsUseCase struct {
	notificationRepo QueryRepository
}

// NewListNotificationsUseCase creates a new use case for listing notifications
func NewListNotificationsUseCase(
	notificationRepo QueryRepository,
) *ListNotificationsUseCase {
	return &ListNotificationsUseCase{
		notificationRepo: notificationRepo,
	}
}

// Execute returns the notifications most recent first. The unread count is
// always computed from the full set, independent of filters and limit.
func (uc *ListNotificationsUseCase) Execute(
	ctx context.Context,
	query ListNotificationsQuery,
) (ListResult, error) {
	if err := uc.validate(query); err != nil {
		return ListResult{}, fmt.Errorf("validation failed: %w", err)
	}

	all, err := uc.notificationRepo.FindByUserID(ctx, query.UserID)
	if err != nil {
		return ListResult{}, fmt.Errorf("failed to fetch notifications: %w", err)
	}

	selected := all
	if query.UnreadOnly {
		selected = make([]*notification.Notification, 0, len(all))
		for _, n := range all {
			if !n.IsRead() {
				selected = append(selected, n)
			}
		}
	}

	total := len(selected)
	if query.Limit > 0 && len(selected) > query.Limit {
		selected = selected[:query.Limit]
	}

	return ListResult{
		Notifications: selected,
		TotalCount:    total,
		UnreadCount:   notification.CountUnread(all),
	}, nil
}

// validate validates request
func (uc *ListNotificationsUseCase) validate(query ListNotificationsQuery) error {
	if err := appcore.ValidateRequired("userID", query.UserID.String()); err != nil {
		return err
	}
	if query.Limit < 0 {
		return appcore.NewValidationError("limit", "must be non-negative")
	}
	return nil
}
