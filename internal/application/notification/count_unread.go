package notification

import (
	"context"
	"fmt"

	"github.com/lllypuk/pulseboard/internal/application/appcore"
	"github.com/lllypuk/pulseboard/internal/domain/notification"
)

// CountUnreadUseCase counts unread notifications by recomputing from the
// user's notification set instead of tracking a counter.
type CountUnreadUseCase struct {
	notificationRepo QueryRepository
}

// NewCountUnreadUseCase creates a new use case for counting unread notifications
func NewCountUnreadUseCase(notificationRepo QueryRepository) *CountUnreadUseCase {
	return &CountUnreadUseCase{
		notificationRepo: notificationRepo,
	}
}

// Execute counts unread notifications
func (uc *CountUnreadUseCase) Execute(
	ctx context.Context,
	query CountUnreadQuery,
) (CountResult, error) {
	if err := appcore.ValidateRequired("userID", query.UserID.String()); err != nil {
		return CountResult{}, fmt.Errorf("validation failed: %w", err)
	}

	all, err := uc.notificationRepo.FindByUserID(ctx, query.UserID)
	if err != nil {
		return CountResult{}, fmt.Errorf("failed to fetch notifications: %w", err)
	}

	return CountResult{Count: notification.CountUnread(all)}, nil
}
