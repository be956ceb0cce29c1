package notification

import (
	"context"
	"fmt"

	"github.com/lllypuk/pulseboard/internal/application/appcore"
)

// MarkAllAsReadUseCase marks all of a user's notifications as read
type MarkAllAsReadUseCase struct {
	notificationRepo Repository
}

// NewMarkAllAsReadUseCase creates a new use case for marking all notifications as read
func NewMarkAllAsReadUseCase(notificationRepo Repository) *MarkAllAsReadUseCase {
	return &MarkAllAsReadUseCase{
		notificationRepo: notificationRepo,
	}
}

// Execute returns how many notifications changed from unread to read.
func (uc *MarkAllAsReadUseCase) Execute(
	ctx context.Context,
	cmd MarkAllAsReadCommand,
) (CountResult, error) {
	if err := appcore.ValidateRequired("userID", cmd.UserID.String()); err != nil {
		return CountResult{}, fmt.Errorf("validation failed: %w", err)
	}

	marked, err := uc.notificationRepo.MarkAllAsRead(ctx, cmd.UserID)
	if err != nil {
		return CountResult{}, fmt.Errorf("failed to mark all as read: %w", err)
	}

	return CountResult{Count: marked}, nil
}
