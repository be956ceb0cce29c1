package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/lllypuk/pulseboard/internal/application/appcore"
	"github.com/lllypuk/pulseboard/internal/domain/errs"
)

// MarkAsReadUseCase marks a notification as read. Repeating the call on a read
// notification succeeds and returns it unchanged.
type MarkAsReadUseCase struct {
	notificationRepo Repository
}

// NewMarkAsReadUseCase creates a new use case for marking a notification as read
func NewMarkAsReadUseCase(notificationRepo Repository) *MarkAsReadUseCase {
	return &MarkAsReadUseCase{
		notificationRepo: notificationRepo,
	}
}

// Execute marks the notification as read
func (uc *MarkAsReadUseCase) Execute(
	ctx context.Context,
	cmd MarkAsReadCommand,
) (Result, error) {
	if err := uc.validate(cmd); err != nil {
		return Result{}, fmt.Errorf("validation failed: %w", err)
	}

	if _, err := findOwned(ctx, uc.notificationRepo, cmd.NotificationID, cmd.UserID); err != nil {
		return Result{}, err
	}

	notif, err := uc.notificationRepo.MarkAsRead(ctx, cmd.NotificationID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return Result{}, ErrNotificationNotFound
		}
		return Result{}, fmt.Errorf("failed to mark as read: %w", err)
	}

	return Result{Value: notif}, nil
}

// validate validates commands
func (uc *MarkAsReadUseCase) validate(cmd MarkAsReadCommand) error {
	if err := appcore.ValidatePositiveID("notificationID", cmd.NotificationID); err != nil {
		return err
	}
	return appcore.ValidateRequired("userID", cmd.UserID.String())
}
