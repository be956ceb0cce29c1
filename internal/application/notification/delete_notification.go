package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/lllypuk/pulseboard/internal/application/appcore"
)

// DeleteNotificationUseCase deletes a single notification. Deleting an id
// that is already gone, or that belongs to another user, is a no-op.
type DeleteNotificationUseCase struct {
	notificationRepo Repository
}

// NewDeleteNotificationUseCase creates a new use case for deleting a notification
func NewDeleteNotificationUseCase(notificationRepo Repository) *DeleteNotificationUseCase {
	return &DeleteNotificationUseCase{
		notificationRepo: notificationRepo,
	}
}

// Execute deletes the notification
func (uc *DeleteNotificationUseCase) Execute(
	ctx context.Context,
	cmd DeleteNotificationCommand,
) error {
	if err := appcore.ValidatePositiveID("notificationID", cmd.NotificationID); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := appcore.ValidateRequired("userID", cmd.UserID.String()); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if _, err := findOwned(ctx, uc.notificationRepo, cmd.NotificationID, cmd.UserID); err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			return nil
		}
		return err
	}

	if err := uc.notificationRepo.Delete(ctx, cmd.NotificationID); err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}

	return nil
}

// DeleteAllNotificationsUseCase deletes every notification of a user
type DeleteAllNotificationsUseCase struct {
	notificationRepo CommandRepository
}

// NewDeleteAllNotificationsUseCase creates a new use case for deleting all notifications
func NewDeleteAllNotificationsUseCase(notificationRepo CommandRepository) *DeleteAllNotificationsUseCase {
	return &DeleteAllNotificationsUseCase{
		notificationRepo: notificationRepo,
	}
}

// Execute deletes all notifications of the user
func (uc *DeleteAllNotificationsUseCase) Execute(
	ctx context.Context,
	cmd DeleteAllNotificationsCommand,
) error {
	if err := appcore.ValidateRequired("userID", cmd.UserID.String()); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if err := uc.notificationRepo.DeleteByUserID(ctx, cmd.UserID); err != nil {
		return fmt.Errorf("failed to delete notifications: %w", err)
	}

	return nil
}
