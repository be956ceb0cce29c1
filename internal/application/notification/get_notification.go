package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/lllypuk/pulseboard/internal/application/appcore"
	"github.com/lllypuk/pulseboard/internal/domain/errs"
	"github.com/lllypuk/pulseboard/internal/domain/notification"
)

// GetNotificationUseCase fetches a notification owned by the caller
type GetNotificationUseCase struct {
	notificationRepo QueryRepository
}

// NewGetNotificationUseCase creates a new use case for fetching a notification
func NewGetNotificationUseCase(notificationRepo QueryRepository) *GetNotificationUseCase {
	return &GetNotificationUseCase{
		notificationRepo: notificationRepo,
	}
}

// Execute returns ErrNotificationNotFound both for unknown ids and for ids owned
// by another user.
func (uc *GetNotificationUseCase) Execute(
	ctx context.Context,
	query GetNotificationQuery,
) (Result, error) {
	if err := appcore.ValidatePositiveID("notificationID", query.NotificationID); err != nil {
		return Result{}, fmt.Errorf("validation failed: %w", err)
	}
	if err := appcore.ValidateRequired("userID", query.UserID.String()); err != nil {
		return Result{}, fmt.Errorf("validation failed: %w", err)
	}

	notif, err := findOwned(ctx, uc.notificationRepo, query.NotificationID, query.UserID)
	if err != nil {
		return Result{}, err
	}

	return Result{Value: notif}, nil
}

// findOwned loads a notification and hides records owned by someone else.
func findOwned(
	ctx context.Context,
	repo QueryRepository,
	id int64,
	userID notification.UserID,
) (*notification.Notification, error) {
	notif, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to find notification: %w", err)
	}
	if notif.UserID() != userID {
		return nil, ErrNotificationNotFound
	}
	return notif, nil
}
