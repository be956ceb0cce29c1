package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lllypuk/pulseboard/internal/domain/notification"
)

// Service groups the notification use cases behind one value that satisfies
// the HTTP handler and the channel resync interfaces.
type Service struct {
	create    *CreateNotificationUseCase
	list      *ListNotificationsUseCase
	get       *GetNotificationUseCase
	countUC   *CountUnreadUseCase
	markRead  *MarkAsReadUseCase
	markAll   *MarkAllAsReadUseCase
	deleteOne *DeleteNotificationUseCase
	deleteAll *DeleteAllNotificationsUseCase
	logger    *slog.Logger
}

// NewService wires all use cases against one repository. Extra options are
// passed to the create use case.
func NewService(repo Repository, deliverer Deliverer, logger *slog.Logger, opts ...CreateOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	createOpts := []CreateOption{WithCreateLogger(logger)}
	if deliverer != nil {
		createOpts = append(createOpts, WithDeliverer(deliverer))
	}
	createOpts = append(createOpts, opts...)

	return &Service{
		create:    NewCreateNotificationUseCase(repo, createOpts...),
		list:      NewListNotificationsUseCase(repo),
		get:       NewGetNotificationUseCase(repo),
		countUC:   NewCountUnreadUseCase(repo),
		markRead:  NewMarkAsReadUseCase(repo),
		markAll:   NewMarkAllAsReadUseCase(repo),
		deleteOne: NewDeleteNotificationUseCase(repo),
		deleteAll: NewDeleteAllNotificationsUseCase(repo),
		logger:    logger,
	}
}

// CreateNotification stores and delivers a notification.
func (s *Service) CreateNotification(ctx context.Context, cmd CreateNotificationCommand) (CreateResult, error) {
	return s.create.Execute(ctx, cmd)
}

// ListNotifications lists a user's notifications.
func (s *Service) ListNotifications(ctx context.Context, query ListNotificationsQuery) (ListResult, error) {
	return s.list.Execute(ctx, query)
}

// GetNotification returns a notification owned by the user.
func (s *Service) GetNotification(ctx context.Context, query GetNotificationQuery) (Result, error) {
	return s.get.Execute(ctx, query)
}

// CountUnread counts unread notifications.
func (s *Service) CountUnread(ctx context.Context, query CountUnreadQuery) (CountResult, error) {
	return s.countUC.Execute(ctx, query)
}

// MarkAsRead marks one notification as read.
func (s *Service) MarkAsRead(ctx context.Context, cmd MarkAsReadCommand) (Result, error) {
	return s.markRead.Execute(ctx, cmd)
}

// MarkAllAsRead marks all of a user's notifications as read.
func (s *Service) MarkAllAsRead(ctx context.Context, cmd MarkAllAsReadCommand) (CountResult, error) {
	return s.markAll.Execute(ctx, cmd)
}

// DeleteNotification deletes one notification.
func (s *Service) DeleteNotification(ctx context.Context, cmd DeleteNotificationCommand) error {
	return s.deleteOne.Execute(ctx, cmd)
}

// DeleteAllNotifications deletes every notification of a user.
func (s *Service) DeleteAllNotifications(ctx context.Context, cmd DeleteAllNotificationsCommand) error {
	return s.deleteAll.Execute(ctx, cmd)
}

// Resync returns up to limit most recent notifications plus the unread count,
// used to rebuild a client's view after it (re)connects.
func (s *Service) Resync(
	ctx context.Context,
	userID notification.UserID,
	limit int,
) ([]*notification.Notification, int, error) {
	result, err := s.list.Execute(ctx, ListNotificationsQuery{UserID: userID, Limit: limit})
	if err != nil {
		s.logger.WarnContext(ctx, "resync query failed",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()),
		)
		return nil, 0, fmt.Errorf("resync: %w", err)
	}
	return result.Notifications, result.UnreadCount, nil
}
