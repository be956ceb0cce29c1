package notification

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/lllypuk/pulseboard/internal/application/appcore"
	"github.com/lllypuk/pulseboard/internal/domain/notification"
)

// userLockStripes bounds the number of mutexes used to order
// create+deliver per user.
const userLockStripes = 64

// CreationObserver is told about every stored notification.
type CreationObserver interface {
	NotificationCreated(kind string)
}

// CreateNotificationUseCase stores a notification and hands it to the deliverer.
// Delivery problems never fail the command once the store write succeeded.
type CreateNotificationUseCase struct {
	notificationRepo CommandRepository
	deliverer        Deliverer
	observer         CreationObserver
	logger           *slog.Logger
	stripes          [userLockStripes]sync.Mutex
}

// CreateOption configures CreateNotificationUseCase.
type CreateOption func(*CreateNotificationUseCase)

// WithDeliverer sets the component that pushes new notifications to live channels.
func WithDeliverer(d Deliverer) CreateOption {
	return func(uc *CreateNotificationUseCase) {
		uc.deliverer = d
	}
}

// WithObserver sets the observer notified after each successful store write.
func WithObserver(o CreationObserver) CreateOption {
	return func(uc *CreateNotificationUseCase) {
		uc.observer = o
	}
}

// WithCreateLogger sets the logger.
func WithCreateLogger(logger *slog.Logger) CreateOption {
	return func(uc *CreateNotificationUseCase) {
		uc.logger = logger
	}
}

// NewCreateNotificationUseCase creates a new use case for creating notifications
func NewCreateNotificationUseCase(
	notificationRepo CommandRepository,
	opts ...CreateOption,
) *CreateNotificationUseCase {
	uc := &CreateNotificationUseCase{
		notificationRepo: notificationRepo,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Execute stores the notification, then delivers it.
// Store and delivery run under the user's stripe lock so that live pushes
// for one user follow id order.
func (uc *CreateNotificationUseCase) Execute(
	ctx context.Context,
	cmd CreateNotificationCommand,
) (CreateResult, error) {
	if err := uc.validate(cmd); err != nil {
		return CreateResult{}, fmt.Errorf("validation failed: %w", err)
	}

	draft, err := notification.NewNotification(cmd.UserID, cmd.Title, cmd.Message, cmd.Kind)
	if err != nil {
		return CreateResult{}, fmt.Errorf("failed to create notification: %w", err)
	}

	mu := uc.lockFor(cmd.UserID)
	mu.Lock()
	defer mu.Unlock()

	stored, err := uc.notificationRepo.Create(ctx, draft)
	if err != nil {
		return CreateResult{}, fmt.Errorf("failed to save notification: %w", err)
	}

	result := CreateResult{Result: Result{Value: stored}}
	if uc.observer != nil {
		uc.observer.NotificationCreated(string(stored.Kind()))
	}

	if uc.deliverer == nil {
		return result, nil
	}

	delivered, deliverErr := uc.deliverer.Deliver(ctx, stored.Clone())
	if deliverErr != nil {
		uc.logger.WarnContext(ctx, "notification stored but not delivered",
			slog.Int64("notification_id", stored.ID()),
			slog.String("user_id", stored.UserID().String()),
			slog.String("error", deliverErr.Error()),
		)
		return result, nil
	}
	result.Delivered = delivered

	return result, nil
}

func (uc *CreateNotificationUseCase) lockFor(userID notification.UserID) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &uc.stripes[h.Sum32()%userLockStripes]
}

// validate validates commands
func (uc *CreateNotificationUseCase) validate(cmd CreateNotificationCommand) error {
	if err := appcore.ValidateRequired("userID", cmd.UserID.String()); err != nil {
		return err
	}
	if err := appcore.ValidateEnum("type", string(cmd.Kind), kindNames()); err != nil {
		return err
	}
	if err := appcore.ValidateRequired("title", cmd.Title); err != nil {
		return err
	}
	if err := appcore.ValidateMaxLength("title", cmd.Title, appcore.MaxTitleLength); err != nil {
		return err
	}
	if err := appcore.ValidateRequired("message", cmd.Message); err != nil {
		return err
	}
	return appcore.ValidateMaxLength("message", cmd.Message, appcore.MaxMessageLength)
}

func kindNames() []string {
	kinds := notification.Kinds()
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	return names
}
