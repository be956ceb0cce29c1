package notification_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/lllypuk/pulseboard/internal/application/notification"
	"github.com/lllypuk/pulseboard/internal/domain/errs"
	domainnotification "github.com/lllypuk/pulseboard/internal/domain/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockNotificationRepository is an in-memory mock of the notification repository
type mockNotificationRepository struct {
	mu            sync.Mutex
	nextID        int64
	notifications map[int64]*domainnotification.Notification
	createErr     error
}

func newMockNotificationRepository() *mockNotificationRepository {
	return &mockNotificationRepository{
		notifications: make(map[int64]*domainnotification.Notification),
	}
}

func (m *mockNotificationRepository) Create(
	_ context.Context,
	n *domainnotification.Notification,
) (*domainnotification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.nextID++
	stored := n.Stored(m.nextID, time.Now())
	m.notifications[stored.ID()] = stored
	return stored.Clone(), nil
}

func (m *mockNotificationRepository) MarkAsRead(
	_ context.Context,
	id int64,
) (*domainnotification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	n.MarkAsRead()
	return n.Clone(), nil
}

func (m *mockNotificationRepository) MarkAllAsRead(_ context.Context, userID domainnotification.UserID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	marked := 0
	for _, n := range m.notifications {
		if n.UserID() == userID && n.MarkAsRead() {
			marked++
		}
	}
	return marked, nil
}

func (m *mockNotificationRepository) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.notifications, id)
	return nil
}

func (m *mockNotificationRepository) DeleteByUserID(_ context.Context, userID domainnotification.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, n := range m.notifications {
		if n.UserID() == userID {
			delete(m.notifications, id)
		}
	}
	return nil
}

func (m *mockNotificationRepository) FindByID(
	_ context.Context,
	id int64,
) (*domainnotification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return n.Clone(), nil
}

func (m *mockNotificationRepository) FindByUserID(
	_ context.Context,
	userID domainnotification.UserID,
) ([]*domainnotification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domainnotification.Notification
	for _, n := range m.notifications {
		if n.UserID() == userID {
			result = append(result, n.Clone())
		}
	}
	slices.SortFunc(result, func(a, b *domainnotification.Notification) int {
		return int(b.ID() - a.ID())
	})
	return result, nil
}

// recordingDeliverer records delivered notifications in order
type recordingDeliverer struct {
	mu        sync.Mutex
	delivered []*domainnotification.Notification
	count     int
	err       error
}

func (d *recordingDeliverer) Deliver(_ context.Context, n *domainnotification.Notification) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return 0, d.err
	}
	d.delivered = append(d.delivered, n)
	return d.count, nil
}

func seed(
	t *testing.T,
	repo *mockNotificationRepository,
	userID domainnotification.UserID,
	title string,
) *domainnotification.Notification {
	t.Helper()
	draft, err := domainnotification.NewNotification(userID, title, "message", domainnotification.KindInfo)
	require.NoError(t, err)
	stored, err := repo.Create(context.Background(), draft)
	require.NoError(t, err)
	return stored
}

func TestCreateNotificationUseCase_Execute_Success(t *testing.T) {
	repo := newMockNotificationRepository()
	deliverer := &recordingDeliverer{count: 2}
	useCase := notification.NewCreateNotificationUseCase(repo, notification.WithDeliverer(deliverer))

	cmd := notification.CreateNotificationCommand{
		UserID:  "42",
		Title:   "Test",
		Message: "hello",
		Kind:    domainnotification.KindInfo,
	}

	result, err := useCase.Execute(context.Background(), cmd)

	require.NoError(t, err)
	require.NotNil(t, result.Value)
	assert.Positive(t, result.Value.ID())
	assert.False(t, result.Value.IsRead())
	assert.Equal(t, 2, result.Delivered)
	require.Len(t, deliverer.delivered, 1)
	assert.Equal(t, result.Value.ID(), deliverer.delivered[0].ID())
}

func TestCreateNotificationUseCase_Execute_IDsIncrease(t *testing.T) {
	repo := newMockNotificationRepository()
	useCase := notification.NewCreateNotificationUseCase(repo)

	var last int64
	for _, user := range []domainnotification.UserID{"1", "2", "1", "3"} {
		result, err := useCase.Execute(context.Background(), notification.CreateNotificationCommand{
			UserID: user, Title: "t", Message: "m", Kind: domainnotification.KindSuccess,
		})
		require.NoError(t, err)
		assert.Greater(t, result.Value.ID(), last)
		last = result.Value.ID()
	}
}

func TestCreateNotificationUseCase_Execute_DeliveryFailureIsAbsorbed(t *testing.T) {
	repo := newMockNotificationRepository()
	deliverer := &recordingDeliverer{err: errors.New("bus down")}
	useCase := notification.NewCreateNotificationUseCase(repo, notification.WithDeliverer(deliverer))

	result, err := useCase.Execute(context.Background(), notification.CreateNotificationCommand{
		UserID: "42", Title: "t", Message: "m", Kind: domainnotification.KindWarning,
	})

	require.NoError(t, err)
	assert.Zero(t, result.Delivered)

	stored, findErr := repo.FindByUserID(context.Background(), "42")
	require.NoError(t, findErr)
	assert.Len(t, stored, 1)
}

func TestCreateNotificationUseCase_Execute_NoLiveChannels(t *testing.T) {
	repo := newMockNotificationRepository()
	useCase := notification.NewCreateNotificationUseCase(repo, notification.WithDeliverer(&recordingDeliverer{}))

	result, err := useCase.Execute(context.Background(), notification.CreateNotificationCommand{
		UserID: "9", Title: "t", Message: "m", Kind: domainnotification.KindInfo,
	})

	require.NoError(t, err)
	assert.Zero(t, result.Delivered)

	list, err := repo.FindByUserID(context.Background(), "9")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, result.Value.ID(), list[0].ID())
}

func TestCreateNotificationUseCase_Validate(t *testing.T) {
	tests := []struct {
		name string
		cmd  notification.CreateNotificationCommand
	}{
		{
			name: "missing user",
			cmd:  notification.CreateNotificationCommand{Title: "t", Message: "m", Kind: domainnotification.KindInfo},
		},
		{
			name: "invalid kind",
			cmd:  notification.CreateNotificationCommand{UserID: "1", Title: "t", Message: "m", Kind: "fatal"},
		},
		{
			name: "missing title",
			cmd:  notification.CreateNotificationCommand{UserID: "1", Message: "m", Kind: domainnotification.KindInfo},
		},
		{
			name: "missing message",
			cmd:  notification.CreateNotificationCommand{UserID: "1", Title: "t", Kind: domainnotification.KindInfo},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockNotificationRepository()
			useCase := notification.NewCreateNotificationUseCase(repo)

			_, err := useCase.Execute(context.Background(), tt.cmd)

			require.ErrorIs(t, err, errs.ErrInvalidInput)
			assert.Empty(t, repo.notifications)
		})
	}
}

func TestCreateNotificationUseCase_Execute_SaveError(t *testing.T) {
	repo := newMockNotificationRepository()
	repo.createErr = errors.New("disk full")
	deliverer := &recordingDeliverer{}
	useCase := notification.NewCreateNotificationUseCase(repo, notification.WithDeliverer(deliverer))

	_, err := useCase.Execute(context.Background(), notification.CreateNotificationCommand{
		UserID: "1", Title: "t", Message: "m", Kind: domainnotification.KindInfo,
	})

	require.Error(t, err)
	assert.Empty(t, deliverer.delivered)
}

func TestCreateNotificationUseCase_Execute_DeliversInCreationOrder(t *testing.T) {
	repo := newMockNotificationRepository()
	deliverer := &recordingDeliverer{}
	useCase := notification.NewCreateNotificationUseCase(repo, notification.WithDeliverer(deliverer))

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = useCase.Execute(context.Background(), notification.CreateNotificationCommand{
				UserID: "5", Title: "t", Message: "m", Kind: domainnotification.KindInfo,
			})
		}()
	}
	wg.Wait()

	require.Len(t, deliverer.delivered, 20)
	for i := 1; i < len(deliverer.delivered); i++ {
		assert.Greater(t, deliverer.delivered[i].ID(), deliverer.delivered[i-1].ID())
	}
}

type countingObserver struct {
	kinds []string
}

func (o *countingObserver) NotificationCreated(kind string) {
	o.kinds = append(o.kinds, kind)
}

func TestCreateNotificationUseCase_Execute_NotifiesObserver(t *testing.T) {
	repo := newMockNotificationRepository()
	observer := &countingObserver{}
	useCase := notification.NewCreateNotificationUseCase(repo, notification.WithObserver(observer))

	_, err := useCase.Execute(context.Background(), notification.CreateNotificationCommand{
		UserID: "1", Title: "t", Message: "m", Kind: domainnotification.KindWarning,
	})
	require.NoError(t, err)

	repo.createErr = errors.New("disk full")
	_, err = useCase.Execute(context.Background(), notification.CreateNotificationCommand{
		UserID: "1", Title: "t", Message: "m", Kind: domainnotification.KindInfo,
	})
	require.Error(t, err)

	assert.Equal(t, []string{"warning"}, observer.kinds)
}
