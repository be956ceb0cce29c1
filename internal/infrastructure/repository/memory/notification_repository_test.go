package memory_test

import (
	"context"
	"testing"
	"time"

	notifapp "github.com/lllypuk/pulseboard/internal/application/notification"
	"github.com/lllypuk/pulseboard/internal/domain/notification"
	"github.com/lllypuk/pulseboard/internal/infrastructure/repository/memory"
	"github.com/lllypuk/pulseboard/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationRepository(t *testing.T) {
	testutil.RunNotificationRepositoryTests(t, func(_ *testing.T) notifapp.Repository {
		return memory.NewNotificationRepository()
	})
}

func TestNotificationRepository_ReturnsCopies(t *testing.T) {
	repo := memory.NewNotificationRepository()
	ctx := context.Background()

	draft, err := notification.NewNotification("1", "t", "m", notification.KindInfo)
	require.NoError(t, err)
	stored, err := repo.Create(ctx, draft)
	require.NoError(t, err)

	// mutating a returned value must not leak into the store
	stored.MarkAsRead()

	found, err := repo.FindByID(ctx, stored.ID())
	require.NoError(t, err)
	assert.False(t, found.IsRead())
}

func TestNotificationRepository_Clock(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := memory.NewNotificationRepository(memory.WithClock(func() time.Time { return fixed }))

	draft, err := notification.NewNotification("1", "t", "m", notification.KindInfo)
	require.NoError(t, err)
	stored, err := repo.Create(context.Background(), draft)
	require.NoError(t, err)

	assert.Equal(t, fixed, stored.CreatedAt())
	assert.Equal(t, 1, repo.Count())
}
