package testutil

import (
	"context"
	"sync"
	"testing"

	notifapp "github.com/lllypuk/pulseboard/internal/application/notification"
	"github.com/lllypuk/pulseboard/internal/domain/errs"
	"github.com/lllypuk/pulseboard/internal/domain/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RepositoryFactory builds an empty repository for one subtest.
type RepositoryFactory func(t *testing.T) notifapp.Repository

// RunNotificationRepositoryTests checks the behaviour every notification
// repository backend must share.
func RunNotificationRepositoryTests(t *testing.T, newRepo RepositoryFactory) {
	t.Helper()

	t.Run("create assigns increasing ids and starts unread", func(t *testing.T) {
		repo := newRepo(t)
		ctx := NewTestContext(t)

		first := mustCreate(ctx, t, repo, "1", "a")
		second := mustCreate(ctx, t, repo, "2", "b")

		assert.Positive(t, first.ID())
		assert.Greater(t, second.ID(), first.ID())
		assert.False(t, first.IsRead())
		assert.False(t, first.CreatedAt().IsZero())
		assert.Equal(t, notification.UserID("1"), first.UserID())
		assert.Equal(t, notification.KindInfo, first.Kind())
	})

	t.Run("concurrent creates never reuse an id", func(t *testing.T) {
		repo := newRepo(t)
		ctx := NewTestContext(t)

		const workers = 16
		ids := make(chan int64, workers)
		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				draft, _ := notification.NewNotification("5", "t", "m", notification.KindInfo)
				stored, err := repo.Create(ctx, draft)
				if err == nil {
					ids <- stored.ID()
				}
			}()
		}
		wg.Wait()
		close(ids)

		seen := make(map[int64]bool)
		for id := range ids {
			assert.False(t, seen[id], "duplicate id %d", id)
			seen[id] = true
		}
		assert.Len(t, seen, workers)
	})

	t.Run("find by user returns most recent first", func(t *testing.T) {
		repo := newRepo(t)
		ctx := NewTestContext(t)

		a := mustCreate(ctx, t, repo, "1", "a")
		mustCreate(ctx, t, repo, "2", "other")
		b := mustCreate(ctx, t, repo, "1", "b")

		list, err := repo.FindByUserID(ctx, "1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, b.ID(), list[0].ID())
		assert.Equal(t, a.ID(), list[1].ID())

		empty, err := repo.FindByUserID(ctx, "none")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("find by id", func(t *testing.T) {
		repo := newRepo(t)
		ctx := NewTestContext(t)

		n := mustCreate(ctx, t, repo, "1", "a")

		found, err := repo.FindByID(ctx, n.ID())
		require.NoError(t, err)
		assert.Equal(t, "a", found.Title())
		assert.Equal(t, "message a", found.Message())

		_, err = repo.FindByID(ctx, n.ID()+1000)
		require.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("mark as read is idempotent", func(t *testing.T) {
		repo := newRepo(t)
		ctx := NewTestContext(t)

		n := mustCreate(ctx, t, repo, "1", "a")

		first, err := repo.MarkAsRead(ctx, n.ID())
		require.NoError(t, err)
		assert.True(t, first.IsRead())

		second, err := repo.MarkAsRead(ctx, n.ID())
		require.NoError(t, err)
		assert.True(t, second.IsRead())
	})

	t.Run("mark as read of a missing id fails with not found", func(t *testing.T) {
		repo := newRepo(t)
		ctx := NewTestContext(t)

		n := mustCreate(ctx, t, repo, "1", "a")

		_, err := repo.MarkAsRead(ctx, 7777)
		require.ErrorIs(t, err, errs.ErrNotFound)

		unchanged, err := repo.FindByID(ctx, n.ID())
		require.NoError(t, err)
		assert.False(t, unchanged.IsRead())
	})

	t.Run("mark all as read only touches the user", func(t *testing.T) {
		repo := newRepo(t)
		ctx := NewTestContext(t)

		mustCreate(ctx, t, repo, "1", "a")
		mustCreate(ctx, t, repo, "1", "b")
		theirs := mustCreate(ctx, t, repo, "2", "c")

		marked, err := repo.MarkAllAsRead(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, 2, marked)

		marked, err = repo.MarkAllAsRead(ctx, "1")
		require.NoError(t, err)
		assert.Zero(t, marked)

		marked, err = repo.MarkAllAsRead(ctx, "nobody")
		require.NoError(t, err)
		assert.Zero(t, marked)

		mine, err := repo.FindByUserID(ctx, "1")
		require.NoError(t, err)
		for _, n := range mine {
			assert.True(t, n.IsRead())
		}

		other, err := repo.FindByID(ctx, theirs.ID())
		require.NoError(t, err)
		assert.False(t, other.IsRead())
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		repo := newRepo(t)
		ctx := NewTestContext(t)

		n := mustCreate(ctx, t, repo, "1", "a")
		keep := mustCreate(ctx, t, repo, "1", "b")

		require.NoError(t, repo.Delete(ctx, n.ID()))
		require.NoError(t, repo.Delete(ctx, n.ID()))

		_, err := repo.FindByID(ctx, n.ID())
		require.ErrorIs(t, err, errs.ErrNotFound)

		list, err := repo.FindByUserID(ctx, "1")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, keep.ID(), list[0].ID())
	})

	t.Run("delete by user is idempotent", func(t *testing.T) {
		repo := newRepo(t)
		ctx := NewTestContext(t)

		mustCreate(ctx, t, repo, "1", "a")
		mustCreate(ctx, t, repo, "1", "b")
		theirs := mustCreate(ctx, t, repo, "2", "c")

		require.NoError(t, repo.DeleteByUserID(ctx, "1"))
		require.NoError(t, repo.DeleteByUserID(ctx, "1"))

		mine, err := repo.FindByUserID(ctx, "1")
		require.NoError(t, err)
		assert.Empty(t, mine)

		_, err = repo.FindByID(ctx, theirs.ID())
		require.NoError(t, err)
	})

	t.Run("ids keep growing after deletes", func(t *testing.T) {
		repo := newRepo(t)
		ctx := NewTestContext(t)

		n := mustCreate(ctx, t, repo, "1", "a")
		require.NoError(t, repo.Delete(ctx, n.ID()))

		next := mustCreate(ctx, t, repo, "1", "b")
		assert.Greater(t, next.ID(), n.ID())
	})
}

func mustCreate(
	ctx context.Context,
	t *testing.T,
	repo notifapp.Repository,
	userID notification.UserID,
	title string,
) *notification.Notification {
	t.Helper()

	draft, err := notification.NewNotification(userID, title, "message "+title, notification.KindInfo)
	require.NoError(t, err)

	stored, err := repo.Create(ctx, draft)
	require.NoError(t, err)
	return stored
}
