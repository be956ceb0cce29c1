// Package badgerdb stores notifications in an embedded Badger database.
package badgerdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/lllypuk/pulseboard/internal/domain/errs"
	"github.com/lllypuk/pulseboard/internal/domain/notification"
)

// Key layout:
//
//	n:<id be64>                      -> record
//	u:<len be16><user id><id be64>   -> empty, per-user index in id order
//	s:notifications                  -> badger sequence
const (
	prefixNotification = "n:"
	prefixUser         = "u:"
	sequenceKey        = "s:notifications"
	sequenceBandwidth  = 100
	maxConflictRetries = 3
)

// NotificationRepository implements notificationapp.Repository on Badger.
type NotificationRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	now func() time.Time
}

// Option configures NotificationRepository.
type Option func(*NotificationRepository)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *NotificationRepository) {
		r.now = now
	}
}

// Open opens (or creates) a database in dir.
func Open(dir string, opts ...Option) (*NotificationRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create badger data directory: %w", err)
	}

	bopts := badger.DefaultOptions(dir).WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	repo, err := New(db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// New wraps an already opened database.
func New(db *badger.DB, opts ...Option) (*NotificationRepository, error) {
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire id sequence: %w", err)
	}

	r := &NotificationRepository{db: db, seq: seq, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Close releases the leased ids and closes the database.
func (r *NotificationRepository) Close() error {
	return errors.Join(r.seq.Release(), r.db.Close())
}

// ErrClosed is returned by Ping after Close.
var ErrClosed = fmt.Errorf("badger database is closed: %w", errs.ErrUnavailable)

// Ping reports whether the database is still open.
func (r *NotificationRepository) Ping(context.Context) error {
	if r.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

// Create stores the notification under the next sequence value.
func (r *NotificationRepository) Create(
	_ context.Context,
	n *notification.Notification,
) (*notification.Notification, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: notification is nil", errs.ErrInvalidInput)
	}

	next, err := r.seq.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate notification id: %w", err)
	}

	// badger sequences start at zero
	stored := n.Stored(int64(next)+1, r.now().UTC())

	err = r.update(func(txn *badger.Txn) error {
		return putRecord(txn, stored)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store notification: %w", err)
	}
	return stored, nil
}

// FindByID returns the notification or errs.ErrNotFound.
func (r *NotificationRepository) FindByID(_ context.Context, id int64) (*notification.Notification, error) {
	var found *notification.Notification
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getRecord(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// FindByUserID returns the user's notifications, most recent first.
func (r *NotificationRepository) FindByUserID(
	_ context.Context,
	userID notification.UserID,
) ([]*notification.Notification, error) {
	var result []*notification.Notification

	err := r.db.View(func(txn *badger.Txn) error {
		ids := userIDs(txn, userID, true)
		result = make([]*notification.Notification, 0, len(ids))
		for _, id := range ids {
			n, err := getRecord(txn, id)
			if err != nil {
				return err
			}
			result = append(result, n)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return result, nil
}

// MarkAsRead sets the read flag and returns the updated record.
func (r *NotificationRepository) MarkAsRead(_ context.Context, id int64) (*notification.Notification, error) {
	var updated *notification.Notification

	err := r.update(func(txn *badger.Txn) error {
		n, err := getRecord(txn, id)
		if err != nil {
			return err
		}
		if n.MarkAsRead() {
			if err = putRecord(txn, n); err != nil {
				return err
			}
		}
		updated = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkAllAsRead marks every notification of the user as read.
func (r *NotificationRepository) MarkAllAsRead(_ context.Context, userID notification.UserID) (int, error) {
	var marked int
	err := r.update(func(txn *badger.Txn) error {
		// the closure reruns on conflict
		marked = 0
		for _, id := range userIDs(txn, userID, false) {
			n, err := getRecord(txn, id)
			if err != nil {
				return err
			}
			if !n.MarkAsRead() {
				continue
			}
			if err = putRecord(txn, n); err != nil {
				return err
			}
			marked++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}

// Delete removes a notification if present.
func (r *NotificationRepository) Delete(_ context.Context, id int64) error {
	return r.update(func(txn *badger.Txn) error {
		n, err := getRecord(txn, id)
		if errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err = txn.Delete(recordKey(id)); err != nil {
			return err
		}
		return txn.Delete(userKey(n.UserID(), id))
	})
}

// DeleteByUserID removes every notification of the user.
func (r *NotificationRepository) DeleteByUserID(_ context.Context, userID notification.UserID) error {
	return r.update(func(txn *badger.Txn) error {
		for _, id := range userIDs(txn, userID, false) {
			if err := txn.Delete(recordKey(id)); err != nil {
				return err
			}
			if err := txn.Delete(userKey(userID, id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// update runs fn in a read-write transaction, retrying on write conflicts.
func (r *NotificationRepository) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range maxConflictRetries {
		err = r.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

type record struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Kind      string    `json:"kind"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func putRecord(txn *badger.Txn, n *notification.Notification) error {
	data, err := json.Marshal(record{
		ID:        n.ID(),
		UserID:    n.UserID().String(),
		Title:     n.Title(),
		Message:   n.Message(),
		Kind:      string(n.Kind()),
		Read:      n.IsRead(),
		CreatedAt: n.CreatedAt(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err = txn.Set(recordKey(n.ID()), data); err != nil {
		return err
	}
	return txn.Set(userKey(n.UserID(), n.ID()), nil)
}

func getRecord(txn *badger.Txn, id int64) (*notification.Notification, error) {
	item, err := txn.Get(recordKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec record
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode notification %d: %w", id, err)
	}

	return notification.Reconstruct(
		rec.ID,
		notification.UserID(rec.UserID),
		rec.Title,
		rec.Message,
		notification.Kind(rec.Kind),
		rec.CreatedAt,
		rec.Read,
	), nil
}

// userIDs collects the user's ids from the index, ascending unless reverse.
func userIDs(txn *badger.Txn, userID notification.UserID, reverse bool) []int64 {
	prefix := userPrefix(userID)

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Reverse = reverse
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	seek := prefix
	if reverse {
		seek = append(append([]byte{}, prefix...), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
	}

	var ids []int64
	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		key := it.Item().Key()
		ids = append(ids, int64(binary.BigEndian.Uint64(key[len(prefix):])))
	}
	return ids
}

func recordKey(id int64) []byte {
	key := make([]byte, 0, len(prefixNotification)+8)
	key = append(key, prefixNotification...)
	return binary.BigEndian.AppendUint64(key, uint64(id))
}

func userPrefix(userID notification.UserID) []byte {
	key := make([]byte, 0, len(prefixUser)+2+len(userID))
	key = append(key, prefixUser...)
	key = binary.BigEndian.AppendUint16(key, uint16(len(userID)))
	return append(key, userID...)
}

func userKey(userID notification.UserID, id int64) []byte {
	return binary.BigEndian.AppendUint64(userPrefix(userID), uint64(id))
}
