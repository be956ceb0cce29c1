package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/lllypuk/pulseboard/internal/domain/errs"
)

// UserID identifies the owner of notifications and live channels.
// Numeric identities are kept in canonical base-10 form.
type UserID string

// IsZero reports whether the id is empty.
func (u UserID) IsZero() bool { return u == "" }

// String returns the raw id.
func (u UserID) String() string { return string(u) }

// ParseUserID trims and validates a textual user id.
func ParseUserID(s string) (UserID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty user id", errs.ErrInvalidInput)
	}
	return UserID(s), nil
}

// Kind is the severity shown to the user.
type Kind string

const (
	// KindInfo is a neutral notification
	KindInfo Kind = "info"
	// KindSuccess reports a completed action
	KindSuccess Kind = "success"
	// KindWarning needs attention
	KindWarning Kind = "warning"
	// KindError reports a failure
	KindError Kind = "error"
)

// Kinds lists all valid kinds.
func Kinds() []Kind {
	return []Kind{KindInfo, KindSuccess, KindWarning, KindError}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindInfo, KindSuccess, KindWarning, KindError:
		return true
	}
	return false
}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown notification kind %q", errs.ErrInvalidInput, s)
	}
	return k, nil
}

// Notification is a message addressed to a single user.
// The zero id means the notification has not been stored yet.
type Notification struct {
	id        int64
	userID    UserID
	title     string
	message   string
	kind      Kind
	createdAt time.Time
	read      bool
}

// NewNotification validates input and returns an unsaved notification.
// The store assigns id and creation time.
func NewNotification(userID UserID, title, message string, kind Kind) (*Notification, error) {
	if userID.IsZero() {
		return nil, fmt.Errorf("%w: user id is required", errs.ErrInvalidInput)
	}
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", errs.ErrInvalidInput)
	}
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: message is required", errs.ErrInvalidInput)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown notification kind %q", errs.ErrInvalidInput, kind)
	}

	return &Notification{
		userID:  userID,
		title:   title,
		message: message,
		kind:    kind,
	}, nil
}

// Reconstruct rebuilds a notification from storage without validation.
func Reconstruct(
	id int64,
	userID UserID,
	title, message string,
	kind Kind,
	createdAt time.Time,
	read bool,
) *Notification {
	return &Notification{
		id:        id,
		userID:    userID,
		title:     title,
		message:   message,
		kind:      kind,
		createdAt: createdAt,
		read:      read,
	}
}

// Stored returns a copy carrying the id and timestamp assigned by a store.
// A stored notification always starts unread.
func (n *Notification) Stored(id int64, createdAt time.Time) *Notification {
	return Reconstruct(id, n.userID, n.title, n.message, n.kind, createdAt, false)
}

// MarkAsRead sets the read flag. It reports whether the flag changed.
func (n *Notification) MarkAsRead() bool {
	if n.read {
		return false
	}
	n.read = true
	return true
}

// Clone returns an independent copy.
func (n *Notification) Clone() *Notification {
	c := *n
	return &c
}

// ID returns the store-assigned id.
func (n *Notification) ID() int64 { return n.id }

// UserID returns the owner.
func (n *Notification) UserID() UserID { return n.userID }

// Title returns the title.
func (n *Notification) Title() string { return n.title }

// Message returns the body text.
func (n *Notification) Message() string { return n.message }

// Kind returns the severity.
func (n *Notification) Kind() Kind { return n.kind }

// CreatedAt returns the creation time.
func (n *Notification) CreatedAt() time.Time { return n.createdAt }

// IsRead reports whether the notification has been read.
func (n *Notification) IsRead() bool { return n.read }

// CountUnread counts unread notifications in a set.
func CountUnread(list []*Notification) int {
	count := 0
	for _, n := range list {
		if !n.read {
			count++
		}
	}
	return count
}
