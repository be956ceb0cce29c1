package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lllypuk/pulseboard/internal/domain/errs"
	"github.com/lllypuk/pulseboard/internal/domain/notification"
)

// Message types exchanged over a channel.
const (
	MessageTypeAuth         = "auth"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
	MessageTypeNotification = "notification"
	MessageTypeSync         = "sync"
	MessageTypeError        = "error"
)

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// NotificationPayload is the client-facing form of a notification.
type NotificationPayload struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// SyncItem is a notification inside a sync frame. It also carries the read flag.
type SyncItem struct {
	NotificationPayload

	Read bool `json:"read"`
}

type notificationMessage struct {
	Type         string              `json:"type"`
	Notification NotificationPayload `json:"notification"`
}

type syncMessage struct {
	Type          string     `json:"type"`
	Notifications []SyncItem `json:"notifications"`
	UnreadCount   int        `json:"unreadCount"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type typeOnlyMessage struct {
	Type string `json:"type"`
}

// NewNotificationPayload converts a domain notification.
func NewNotificationPayload(n *notification.Notification) NotificationPayload {
	return NotificationPayload{
		ID:        n.ID(),
		Title:     n.Title(),
		Message:   n.Message(),
		Type:      string(n.Kind()),
		Timestamp: n.CreatedAt().UTC().Format(TimestampLayout),
	}
}

// EncodeNotification builds a notification frame.
func EncodeNotification(n *notification.Notification) ([]byte, error) {
	return json.Marshal(notificationMessage{
		Type:         MessageTypeNotification,
		Notification: NewNotificationPayload(n),
	})
}

// EncodeSync builds a sync frame. The list keeps the given order.
func EncodeSync(list []*notification.Notification, unreadCount int) ([]byte, error) {
	items := make([]SyncItem, 0, len(list))
	for _, n := range list {
		items = append(items, SyncItem{NotificationPayload: NewNotificationPayload(n), Read: n.IsRead()})
	}
	return json.Marshal(syncMessage{
		Type:          MessageTypeSync,
		Notifications: items,
		UnreadCount:   unreadCount,
	})
}

// EncodeError builds an error frame.
func EncodeError(text string) []byte {
	data, _ := json.Marshal(errorMessage{Type: MessageTypeError, Error: text})
	return data
}

// EncodePong builds a pong frame.
func EncodePong() []byte {
	data, _ := json.Marshal(typeOnlyMessage{Type: MessageTypePong})
	return data
}

// ClientMessage is a decoded inbound frame.
type ClientMessage struct {
	Type   string
	UserID notification.UserID
}

type rawClientMessage struct {
	Type   string          `json:"type"`
	UserID json.RawMessage `json:"userId"`
}

// ParseClientMessage decodes an inbound frame. Every failure wraps
// errs.ErrMalformedMessage.
func ParseClientMessage(data []byte) (ClientMessage, error) {
	var raw rawClientMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %s", errs.ErrMalformedMessage, err.Error())
	}
	if raw.Type == "" {
		return ClientMessage{}, fmt.Errorf("%w: missing type", errs.ErrMalformedMessage)
	}

	msg := ClientMessage{Type: raw.Type}
	if raw.Type != MessageTypeAuth {
		return msg, nil
	}

	userID, err := parseAnnouncedUserID(raw.UserID)
	if err != nil {
		return ClientMessage{}, err
	}
	msg.UserID = userID
	return msg, nil
}

// parseAnnouncedUserID accepts a positive integer or a non-empty string.
// Integers are rendered in base 10 so 42 and "42" name the same user.
func parseAnnouncedUserID(raw json.RawMessage) (notification.UserID, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("%w: missing userId", errs.ErrMalformedMessage)
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: userId: %s", errs.ErrMalformedMessage, err.Error())
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return "", fmt.Errorf("%w: empty userId", errs.ErrMalformedMessage)
		}
		return notification.UserID(s), nil
	}

	// anything that is not a plain base-10 integer (floats, exponents, bools,
	// objects) fails here
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || id <= 0 {
		return "", fmt.Errorf("%w: userId must be a positive integer or a string", errs.ErrMalformedMessage)
	}
	return notification.UserID(strconv.FormatInt(id, 10)), nil
}
