package notification

import (
	"strconv"
	"time"

	"github.com/lllypuk/pulseboard/internal/domain/event"
)

// EventTypeCreated is published after a notification has been stored.
const EventTypeCreated = "notification.created"

// Created is the bus payload for EventTypeCreated.
type Created struct {
	ID            int64     `json:"id"`
	UserID        UserID    `json:"user_id"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	Kind          Kind      `json:"kind"`
	CreatedAt     time.Time `json:"created_at"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// NewCreated builds the event payload for a stored notification.
func NewCreated(n *Notification, correlationID string) Created {
	return Created{
		ID:            n.id,
		UserID:        n.userID,
		Title:         n.title,
		Message:       n.message,
		Kind:          n.kind,
		CreatedAt:     n.createdAt,
		CorrelationID: correlationID,
	}
}

// Notification rebuilds the notification carried by the event.
func (e Created) Notification() *Notification {
	return Reconstruct(e.ID, e.UserID, e.Title, e.Message, e.Kind, e.CreatedAt, false)
}

// EventType implements event.DomainEvent.
func (e Created) EventType() string { return EventTypeCreated }

// AggregateID implements event.DomainEvent.
func (e Created) AggregateID() string { return strconv.FormatInt(e.ID, 10) }

// OccurredAt implements event.DomainEvent.
func (e Created) OccurredAt() time.Time { return e.CreatedAt }

// Metadata implements event.DomainEvent.
func (e Created) Metadata() event.Metadata {
	return event.Metadata{
		UserID:        e.UserID.String(),
		CorrelationID: e.CorrelationID,
		Timestamp:     e.CreatedAt,
	}
}
