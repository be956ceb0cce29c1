// Package event defines the contract between event producers and the bus.
package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DomainEvent is anything the bus can carry. AggregateID names the entity the
// event is about; for notifications it is the notification id.
type DomainEvent interface {
	EventType() string
	AggregateID() string
	OccurredAt() time.Time
	Metadata() Metadata
}

// Raw is a DomainEvent rebuilt from the wire whose body is still encoded.
type Raw interface {
	DomainEvent
	Payload() json.RawMessage
}

// Handler processes a delivered event.
type Handler func(ctx context.Context, evt DomainEvent) error

// Bus publishes events.
type Bus interface {
	Publish(ctx context.Context, evt DomainEvent) error
}

// ErrNoPayload is returned by Decode for an event that is neither a Raw
// event nor of the requested type.
var ErrNoPayload = errors.New("event carries no payload")

// Decode fills dst from evt. Events published in-process arrive as their
// concrete type and are copied through JSON so both paths yield the same value.
func Decode(evt DomainEvent, dst any) error {
	var body []byte
	if raw, ok := evt.(Raw); ok {
		body = raw.Payload()
	} else {
		if evt == nil {
			return ErrNoPayload
		}
		encoded, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("encode %s: %w", evt.EventType(), err)
		}
		body = encoded
	}
	if len(body) == 0 {
		return ErrNoPayload
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.EventType(), err)
	}
	return nil
}
