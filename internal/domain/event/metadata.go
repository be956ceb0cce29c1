package event

import "time"

// Metadata travels next to the payload. Origin is stamped by the bus with the
// publishing instance, so a handler can tell local events from remote ones.
type Metadata struct {
	UserID        string    `json:"user_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Origin        string    `json:"origin,omitempty"`
	Timestamp     time.Time `json:"timestamp,omitempty"`
}

// NewMetadata creates metadata stamped with the current time.
func NewMetadata(userID, correlationID string) Metadata {
	return Metadata{
		UserID:        userID,
		CorrelationID: correlationID,
		Timestamp:     time.Now(),
	}
}
