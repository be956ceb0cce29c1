package notification

import (
	"fmt"

	"github.com/lllypuk/pulseboard/internal/domain/errs"
)

var (
	// ErrNotificationNotFound is returned when the notification does not exist
	// or belongs to another user
	ErrNotificationNotFound = fmt.Errorf("notification not found: %w", errs.ErrNotFound)
)
