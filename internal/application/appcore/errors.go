package appcore

import (
	"fmt"

	"github.com/lllypuk/pulseboard/internal/domain/errs"
)

// ValidationError names the command field that failed validation. It matches
// errs.ErrInvalidInput so transports need no special case to reject it.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return errs.ErrInvalidInput }

// NewValidationError creates a ValidationError.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
