package appcore

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	// MaxTitleLength is the longest accepted notification title
	MaxTitleLength = 200

	// MaxMessageLength is the longest accepted notification body
	MaxMessageLength = 2000
)

// ValidateRequired checks that a string is not blank
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return NewValidationError(field, "is required")
	}
	return nil
}

// ValidateMaxLength checks the rune length of a string
func ValidateMaxLength(field, value string, maxLength int) error {
	if utf8.RuneCountInString(value) > maxLength {
		return NewValidationError(field, fmt.Sprintf("must be at most %d characters", maxLength))
	}
	return nil
}

// ValidateEnum checks that a value is in the allowed list
func ValidateEnum(field, value string, allowedValues []string) error {
	if slices.Contains(allowedValues, value) {
		return nil
	}
	return NewValidationError(field, fmt.Sprintf("must be one of: %v", allowedValues))
}

// ValidatePositiveID checks that a numeric id was assigned
func ValidatePositiveID(field string, id int64) error {
	if id <= 0 {
		return NewValidationError(field, "must be a positive integer")
	}
	return nil
}
