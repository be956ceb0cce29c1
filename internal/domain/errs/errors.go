// Package errs holds the sentinel errors shared by the notification pipeline.
// Packages wrap them with %w and the transports map them onto status codes.
package errs

import "errors"

// Lookup failures.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
)

// Input failures. ErrMalformedMessage covers channel frames that do not decode
// or lack a required field.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrMalformedMessage = errors.New("malformed message")
)

// Identity failures.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// ErrUnavailable marks a backing store that is closed or unreachable.
var ErrUnavailable = errors.New("service unavailable")
