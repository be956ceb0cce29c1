package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lllypuk/pulseboard/internal/application/appcore"
	"github.com/lllypuk/pulseboard/internal/domain/errs"
)

// Response is the envelope every JSON endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is the failure half of Response. RequestID echoes X-Request-ID so a
// client report can be matched to the server log line.
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// errorRule maps one sentinel onto the wire. Rules are checked in order.
type errorRule struct {
	target  error
	status  int
	code    string
	message string
}

var errorRules = []errorRule{
	{errs.ErrNotFound, http.StatusNotFound, "NOT_FOUND", "The requested resource was not found"},
	{errs.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS", "The resource already exists"},
	{errs.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT", "Invalid input data"},
	{errs.ErrMalformedMessage, http.StatusBadRequest, "INVALID_INPUT", "Invalid input data"},
	{errs.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required"},
	{errs.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "Access denied"},
	{errs.ErrUnavailable, http.StatusServiceUnavailable, "UNAVAILABLE", "Notification storage is unavailable"},
}

// RespondJSON writes data inside a successful envelope.
func RespondJSON(c echo.Context, code int, data any) error {
	return c.JSON(code, Response{Success: true, Data: data})
}

// RespondOK is RespondJSON with 200.
func RespondOK(c echo.Context, data any) error {
	return RespondJSON(c, http.StatusOK, data)
}

// RespondCreated is RespondJSON with 201.
func RespondCreated(c echo.Context, data any) error {
	return RespondJSON(c, http.StatusCreated, data)
}

// RespondNoContent writes an empty 204.
func RespondNoContent(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// RespondError classifies err and writes the matching failure envelope.
// Unclassified errors become a 500 without leaking their text.
func RespondError(c echo.Context, err error) error {
	status, apiErr := classify(err)
	return writeError(c, status, apiErr)
}

// RespondErrorWithCode writes a failure envelope with an explicit status and code.
func RespondErrorWithCode(c echo.Context, status int, code, message string) error {
	return writeError(c, status, &Error{Code: code, Message: message})
}

func writeError(c echo.Context, status int, apiErr *Error) error {
	apiErr.RequestID = appcore.CorrelationID(c.Request().Context())
	return c.JSON(status, Response{Error: apiErr})
}

func classify(err error) (int, *Error) {
	// field-level detail is safe to show
	var validationErr *appcore.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, &Error{Code: "INVALID_INPUT", Message: validationErr.Error()}
	}

	for _, rule := range errorRules {
		if errors.Is(err, rule.target) {
			return rule.status, &Error{Code: rule.code, Message: rule.message}
		}
	}
	return http.StatusInternalServerError, &Error{Code: "INTERNAL_ERROR", Message: "An internal error occurred"}
}
