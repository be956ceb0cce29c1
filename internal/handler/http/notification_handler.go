package httphandler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	notifapp "github.com/lllypuk/pulseboard/internal/application/notification"
	"github.com/lllypuk/pulseboard/internal/domain/notification"
	"github.com/lllypuk/pulseboard/internal/infrastructure/httpserver"
	wsinfra "github.com/lllypuk/pulseboard/internal/infrastructure/websocket"
	"github.com/lllypuk/pulseboard/internal/middleware"
)

// Validation constants for notification handler.
const (
	defaultNotificationListLimit = 50
	maxNotificationListLimit     = 200
)

// Defaults applied by the test endpoint.
const (
	DefaultTestTitle   = "Test Notification"
	DefaultTestMessage = "This is a test notification from the server."
	DefaultTestKind    = notification.KindInfo
)

// NotificationResponse represents a notification in API responses.
type NotificationResponse struct {
	ID        int64  `json:"id"`
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Read      bool   `json:"read"`
	Timestamp string `json:"timestamp"`
}

// NotificationListResponse represents a list of notifications in API responses.
type NotificationListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	Total         int                    `json:"total"`
	UnreadCount   int                    `json:"unread_count"`
	HasMore       bool                   `json:"has_more"`
}

// UnreadCountResponse represents the count of unread notifications.
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// MarkAllReadResponse represents the response after marking all notifications as read.
type MarkAllReadResponse struct {
	MarkedCount int `json:"marked_count"`
}

// CreateTestResponse is returned by the test endpoint.
type CreateTestResponse struct {
	NotificationResponse

	Delivered int `json:"delivered"`
}

// CreateTestRequest is the optional body of the test endpoint.
type CreateTestRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NotificationService is the application surface used by the handler.
type NotificationService interface {
	CreateNotification(ctx context.Context, cmd notifapp.CreateNotificationCommand) (notifapp.CreateResult, error)
	ListNotifications(ctx context.Context, query notifapp.ListNotificationsQuery) (notifapp.ListResult, error)
	CountUnread(ctx context.Context, query notifapp.CountUnreadQuery) (notifapp.CountResult, error)
	MarkAsRead(ctx context.Context, cmd notifapp.MarkAsReadCommand) (notifapp.Result, error)
	MarkAllAsRead(ctx context.Context, cmd notifapp.MarkAllAsReadCommand) (notifapp.CountResult, error)
	DeleteNotification(ctx context.Context, cmd notifapp.DeleteNotificationCommand) error
	DeleteAllNotifications(ctx context.Context, cmd notifapp.DeleteAllNotificationsCommand) error
}

// NotificationHandler handles notification-related HTTP requests.
type NotificationHandler struct {
	notificationService NotificationService
	testLimiter         echo.MiddlewareFunc
}

// NotificationHandlerOption configures a NotificationHandler.
type NotificationHandlerOption func(*NotificationHandler)

// WithTestRateLimit guards the test endpoint with a rate limiting middleware.
func WithTestRateLimit(mw echo.MiddlewareFunc) NotificationHandlerOption {
	return func(h *NotificationHandler) {
		h.testLimiter = mw
	}
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(
	notificationService NotificationService,
	opts ...NotificationHandlerOption,
) *NotificationHandler {
	h := &NotificationHandler{
		notificationService: notificationService,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers notification routes under the API group.
func (h *NotificationHandler) RegisterRoutes(r *httpserver.Router) {
	api := r.API()

	var testMiddleware []echo.MiddlewareFunc
	if h.testLimiter != nil {
		testMiddleware = append(testMiddleware, h.testLimiter)
	}

	api.GET("/notifications", h.List)
	api.GET("/notifications/unread-count", h.UnreadCount)
	api.POST("/notifications/test", h.CreateTest, testMiddleware...)
	api.PATCH("/notifications/:id/read", h.MarkAsRead)
	api.POST("/notifications/mark-all-read", h.MarkAllRead)
	api.DELETE("/notifications/:id", h.Delete)
	api.DELETE("/notifications", h.DeleteAll)
}

// List handles GET /api/notifications.
// Lists notifications for the current user, most recent first.
func (h *NotificationHandler) List(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID.IsZero() {
		return respondUnauthorized(c)
	}

	query := notifapp.ListNotificationsQuery{
		UserID:     userID,
		UnreadOnly: c.QueryParam("unread_only") == "true",
		Limit:      parseNotificationLimit(c),
	}

	result, err := h.notificationService.ListNotifications(c.Request().Context(), query)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	notifications := make([]NotificationResponse, 0, len(result.Notifications))
	for _, n := range result.Notifications {
		notifications = append(notifications, ToNotificationResponse(n))
	}

	return httpserver.RespondOK(c, NotificationListResponse{
		Notifications: notifications,
		Total:         result.TotalCount,
		UnreadCount:   result.UnreadCount,
		HasMore:       len(notifications) < result.TotalCount,
	})
}

// UnreadCount handles GET /api/notifications/unread-count.
func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID.IsZero() {
		return respondUnauthorized(c)
	}

	result, err := h.notificationService.CountUnread(c.Request().Context(), notifapp.CountUnreadQuery{
		UserID: userID,
	})
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, UnreadCountResponse{Count: result.Count})
}

// CreateTest handles POST /api/notifications/test.
// Stores a notification for the current user and pushes it to their open channels.
// Missing fields fall back to the test defaults.
func (h *NotificationHandler) CreateTest(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID.IsZero() {
		return respondUnauthorized(c)
	}

	var req CreateTestRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		}
	}

	cmd := notifapp.CreateNotificationCommand{
		UserID:  userID,
		Title:   valueOr(req.Title, DefaultTestTitle),
		Message: valueOr(req.Message, DefaultTestMessage),
		Kind:    DefaultTestKind,
	}
	if strings.TrimSpace(req.Type) != "" {
		cmd.Kind = notification.Kind(strings.ToLower(strings.TrimSpace(req.Type)))
	}

	result, err := h.notificationService.CreateNotification(c.Request().Context(), cmd)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondCreated(c, CreateTestResponse{
		NotificationResponse: ToNotificationResponse(result.Value),
		Delivered:            result.Delivered,
	})
}

// MarkAsRead handles PATCH /api/notifications/:id/read.
// Marking an already read notification succeeds.
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID.IsZero() {
		return respondUnauthorized(c)
	}

	notificationID, ok := parseNotificationID(c)
	if !ok {
		return respondInvalidID(c)
	}

	result, err := h.notificationService.MarkAsRead(c.Request().Context(), notifapp.MarkAsReadCommand{
		NotificationID: notificationID,
		UserID:         userID,
	})
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, ToNotificationResponse(result.Value))
}

// MarkAllRead handles POST /api/notifications/mark-all-read.
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID.IsZero() {
		return respondUnauthorized(c)
	}

	result, err := h.notificationService.MarkAllAsRead(c.Request().Context(), notifapp.MarkAllAsReadCommand{
		UserID: userID,
	})
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, MarkAllReadResponse{MarkedCount: result.Count})
}

// Delete handles DELETE /api/notifications/:id.
// Deleting a missing notification still returns 204.
func (h *NotificationHandler) Delete(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID.IsZero() {
		return respondUnauthorized(c)
	}

	notificationID, ok := parseNotificationID(c)
	if !ok {
		return respondInvalidID(c)
	}

	err := h.notificationService.DeleteNotification(c.Request().Context(), notifapp.DeleteNotificationCommand{
		NotificationID: notificationID,
		UserID:         userID,
	})
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondNoContent(c)
}

// DeleteAll handles DELETE /api/notifications.
func (h *NotificationHandler) DeleteAll(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID.IsZero() {
		return respondUnauthorized(c)
	}

	err := h.notificationService.DeleteAllNotifications(c.Request().Context(), notifapp.DeleteAllNotificationsCommand{
		UserID: userID,
	})
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondNoContent(c)
}

// ToNotificationResponse converts a domain Notification to NotificationResponse.
func ToNotificationResponse(n *notification.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID(),
		UserID:    n.UserID().String(),
		Title:     n.Title(),
		Message:   n.Message(),
		Type:      string(n.Kind()),
		Read:      n.IsRead(),
		Timestamp: n.CreatedAt().UTC().Format(wsinfra.TimestampLayout),
	}
}

func parseNotificationLimit(c echo.Context) int {
	limit := defaultNotificationListLimit
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = min(l, maxNotificationListLimit)
		}
	}
	return limit
}

func parseNotificationID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func respondUnauthorized(c echo.Context) error {
	return httpserver.RespondErrorWithCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
}

func respondInvalidID(c echo.Context) error {
	return httpserver.RespondErrorWithCode(
		c, http.StatusBadRequest, "INVALID_NOTIFICATION_ID", "invalid notification ID format")
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
