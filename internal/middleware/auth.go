package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/lllypuk/pulseboard/internal/domain/notification"
	"github.com/lllypuk/pulseboard/internal/infrastructure/auth"
)

// ContextKeyUserID is the echo context key holding the authenticated user.
const ContextKeyUserID = "user_id"

// Default token locations.
const (
	DefaultCookieName = "access_token"
	DefaultQueryParam = "token"
)

// Auth errors.
var (
	ErrMissingToken      = errors.New("missing bearer token")
	ErrInvalidAuthHeader = errors.New("invalid authorization header format")
)

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*auth.Claims, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	// Logger is the structured logger for auth events.
	Logger *slog.Logger

	// Validator validates tokens. Required.
	Validator TokenValidator

	// SkipPaths are paths that don't require authentication.
	SkipPaths []string

	// CookieName is checked when no Authorization header is present.
	CookieName string

	// QueryParam is checked last. Browsers cannot set headers on a
	// WebSocket upgrade, so the upgrade route enables it.
	QueryParam string

	// Optional lets requests without any token through anonymously.
	// A token that is present must still be valid.
	Optional bool
}

// DefaultAuthConfig returns an AuthConfig with sensible defaults.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Logger:     slog.Default(),
		SkipPaths:  []string{"/health", "/ready", "/health/details", "/metrics"},
		CookieName: DefaultCookieName,
	}
}

// Auth returns an authentication middleware with the given configuration.
// The token subject is stored under ContextKeyUserID.
func Auth(config AuthConfig) echo.MiddlewareFunc {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	skipPaths := make(map[string]struct{}, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skipPaths[path] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if _, ok := skipPaths[path]; ok {
				return next(c)
			}

			token, err := extractToken(c, config)
			if err != nil {
				if errors.Is(err, ErrMissingToken) && config.Optional {
					return next(c)
				}
				return respondAuthError(c, err)
			}

			if config.Validator == nil {
				config.Logger.Error("token validator not configured")
				return respondAuthError(c, auth.ErrInvalidToken)
			}

			claims, err := config.Validator.Validate(c.Request().Context(), token)
			if err != nil {
				config.Logger.Warn("token validation failed",
					slog.String("error", err.Error()),
					slog.String("path", path),
					slog.String("remote_ip", c.RealIP()),
				)
				return respondAuthError(c, err)
			}

			c.Set(ContextKeyUserID, claims.UserID)

			config.Logger.Debug("user authenticated",
				slog.String("user_id", claims.UserID.String()),
				slog.String("path", path),
			)

			return next(c)
		}
	}
}

// extractToken looks at the Authorization header, then the cookie, then the
// query parameter.
func extractToken(c echo.Context, config AuthConfig) (string, error) {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		return extractBearerToken(header)
	}

	if config.CookieName != "" {
		if cookie, err := c.Cookie(config.CookieName); err == nil && cookie.Value != "" {
			return cookie.Value, nil
		}
	}

	if config.QueryParam != "" {
		if token := c.QueryParam(config.QueryParam); token != "" {
			return token, nil
		}
	}

	return "", ErrMissingToken
}

// extractBearerToken extracts the token from a Bearer authorization header.
func extractBearerToken(authHeader string) (string, error) {
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthHeader
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
	if token == "" {
		return "", ErrInvalidAuthHeader
	}

	return token, nil
}

// respondAuthError sends an authentication error response.
func respondAuthError(c echo.Context, err error) error {
	code := "UNAUTHORIZED"
	message := "Authentication required"

	switch {
	case errors.Is(err, ErrMissingToken):
		message = "Missing bearer token"
	case errors.Is(err, ErrInvalidAuthHeader):
		message = "Invalid authorization header format"
	case errors.Is(err, auth.ErrTokenExpired):
		message = "Token has expired"
		code = "TOKEN_EXPIRED"
	case errors.Is(err, auth.ErrMissingSubject):
		message = "Token has no subject"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidIssuer),
		errors.Is(err, auth.ErrInvalidAudience),
		errors.Is(err, auth.ErrInvalidClaims):
		message = "Invalid token"
	}

	return respondError(c, http.StatusUnauthorized, code, message)
}

// GetUserID returns the authenticated user, or the zero id.
func GetUserID(c echo.Context) notification.UserID {
	if id, ok := c.Get(ContextKeyUserID).(notification.UserID); ok {
		return id
	}
	return ""
}
