package middleware

import "github.com/labstack/echo/v4"

// respondError writes the standard failure envelope.
func respondError(c echo.Context, status int, code, message string) error {
	return c.JSON(status, map[string]any{
		"success": false,
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
