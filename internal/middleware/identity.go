package middleware

// identity.go holds helpers shared across middleware files.

import (
    "github.com/labstack/echo/v4"
)

// userID returns the authenticated user's id, or "anon" when the request
// carries no verified claims.
func userID(c echo.Context) string {
    if claims, ok := ClaimsFrom(c); ok && claims.UserID != "" {
        return claims.UserID
    }
    return "anon"
}

// clientIP returns the caller's address as echo resolves it.
func clientIP(c echo.Context) string {
    if ip := c.RealIP(); ip != "" {
        return ip
    }
    return "unknown"
}
