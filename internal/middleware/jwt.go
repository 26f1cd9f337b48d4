package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/user-management/internal/utils"
)

// Context keys set by JWTAuth.
const (
    ClaimsKey = "claims"
    UserIDKey = "user_id"
    RoleKey   = "role"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// with codec and stores its claims in the request context under ClaimsKey
// (plus user_id and role for logging).  Refresh tokens and password reset
// tokens are rejected: they are only accepted by their own endpoints.
func JWTAuth(codec *utils.TokenCodec) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get(echo.HeaderAuthorization)
            raw, ok := strings.CutPrefix(auth, "Bearer ")
            if !ok || strings.TrimSpace(raw) == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }

            claims, err := codec.Decode(strings.TrimSpace(raw))
            if err != nil || claims.TokenType != utils.TokenAccess || claims.IsPasswordReset() {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            c.Set(ClaimsKey, claims)
            c.Set(UserIDKey, claims.UserID)
            c.Set(RoleKey, string(claims.Role))
            return next(c)
        }
    }
}

// ClaimsFrom returns the claims stored by JWTAuth.
func ClaimsFrom(c echo.Context) (utils.Claims, bool) {
    claims, ok := c.Get(ClaimsKey).(utils.Claims)
    return claims, ok
}
