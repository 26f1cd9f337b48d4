package middleware

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/user-management/internal/logging"
    "github.com/iliyamo/user-management/internal/service"
)

// RequireGuards returns a middleware that runs guards against the claims
// stored by JWTAuth and aborts with 403 on the first denial.  It must be
// installed after JWTAuth; requests without claims get 401.
func RequireGuards(log logging.Logger, guards ...service.Guard) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            claims, ok := ClaimsFrom(c)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
            }
            if err := service.Check(claims, guards...); err != nil {
                log.Warn(c.Request().Context(), "access denied",
                    "user_id", claims.UserID, "role", string(claims.Role),
                    "method", c.Request().Method, "path", c.Path(), "reason", err.Error())
                return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
            }
            return next(c)
        }
    }
}
