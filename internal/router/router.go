package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/user-management/internal/handler"
	"github.com/iliyamo/user-management/internal/logging"
	"github.com/iliyamo/user-management/internal/middleware"
	"github.com/iliyamo/user-management/internal/service"
	"github.com/iliyamo/user-management/internal/utils"
)

// New returns an Echo instance with request logging and panic recovery.
func New(log logging.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())
	return e
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterAuth registers the token endpoints under /v1/auth.  None of them
// needs a session; all of them share the rate limiter.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limiter)
	g.POST("/signup", a.Signup)
	g.POST("/login", a.Login)
	g.POST("/refresh-token", a.Refresh)
	g.POST("/logout", a.Logout)
	g.POST("/request-password-reset", a.RequestPasswordReset)
	g.PUT("/reset-password", a.ResetPassword)
}

// protected is the middleware chain of every authenticated route: a valid
// access token from an account that was not blocked when it was issued,
// followed by extra guards.
func protected(codec *utils.TokenCodec, log logging.Logger, guards ...service.Guard) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		middleware.JWTAuth(codec),
		middleware.RequireGuards(log, append([]service.Guard{service.NotBlocked()}, guards...)...),
	}
}
