package handler

import (
    "context"
    "net/http"
    "sort"
    "time"

    "github.com/labstack/echo/v4"
)

// HealthCheck probes one dependency.  A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// HealthHandler answers load balancer probes.  Each registered check runs
// with a short deadline; any failure turns the answer into 503.
type HealthHandler struct {
    checks map[string]HealthCheck
}

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
    return &HealthHandler{checks: checks}
}

// Health reports {"status":"ok"} or the names of failing checks.
func (h *HealthHandler) Health(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
    defer cancel()

    var failed []string
    for name, check := range h.checks {
        if err := check(ctx); err != nil {
            failed = append(failed, name)
        }
    }
    if len(failed) > 0 {
        sort.Strings(failed)
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "failed": failed})
    }
    return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
