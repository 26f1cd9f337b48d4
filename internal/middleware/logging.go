package middleware

import (
    "log/slog"

    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"

    "github.com/iliyamo/user-management/internal/logging"
)

// RequestLogger logs one line per request through log.  Server errors are
// logged at error level, client errors at warn.
func RequestLogger(log logging.Logger) echo.MiddlewareFunc {
    return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
        LogStatus:    true,
        LogURI:       true,
        LogMethod:    true,
        LogLatency:   true,
        LogRemoteIP:  true,
        LogRequestID: true,
        LogError:     true,
        HandleError:  true,
        LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
            args := []any{
                "method", v.Method,
                "uri", v.URI,
                "status", v.Status,
                "latency_ms", v.Latency.Milliseconds(),
                "remote_ip", v.RemoteIP,
                "user_id", userID(c),
            }
            if v.RequestID != "" {
                args = append(args, "request_id", v.RequestID)
            }
            if v.Error != nil {
                args = append(args, "error", v.Error.Error())
            }
            ctx := c.Request().Context()
            switch levelFor(v.Status) {
            case slog.LevelError:
                log.Error(ctx, "request", args...)
            case slog.LevelWarn:
                log.Warn(ctx, "request", args...)
            default:
                log.Info(ctx, "request", args...)
            }
            return nil
        },
    })
}

// levelFor maps a status code to the level RequestLogger uses.
func levelFor(status int) slog.Level {
    switch {
    case status >= 500:
        return slog.LevelError
    case status >= 400:
        return slog.LevelWarn
    }
    return slog.LevelInfo
}
