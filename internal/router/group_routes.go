package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-management/internal/handler"
	"github.com/iliyamo/user-management/internal/logging"
	"github.com/iliyamo/user-management/internal/service"
	"github.com/iliyamo/user-management/internal/utils"
)

// RegisterGroups registers admin-only group endpoints.  Reads go through
// the response cache; a delete evicts the cached read.
func RegisterGroups(e *echo.Echo, h *handler.GroupHandler, codec *utils.TokenCodec, log logging.Logger, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/group", protected(codec, log, service.AdminOnly())...)
	g.POST("", h.Create)
	g.GET("/:id", h.Get, cache)
	g.DELETE("/:id", h.Delete, cache)
}
