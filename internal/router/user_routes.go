package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-management/internal/handler"
	"github.com/iliyamo/user-management/internal/logging"
	"github.com/iliyamo/user-management/internal/utils"
)

// RegisterUsers registers profile endpoints.  Group-scoped checks on
// /v1/user/:id happen in the service once the target is loaded.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, codec *utils.TokenCodec, log logging.Logger) {
	e.GET("/v1/users", u.List, protected(codec, log)...)

	g := e.Group("/v1/user", protected(codec, log)...)
	g.GET("/me", u.Me)
	g.PATCH("/me", u.UpdateMe)
	g.DELETE("/me", u.DeleteMe)
	g.POST("/me/image", u.UploadImage)
	g.GET("/:id", u.Get)
	g.PATCH("/:id", u.Update)
	g.POST("/:id/block", u.Block)
}
