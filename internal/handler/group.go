package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-management/internal/logging"
	"github.com/iliyamo/user-management/internal/model"
)

// GroupAPI is the group service as seen by the HTTP layer.
type GroupAPI interface {
	Create(ctx context.Context, name string) (model.Group, error)
	Get(ctx context.Context, id string) (model.Group, error)
	Delete(ctx context.Context, id string) error
}

// GroupHandler serves /v1/group.  Routes are admin-only.
type GroupHandler struct {
	groups GroupAPI
	log    logging.Logger
}

func NewGroupHandler(groups GroupAPI, log logging.Logger) *GroupHandler {
	return &GroupHandler{groups: groups, log: log}
}

type createGroupReq struct {
	GroupName string `json:"group_name" form:"group_name"`
}

func (h *GroupHandler) Create(c echo.Context) error {
	var req createGroupReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	g, err := h.groups.Create(ctx, strings.TrimSpace(req.GroupName))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, g)
}

func (h *GroupHandler) Get(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	g, err := h.groups.Get(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, g)
}

// Delete removes an empty group and echoes its id.
func (h *GroupHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.groups.Delete(ctx, id); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id})
}
