package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-management/internal/logging"
	"github.com/iliyamo/user-management/internal/middleware"
	"github.com/iliyamo/user-management/internal/model"
	"github.com/iliyamo/user-management/internal/storage"
	"github.com/iliyamo/user-management/internal/utils"
)

// UserAPI is the user service as seen by the HTTP layer.
type UserAPI interface {
	List(ctx context.Context, c utils.Claims, f model.UserFilter) ([]model.User, error)
	Me(ctx context.Context, c utils.Claims) (model.User, error)
	Get(ctx context.Context, c utils.Claims, id string) (model.User, error)
	UpdateSelf(ctx context.Context, c utils.Claims, upd model.UserUpdate) (model.User, error)
	Update(ctx context.Context, c utils.Claims, id string, upd model.UserUpdate) (model.User, error)
	Block(ctx context.Context, c utils.Claims, id string) (model.User, error)
	DeleteSelf(ctx context.Context, c utils.Claims) error
	UploadAvatar(ctx context.Context, c utils.Claims, data []byte, contentType string) (model.User, error)
}

// UserHandler serves /v1/users and /v1/user.  Every route sits behind
// JWTAuth, so claims are always present.
type UserHandler struct {
	users UserAPI
	log   logging.Logger
}

func NewUserHandler(users UserAPI, log logging.Logger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

const defaultPageSize = 30

// userUpdateReq is a partial update; absent fields stay untouched.
type userUpdateReq struct {
	Username    *string     `json:"username"`
	Email       *string     `json:"email"`
	PhoneNumber *string     `json:"phone_number"`
	Name        *string     `json:"name"`
	Surname     *string     `json:"surname"`
	IsBlocked   *bool       `json:"is_blocked"`
	Role        *model.Role `json:"role"`
	GroupID     *string     `json:"group_id"`
}

func (r userUpdateReq) update() model.UserUpdate {
	return model.UserUpdate{
		Username:    r.Username,
		Email:       r.Email,
		PhoneNumber: r.PhoneNumber,
		Name:        r.Name,
		Surname:     r.Surname,
		IsBlocked:   r.IsBlocked,
		Role:        r.Role,
		GroupID:     r.GroupID,
	}
}

func (h *UserHandler) bindUpdate(c echo.Context) (model.UserUpdate, bool) {
	var req userUpdateReq
	if err := c.Bind(&req); err != nil {
		return model.UserUpdate{}, false
	}
	return req.update(), true
}

func queryInt(c echo.Context, name string, def int) (int, bool) {
	s := strings.TrimSpace(c.QueryParam(name))
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// List returns a page of users visible to the caller.
func (h *UserHandler) List(c echo.Context) error {
	claims, _ := middleware.ClaimsFrom(c)
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return badRequest(c, "page must be a number")
	}
	limit, ok := queryInt(c, "limit", defaultPageSize)
	if !ok {
		return badRequest(c, "limit must be a number")
	}
	f := model.UserFilter{
		Page:         page,
		Limit:        limit,
		FilterByName: strings.TrimSpace(c.QueryParam("filter_by_name")),
		SortBy:       strings.TrimSpace(c.QueryParam("sort_by")),
	}
	switch strings.ToLower(strings.TrimSpace(c.QueryParam("order_by"))) {
	case "", "asc":
	case "desc":
		f.Descending = true
	default:
		return badRequest(c, "order_by must be asc or desc")
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	users, err := h.users.List(ctx, claims, f)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": viewsOf(users), "page": page, "limit": limit})
}

func (h *UserHandler) Me(c echo.Context) error {
	claims, _ := middleware.ClaimsFrom(c)
	ctx, cancel := requestContext(c)
	defer cancel()
	u, err := h.users.Me(ctx, claims)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, viewOf(u))
}

func (h *UserHandler) UpdateMe(c echo.Context) error {
	claims, _ := middleware.ClaimsFrom(c)
	upd, ok := h.bindUpdate(c)
	if !ok {
		return badRequest(c, "invalid body")
	}
	if upd.Empty() {
		return badRequest(c, "nothing to update")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	u, err := h.users.UpdateSelf(ctx, claims, upd)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, viewOf(u))
}

func (h *UserHandler) DeleteMe(c echo.Context) error {
	claims, _ := middleware.ClaimsFrom(c)
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.users.DeleteSelf(ctx, claims); err != nil {
		return writeError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UploadImage reads the multipart "file" field and stores it as the
// caller's avatar.
func (h *UserHandler) UploadImage(c echo.Context) error {
	claims, _ := middleware.ClaimsFrom(c)
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file required")
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "file unreadable")
	}
	defer f.Close()
	// one byte past the limit is enough for size validation to reject it
	data, err := io.ReadAll(io.LimitReader(f, storage.MaxAvatarBytes+1))
	if err != nil {
		return badRequest(c, "file unreadable")
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	u, err := h.users.UploadAvatar(ctx, claims, data, fh.Header.Get(echo.HeaderContentType))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, viewOf(u))
}

func (h *UserHandler) Get(c echo.Context) error {
	claims, _ := middleware.ClaimsFrom(c)
	ctx, cancel := requestContext(c)
	defer cancel()
	u, err := h.users.Get(ctx, claims, c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, viewOf(u))
}

func (h *UserHandler) Update(c echo.Context) error {
	claims, _ := middleware.ClaimsFrom(c)
	upd, ok := h.bindUpdate(c)
	if !ok {
		return badRequest(c, "invalid body")
	}
	if upd.Empty() {
		return badRequest(c, "nothing to update")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	u, err := h.users.Update(ctx, claims, c.Param("id"), upd)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, viewOf(u))
}

func (h *UserHandler) Block(c echo.Context) error {
	claims, _ := middleware.ClaimsFrom(c)
	ctx, cancel := requestContext(c)
	defer cancel()
	u, err := h.users.Block(ctx, claims, c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, viewOf(u))
}
