package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-management/internal/logging"
	"github.com/iliyamo/user-management/internal/model"
	"github.com/iliyamo/user-management/internal/service"
)

// AuthAPI is the auth service as seen by the HTTP layer.
type AuthAPI interface {
	Signup(ctx context.Context, in service.SignupInput) (model.User, error)
	Login(ctx context.Context, login, password string) (model.User, service.TokenPair, error)
	Refresh(ctx context.Context, raw string) (model.User, service.TokenPair, error)
	Logout(ctx context.Context, raw string) error
	RequestPasswordReset(ctx context.Context, email string) (service.Token, error)
	ResetPassword(ctx context.Context, raw, newPassword string) error
}

// AuthHandler serves the unauthenticated /v1/auth endpoints.
type AuthHandler struct {
	auth AuthAPI
	log  logging.Logger
}

func NewAuthHandler(auth AuthAPI, log logging.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, log: log}
}

// ----- DTOs -----

type signupReq struct {
	Username    string `json:"username" form:"username"`
	Email       string `json:"email" form:"email"`
	PhoneNumber string `json:"phone_number" form:"phone_number"`
	Password    string `json:"password" form:"password"`
	Name        string `json:"name" form:"name"`
	Surname     string `json:"surname" form:"surname"`
	GroupID     string `json:"group_id" form:"group_id"`
	GroupName   string `json:"group_name" form:"group_name"`
}
type loginReq struct {
	Login    string `json:"login" form:"login"`
	Password string `json:"password" form:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type resetRequestReq struct {
	Email string `json:"email"`
}
type resetPasswordReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type authResp struct {
	User      userView      `json:"user"`
	Access    service.Token `json:"access"`
	Refresh   service.Token `json:"refresh"`
	TokenType string        `json:"token_type"`
}

func newAuthResp(u model.User, pair service.TokenPair) authResp {
	return authResp{User: viewOf(u), Access: pair.Access, Refresh: pair.Refresh, TokenType: "bearer"}
}

// Signup creates a user in an existing or new group.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.auth.Signup(ctx, service.SignupInput{
		Username:    req.Username,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
		Name:        strings.TrimSpace(req.Name),
		Surname:     strings.TrimSpace(req.Surname),
		GroupID:     strings.TrimSpace(req.GroupID),
		GroupName:   strings.TrimSpace(req.GroupName),
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, viewOf(u))
}

// Login accepts a username, email or phone number with a password.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.Login) == "" || req.Password == "" {
		return badRequest(c, "login/password required")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	u, pair, err := h.auth.Login(ctx, req.Login, req.Password)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, newAuthResp(u, pair))
}

// Refresh redeems a refresh token for a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	u, pair, err := h.auth.Refresh(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, newAuthResp(u, pair))
}

// Logout revokes a refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.auth.Logout(ctx, strings.TrimSpace(req.RefreshToken)); err != nil {
		return writeError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RequestPasswordReset queues a reset link for the account owning email.
// The token itself only travels through the notification.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req resetRequestReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return badRequest(c, "email required")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if _, err := h.auth.RequestPasswordReset(ctx, req.Email); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password reset link sent"})
}

// ResetPassword sets a new password using a reset token.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.Token) == "" || req.Password == "" {
		return badRequest(c, "token/password required")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.auth.ResetPassword(ctx, strings.TrimSpace(req.Token), req.Password); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}
