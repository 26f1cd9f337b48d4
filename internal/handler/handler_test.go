package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/user-management/internal/logging"
	"github.com/iliyamo/user-management/internal/middleware"
	"github.com/iliyamo/user-management/internal/model"
	"github.com/iliyamo/user-management/internal/service"
	"github.com/iliyamo/user-management/internal/utils"
)

var (
	created  = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	alice    = model.User{
		ID: "u-alice", Username: "alice", Email: "alice@example.com", PhoneNumber: "+15550001",
		Role: model.RoleUser, GroupID: "g1", PasswordHash: "$2a$secret", CreatedAt: created,
	}
	testPair = service.TokenPair{
		Access:  service.Token{Token: "access-token", Expires: created.Add(15 * time.Minute)},
		Refresh: service.Token{Token: "refresh-token", Expires: created.Add(24 * time.Hour)},
	}
)

func request(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withClaims(c echo.Context, p model.Principal) {
	c.Set(middleware.ClaimsKey, utils.NewClaims(p, utils.TokenAccess))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{model.ErrInvalidToken, http.StatusUnauthorized},
		{model.ErrUnauthorized, http.StatusUnauthorized},
		{model.ErrTokenRevoked, http.StatusForbidden},
		{fmt.Errorf("%w: account is blocked", model.ErrForbidden), http.StatusForbidden},
		{model.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("create user: %w", model.ErrConflict), http.StatusConflict},
		{model.ErrInvalidInput, http.StatusBadRequest},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

// ----- auth -----

type stubAuth struct {
	signup   func(service.SignupInput) (model.User, error)
	login    func(login, password string) (model.User, service.TokenPair, error)
	refresh  func(raw string) (model.User, service.TokenPair, error)
	logout   func(raw string) error
	reqReset func(email string) (service.Token, error)
	reset    func(raw, pw string) error
}

func (s stubAuth) Signup(_ context.Context, in service.SignupInput) (model.User, error) {
	return s.signup(in)
}
func (s stubAuth) Login(_ context.Context, login, password string) (model.User, service.TokenPair, error) {
	return s.login(login, password)
}
func (s stubAuth) Refresh(_ context.Context, raw string) (model.User, service.TokenPair, error) {
	return s.refresh(raw)
}
func (s stubAuth) Logout(_ context.Context, raw string) error { return s.logout(raw) }
func (s stubAuth) RequestPasswordReset(_ context.Context, email string) (service.Token, error) {
	return s.reqReset(email)
}
func (s stubAuth) ResetPassword(_ context.Context, raw, pw string) error { return s.reset(raw, pw) }

func TestAuthHandler_Login(t *testing.T) {
	var gotLogin string
	h := NewAuthHandler(stubAuth{login: func(login, password string) (model.User, service.TokenPair, error) {
		gotLogin = login
		if password != "passw0rd!" {
			return model.User{}, service.TokenPair{}, model.ErrUnauthorized
		}
		return alice, testPair, nil
	}}, logging.Nop())

	c, rec := request(http.MethodPost, "/v1/auth/login", `{"login":"+15550001","password":"passw0rd!"}`)
	require.NoError(t, h.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "+15550001", gotLogin)

	body := decode(t, rec)
	assert.Equal(t, "bearer", body["token_type"])
	assert.Equal(t, "access-token", body["access"].(map[string]any)["token"])
	assert.Equal(t, "refresh-token", body["refresh"].(map[string]any)["token"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "u-alice", user["id"])
	assert.NotContains(t, rec.Body.String(), "secret")

	c, rec = request(http.MethodPost, "/v1/auth/login", `{"login":"alice","password":"nope"}`)
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = request(http.MethodPost, "/v1/auth/login", `{"login":"  "}`)
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_LoginFailureKinds(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{model.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: account is blocked", model.ErrForbidden), http.StatusForbidden},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := NewAuthHandler(stubAuth{login: func(string, string) (model.User, service.TokenPair, error) {
			return model.User{}, service.TokenPair{}, tc.err
		}}, logging.Nop())
		c, rec := request(http.MethodPost, "/v1/auth/login", `{"login":"alice","password":"x"}`)
		require.NoError(t, h.Login(c))
		assert.Equal(t, tc.want, rec.Code)
	}
}

func TestAuthHandler_Refresh(t *testing.T) {
	used := map[string]bool{}
	h := NewAuthHandler(stubAuth{refresh: func(raw string) (model.User, service.TokenPair, error) {
		if used[raw] {
			return model.User{}, service.TokenPair{}, model.ErrTokenRevoked
		}
		used[raw] = true
		return alice, testPair, nil
	}}, logging.Nop())

	c, rec := request(http.MethodPost, "/v1/auth/refresh-token", `{"refresh_token":"r1"}`)
	require.NoError(t, h.Refresh(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = request(http.MethodPost, "/v1/auth/refresh-token", `{"refresh_token":"r1"}`)
	require.NoError(t, h.Refresh(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = request(http.MethodPost, "/v1/auth/refresh-token", `{}`)
	require.NoError(t, h.Refresh(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_Logout(t *testing.T) {
	h := NewAuthHandler(stubAuth{logout: func(raw string) error {
		if raw == "garbage" {
			return model.ErrInvalidToken
		}
		return nil
	}}, logging.Nop())

	c, rec := request(http.MethodPost, "/v1/auth/logout", `{"refresh_token":"r1"}`)
	require.NoError(t, h.Logout(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	c, rec = request(http.MethodPost, "/v1/auth/logout", `{"refresh_token":"garbage"}`)
	require.NoError(t, h.Logout(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid token"}`, rec.Body.String())
}

func TestAuthHandler_Signup(t *testing.T) {
	var got service.SignupInput
	h := NewAuthHandler(stubAuth{signup: func(in service.SignupInput) (model.User, error) {
		got = in
		if in.Username == "taken" {
			return model.User{}, model.ErrConflict
		}
		return alice, nil
	}}, logging.Nop())

	c, rec := request(http.MethodPost, "/v1/auth/signup",
		`{"username":"alice","email":"alice@example.com","phone_number":"+15550001","password":"passw0rd!","group_name":" base "}`)
	require.NoError(t, h.Signup(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "base", got.GroupName)
	assert.Equal(t, "+15550001", got.PhoneNumber)

	c, rec = request(http.MethodPost, "/v1/auth/signup", `{"username":"taken"}`)
	require.NoError(t, h.Signup(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthHandler_PasswordReset(t *testing.T) {
	h := NewAuthHandler(stubAuth{
		reqReset: func(email string) (service.Token, error) {
			if email != "alice@example.com" {
				return service.Token{}, model.ErrNotFound
			}
			return service.Token{Token: "reset-token-value"}, nil
		},
		reset: func(raw, pw string) error {
			if raw != "reset-token-value" {
				return model.ErrInvalidToken
			}
			if len(pw) < 8 {
				return fmt.Errorf("%w: password too short", model.ErrInvalidInput)
			}
			return nil
		},
	}, logging.Nop())

	c, rec := request(http.MethodPost, "/v1/auth/request-password-reset", `{"email":"alice@example.com"}`)
	require.NoError(t, h.RequestPasswordReset(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "reset-token-value")

	c, rec = request(http.MethodPost, "/v1/auth/request-password-reset", `{"email":"bob@example.com"}`)
	require.NoError(t, h.RequestPasswordReset(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = request(http.MethodPut, "/v1/auth/reset-password", `{"token":"reset-token-value","password":"short"}`)
	require.NoError(t, h.ResetPassword(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = request(http.MethodPut, "/v1/auth/reset-password", `{"token":"other","password":"passw0rd!"}`)
	require.NoError(t, h.ResetPassword(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = request(http.MethodPut, "/v1/auth/reset-password", `{"token":"reset-token-value","password":"passw0rd!"}`)
	require.NoError(t, h.ResetPassword(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ----- users -----

type stubUsers struct {
	UserAPI
	filter  model.UserFilter
	upd     model.UserUpdate
	avatar  []byte
	ctype   string
	listErr error
}

func (s *stubUsers) List(_ context.Context, _ utils.Claims, f model.UserFilter) ([]model.User, error) {
	s.filter = f
	return []model.User{alice}, s.listErr
}

func (s *stubUsers) UpdateSelf(_ context.Context, _ utils.Claims, upd model.UserUpdate) (model.User, error) {
	s.upd = upd
	if upd.Role != nil {
		return model.User{}, fmt.Errorf("%w: role is managed by admins", model.ErrForbidden)
	}
	return alice, nil
}

func (s *stubUsers) Get(_ context.Context, c utils.Claims, id string) (model.User, error) {
	if c.Role == model.RoleUser {
		return model.User{}, model.ErrForbidden
	}
	if id != alice.ID {
		return model.User{}, model.ErrNotFound
	}
	return alice, nil
}

func (s *stubUsers) UploadAvatar(_ context.Context, _ utils.Claims, data []byte, contentType string) (model.User, error) {
	s.avatar, s.ctype = data, contentType
	u := alice
	u.Image = "http://s3.local/avatars/x.png"
	return u, nil
}

func TestUserHandler_ListQuery(t *testing.T) {
	stub := &stubUsers{}
	h := NewUserHandler(stub, logging.Nop())

	c, rec := request(http.MethodGet, "/v1/users?page=2&limit=10&filter_by_name=ali&sort_by=username&order_by=DESC", "")
	withClaims(c, model.Principal{UserID: "u-admin", Role: model.RoleAdmin})
	require.NoError(t, h.List(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.UserFilter{Page: 2, Limit: 10, FilterByName: "ali", SortBy: "username", Descending: true}, stub.filter)
	body := decode(t, rec)
	assert.Len(t, body["items"], 1)

	c, rec = request(http.MethodGet, "/v1/users", "")
	require.NoError(t, h.List(c))
	assert.Equal(t, model.UserFilter{Page: 1, Limit: defaultPageSize}, stub.filter)

	for _, q := range []string{"page=x", "limit=ten", "order_by=sideways"} {
		c, rec = request(http.MethodGet, "/v1/users?"+q, "")
		require.NoError(t, h.List(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}

	stub.listErr = model.ErrForbidden
	c, rec = request(http.MethodGet, "/v1/users", "")
	require.NoError(t, h.List(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUserHandler_UpdateMe(t *testing.T) {
	stub := &stubUsers{}
	h := NewUserHandler(stub, logging.Nop())

	c, rec := request(http.MethodPatch, "/v1/user/me", `{"name":"Alice"}`)
	withClaims(c, alice.Principal())
	require.NoError(t, h.UpdateMe(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, stub.upd.Name)
	assert.Equal(t, "Alice", *stub.upd.Name)
	assert.Nil(t, stub.upd.Email)

	c, rec = request(http.MethodPatch, "/v1/user/me", `{}`)
	require.NoError(t, h.UpdateMe(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = request(http.MethodPatch, "/v1/user/me", `{"role":"admin"}`)
	require.NoError(t, h.UpdateMe(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUserHandler_Get(t *testing.T) {
	h := NewUserHandler(&stubUsers{}, logging.Nop())

	c, rec := request(http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("u-alice")
	withClaims(c, model.Principal{UserID: "u-mod", Role: model.RoleModerator, GroupID: "g1"})
	require.NoError(t, h.Get(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = request(http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("u-nobody")
	withClaims(c, model.Principal{UserID: "u-admin", Role: model.RoleAdmin})
	require.NoError(t, h.Get(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserHandler_UploadImage(t *testing.T) {
	stub := &stubUsers{}
	h := NewUserHandler(stub, logging.Nop())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="me.png"`)
	hdr.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG fake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/user/me/image", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	withClaims(c, alice.Principal())

	require.NoError(t, h.UploadImage(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", stub.ctype)
	assert.Equal(t, []byte("\x89PNG fake"), stub.avatar)
	assert.Equal(t, "http://s3.local/avatars/x.png", decode(t, rec)["image"])

	c, rec = request(http.MethodPost, "/v1/user/me/image", `{}`)
	require.NoError(t, h.UploadImage(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ----- groups -----

type stubGroups struct{ members map[string]bool }

func (s stubGroups) Create(_ context.Context, name string) (model.Group, error) {
	if name == "" {
		return model.Group{}, fmt.Errorf("%w: group name must be 1-15 characters", model.ErrInvalidInput)
	}
	return model.Group{ID: "g-" + name, Name: name, CreatedAt: created}, nil
}
func (s stubGroups) Get(_ context.Context, id string) (model.Group, error) {
	return model.Group{}, model.ErrNotFound
}
func (s stubGroups) Delete(_ context.Context, id string) error {
	if s.members[id] {
		return fmt.Errorf("%w: group still has members", model.ErrConflict)
	}
	return nil
}

func TestGroupHandler(t *testing.T) {
	h := NewGroupHandler(stubGroups{members: map[string]bool{"g1": true}}, logging.Nop())

	c, rec := request(http.MethodPost, "/v1/group", `{"group_name":"ops"}`)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "g-ops", decode(t, rec)["id"])

	c, rec = request(http.MethodPost, "/v1/group", `{"group_name":"  "}`)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = request(http.MethodDelete, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("g1")
	require.NoError(t, h.Delete(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	c, rec = request(http.MethodDelete, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("g2")
	require.NoError(t, h.Delete(c))
	assert.JSONEq(t, `{"id":"g2"}`, rec.Body.String())

	c, rec = request(http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("g9")
	require.NoError(t, h.Get(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("dial tcp: refused") }

	c, rec := request(http.MethodGet, "/healthz", "")
	require.NoError(t, NewHealthHandler(map[string]HealthCheck{"mysql": ok}).Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	c, rec = request(http.MethodGet, "/healthz", "")
	require.NoError(t, NewHealthHandler(map[string]HealthCheck{"mysql": ok, "redis": down}).Health(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","failed":["redis"]}`, rec.Body.String())
}
