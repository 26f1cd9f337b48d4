package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/user-management/internal/config"
	"github.com/iliyamo/user-management/internal/logging"
	"github.com/iliyamo/user-management/internal/model"
	"github.com/iliyamo/user-management/internal/repository"
	"github.com/iliyamo/user-management/internal/utils"
)

// AuthUserStore is the part of the user repository the auth flows need.
type AuthUserStore interface {
	repository.UserStore
	Create(ctx context.Context, u *model.User) error
	UpdatePassword(ctx context.Context, id, hash string) error
}

// GroupStore resolves and creates groups.
type GroupStore interface {
	GetByID(ctx context.Context, id string) (model.Group, error)
	GetByName(ctx context.Context, name string) (model.Group, error)
	Create(ctx context.Context, name string) (model.Group, error)
}

// ResetNotifier delivers a password reset link to a user.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, u model.User, link string) error
}

// AuthService implements signup, login, token refresh, logout and the
// password reset flow.
type AuthService struct {
	users     AuthUserStore
	groups    GroupStore
	hasher    utils.PasswordHasher
	issuer    *TokenIssuer
	revoked   repository.RevocationStore
	notifier  ResetNotifier // nil disables delivery
	resetLink string
	log       logging.Logger
}

func NewAuthService(cfg config.Config, users AuthUserStore, groups GroupStore, hasher utils.PasswordHasher,
	issuer *TokenIssuer, revoked repository.RevocationStore, notifier ResetNotifier, log logging.Logger) *AuthService {
	return &AuthService{
		users:     users,
		groups:    groups,
		hasher:    hasher,
		issuer:    issuer,
		revoked:   revoked,
		notifier:  notifier,
		resetLink: cfg.ResetLinkBase,
		log:       log.With("component", "auth"),
	}
}

// loginLookups is the order in which a login identifier is tried.
var loginLookups = []repository.LookupKind{repository.ByUsername, repository.ByEmail, repository.ByPhone}

// Authenticate resolves login as a username, then an email, then a phone
// number, and checks password against the first match.  It fails with
// model.ErrNotFound when nothing matches, model.ErrForbidden when the account
// is blocked and model.ErrUnauthorized when the password is wrong, in that
// order.
func (s *AuthService) Authenticate(ctx context.Context, login, password string) (model.User, error) {
	u, err := s.findByLogin(ctx, login)
	if err != nil {
		return model.User{}, err
	}
	if u.IsBlocked {
		s.log.Warn(ctx, "login rejected: account blocked", "user_id", u.ID)
		return model.User{}, fmt.Errorf("%w: account is blocked", model.ErrForbidden)
	}
	ok, err := s.hasher.Verify(password, u.PasswordHash)
	if err != nil {
		return model.User{}, fmt.Errorf("verify password of %s: %w", u.ID, err)
	}
	if !ok {
		return model.User{}, model.ErrUnauthorized
	}
	return u, nil
}

func (s *AuthService) findByLogin(ctx context.Context, login string) (model.User, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return model.User{}, model.ErrNotFound
	}
	for _, kind := range loginLookups {
		u, err := s.users.FindUser(ctx, repository.Lookup{Kind: kind, Value: login})
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return model.User{}, fmt.Errorf("find user by %s: %w", kind, err)
		}
	}
	return model.User{}, model.ErrNotFound
}

// Login authenticates and issues a fresh token pair.
func (s *AuthService) Login(ctx context.Context, login, password string) (model.User, TokenPair, error) {
	u, err := s.Authenticate(ctx, login, password)
	if err != nil {
		return model.User{}, TokenPair{}, err
	}
	pair, err := s.issuer.IssuePair(u.Principal())
	if err != nil {
		return model.User{}, TokenPair{}, err
	}
	s.log.Info(ctx, "login succeeded", "user_id", u.ID)
	return u, pair, nil
}

// Refresh redeems a refresh token once and issues a new pair.  The presented
// token is revoked atomically; a second redemption fails with
// model.ErrTokenRevoked.  The new pair reflects the current user row, so
// role, group and block changes take effect here.
func (s *AuthService) Refresh(ctx context.Context, raw string) (model.User, TokenPair, error) {
	claims, err := s.issuer.Codec().Decode(raw)
	if err != nil {
		return model.User{}, TokenPair{}, err
	}
	if claims.TokenType != utils.TokenRefresh {
		return model.User{}, TokenPair{}, model.ErrInvalidToken
	}
	if err := s.consume(ctx, raw, claims); err != nil {
		return model.User{}, TokenPair{}, err
	}

	u, err := s.users.FindUser(ctx, repository.Lookup{Kind: repository.ByID, Value: claims.UserID})
	if err != nil {
		return model.User{}, TokenPair{}, err
	}
	if u.IsBlocked {
		s.log.Warn(ctx, "refresh rejected: account blocked", "user_id", u.ID)
		return model.User{}, TokenPair{}, fmt.Errorf("%w: account is blocked", model.ErrForbidden)
	}
	pair, err := s.issuer.IssuePair(u.Principal())
	if err != nil {
		return model.User{}, TokenPair{}, err
	}
	return u, pair, nil
}

// consume revokes raw for the rest of its lifetime, failing when it was
// already revoked.
func (s *AuthService) consume(ctx context.Context, raw string, claims utils.Claims) error {
	remaining := claims.ExpiresIn(s.issuer.Codec().Now())
	if remaining <= 0 {
		return model.ErrInvalidToken
	}
	won, err := s.revoked.RevokeIfAbsent(ctx, raw, remaining)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if !won {
		s.log.Warn(ctx, "token reuse rejected", "user_id", claims.UserID, "jti", claims.ID)
		return model.ErrTokenRevoked
	}
	return nil
}

// Logout revokes a refresh token.  Logging out twice is not an error.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	claims, err := s.issuer.Codec().Decode(raw)
	if err != nil {
		return err
	}
	if claims.TokenType != utils.TokenRefresh {
		return model.ErrInvalidToken
	}
	remaining := claims.ExpiresIn(s.issuer.Codec().Now())
	if remaining <= 0 {
		return model.ErrInvalidToken
	}
	if err := s.revoked.Revoke(ctx, raw, remaining); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// RequestPasswordReset issues a reset token for the user owning email and
// hands the reset link to the notifier.  The token is returned so callers
// other than the HTTP layer can deliver it themselves.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (Token, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.FindUser(ctx, repository.Lookup{Kind: repository.ByEmail, Value: email})
	if err != nil {
		return Token{}, err
	}
	tok, err := s.issuer.IssueResetToken(u.Principal())
	if err != nil {
		return Token{}, err
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyPasswordReset(ctx, u, s.resetLink+tok.Token); err != nil {
			return Token{}, fmt.Errorf("notify password reset: %w", err)
		}
	}
	s.log.Info(ctx, "password reset requested", "user_id", u.ID)
	return tok, nil
}

// ResetPassword stores a new password for the user named by a reset token.
// Each reset token works once.
func (s *AuthService) ResetPassword(ctx context.Context, raw, newPassword string) error {
	claims, err := s.issuer.Codec().Decode(raw)
	if err != nil {
		return err
	}
	if claims.TokenType != utils.TokenAccess || !claims.IsPasswordReset() {
		return model.ErrInvalidToken
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	if err := s.consume(ctx, raw, claims); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, claims.UserID, hash); err != nil {
		return err
	}
	s.log.Info(ctx, "password reset", "user_id", claims.UserID)
	return nil
}

// SignupInput is a self-registration request.  Either GroupID or GroupName
// must be set; a GroupName without GroupID creates the group.
type SignupInput struct {
	Username    string
	Email       string
	PhoneNumber string
	Password    string
	Name        string
	Surname     string
	GroupID     string
	GroupName   string
}

// Signup validates in and creates a user with the user role.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (model.User, error) {
	u, err := s.createUser(ctx, in, model.RoleUser)
	if err != nil {
		return model.User{}, err
	}
	s.log.Info(ctx, "user signed up", "user_id", u.ID, "group_id", u.GroupID)
	return u, nil
}

// BootstrapAdmin creates the group in.GroupName with an administrator in it.
// It does nothing and reports false when that group already exists, so
// running it twice is safe.
func (s *AuthService) BootstrapAdmin(ctx context.Context, in SignupInput) (model.User, bool, error) {
	if err := validateGroupName(in.GroupName); err != nil {
		return model.User{}, false, err
	}
	_, err := s.groups.GetByName(ctx, in.GroupName)
	if err == nil {
		return model.User{}, false, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.User{}, false, err
	}
	in.GroupID = ""
	u, err := s.createUser(ctx, in, model.RoleAdmin)
	if err != nil {
		return model.User{}, false, err
	}
	s.log.Info(ctx, "admin created", "user_id", u.ID, "group_id", u.GroupID)
	return u, true, nil
}

func (s *AuthService) createUser(ctx context.Context, in SignupInput, role model.Role) (model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	for _, err := range []error{
		validateUsername(in.Username),
		validateEmail(in.Email),
		validatePhone(in.PhoneNumber),
		ValidatePassword(in.Password),
		validateName("name", in.Name),
		validateName("surname", in.Surname),
	} {
		if err != nil {
			return model.User{}, err
		}
	}

	groupID, err := s.resolveGroup(ctx, in.GroupID, in.GroupName)
	if err != nil {
		return model.User{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return model.User{}, err
	}
	u := model.User{
		Username:     in.Username,
		Email:        in.Email,
		PhoneNumber:  in.PhoneNumber,
		Name:         in.Name,
		Surname:      in.Surname,
		Role:         role,
		GroupID:      groupID,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, &u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

func (s *AuthService) resolveGroup(ctx context.Context, id, name string) (string, error) {
	if id != "" {
		g, err := s.groups.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return "", fmt.Errorf("%w: group %s does not exist", model.ErrInvalidInput, id)
			}
			return "", err
		}
		return g.ID, nil
	}
	if name == "" {
		return "", invalid("group_id or group_name is required")
	}
	if err := validateGroupName(name); err != nil {
		return "", err
	}
	g, err := s.groups.GetByName(ctx, name)
	if err == nil {
		return g.ID, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return "", err
	}
	g, err = s.groups.Create(ctx, name)
	if err != nil {
		return "", err
	}
	return g.ID, nil
}
