package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/user-management/internal/logging"
	"github.com/iliyamo/user-management/internal/model"
	"github.com/iliyamo/user-management/internal/repository"
	"github.com/iliyamo/user-management/internal/utils"
)

// UserRepository is the user persistence used by UserService.
type UserRepository interface {
	repository.UserStore
	List(ctx context.Context, f model.UserFilter) ([]model.User, error)
	Update(ctx context.Context, id string, upd model.UserUpdate) (model.User, error)
	Delete(ctx context.Context, id string) error
}

// AvatarStore keeps profile images and returns their public URL.
type AvatarStore interface {
	Upload(ctx context.Context, userID string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

// UserService implements profile management.  Callers pass the verified
// claims of the requester; group-scoped permissions are checked here once
// the target user is loaded.
type UserService struct {
	users   UserRepository
	avatars AvatarStore // nil disables uploads
	log     logging.Logger
}

func NewUserService(users UserRepository, avatars AvatarStore, log logging.Logger) *UserService {
	return &UserService{users: users, avatars: avatars, log: log.With("component", "users")}
}

func (s *UserService) deny(ctx context.Context, c utils.Claims, err error, target string) error {
	s.log.Warn(ctx, "access denied", "user_id", c.UserID, "role", string(c.Role), "target", target, "reason", err.Error())
	return err
}

// List returns a page of users.  Administrators see everyone; moderators see
// their own group only.
func (s *UserService) List(ctx context.Context, c utils.Claims, f model.UserFilter) ([]model.User, error) {
	if err := Check(c, ModeratorOrAdminInGroup(c.GroupID)); err != nil {
		return nil, s.deny(ctx, c, err, "users")
	}
	if c.Role != model.RoleAdmin {
		f.GroupID = c.GroupID
	}
	return s.users.List(ctx, f)
}

// Me returns the requester's own record.
func (s *UserService) Me(ctx context.Context, c utils.Claims) (model.User, error) {
	return s.users.FindUser(ctx, repository.Lookup{Kind: repository.ByID, Value: c.UserID})
}

// loadManaged fetches user id and checks the requester may manage it.  Plain
// users are refused before the lookup, and a user outside a moderator's
// group is reported as not found.
func (s *UserService) loadManaged(ctx context.Context, c utils.Claims, id string) (model.User, error) {
	if err := Check(c, ModeratorOrAdminInGroup(c.GroupID)); err != nil {
		return model.User{}, s.deny(ctx, c, err, id)
	}
	u, err := s.users.FindUser(ctx, repository.Lookup{Kind: repository.ByID, Value: id})
	if err != nil {
		return model.User{}, err
	}
	if err := Check(c, ModeratorOrAdminInGroup(u.GroupID)); err != nil {
		_ = s.deny(ctx, c, err, id)
		return model.User{}, fmt.Errorf("%w: user %s", model.ErrNotFound, id)
	}
	return u, nil
}

// Get returns user id to an administrator or a moderator of its group.
func (s *UserService) Get(ctx context.Context, c utils.Claims, id string) (model.User, error) {
	return s.loadManaged(ctx, c, id)
}

// UpdateSelf applies a profile update to the requester.  Role, group and
// block state cannot be self-assigned.
func (s *UserService) UpdateSelf(ctx context.Context, c utils.Claims, upd model.UserUpdate) (model.User, error) {
	if upd.Role != nil || upd.GroupID != nil || upd.IsBlocked != nil {
		return model.User{}, s.deny(ctx, c,
			fmt.Errorf("%w: role, group and block state are managed by moderators", model.ErrForbidden), c.UserID)
	}
	if err := validateUpdate(upd); err != nil {
		return model.User{}, err
	}
	return s.users.Update(ctx, c.UserID, upd)
}

// Update applies upd to user id.  Only administrators change roles or move
// users between groups.
func (s *UserService) Update(ctx context.Context, c utils.Claims, id string, upd model.UserUpdate) (model.User, error) {
	if _, err := s.loadManaged(ctx, c, id); err != nil {
		return model.User{}, err
	}
	if (upd.Role != nil || upd.GroupID != nil) && c.Role != model.RoleAdmin {
		return model.User{}, s.deny(ctx, c, fmt.Errorf("%w: admin role required", model.ErrForbidden), id)
	}
	if err := validateUpdate(upd); err != nil {
		return model.User{}, err
	}
	return s.users.Update(ctx, id, upd)
}

// Block marks user id as blocked.  Tokens already issued to it keep their
// snapshot until they expire; refresh and login are refused immediately.
func (s *UserService) Block(ctx context.Context, c utils.Claims, id string) (model.User, error) {
	if _, err := s.loadManaged(ctx, c, id); err != nil {
		return model.User{}, err
	}
	blocked := true
	u, err := s.users.Update(ctx, id, model.UserUpdate{IsBlocked: &blocked})
	if err != nil {
		return model.User{}, err
	}
	s.log.Info(ctx, "user blocked", "user_id", id, "by", c.UserID)
	return u, nil
}

// DeleteSelf removes the requester's account and avatar.
func (s *UserService) DeleteSelf(ctx context.Context, c utils.Claims) error {
	u, err := s.Me(ctx, c)
	if err != nil {
		return err
	}
	if err := s.users.Delete(ctx, u.ID); err != nil {
		return err
	}
	if u.Image != "" && s.avatars != nil {
		if err := s.avatars.Delete(ctx, u.Image); err != nil {
			s.log.Warn(ctx, "avatar cleanup failed", "user_id", u.ID, "error", err)
		}
	}
	return nil
}

// UploadAvatar stores data as the requester's profile image, replacing any
// previous one.
func (s *UserService) UploadAvatar(ctx context.Context, c utils.Claims, data []byte, contentType string) (model.User, error) {
	if s.avatars == nil {
		return model.User{}, errors.New("avatar storage is not configured")
	}
	prev, err := s.Me(ctx, c)
	if err != nil {
		return model.User{}, err
	}
	url, err := s.avatars.Upload(ctx, c.UserID, data, contentType)
	if err != nil {
		return model.User{}, err
	}
	u, err := s.users.Update(ctx, c.UserID, model.UserUpdate{Image: &url})
	if err != nil {
		return model.User{}, err
	}
	if prev.Image != "" && prev.Image != url {
		if err := s.avatars.Delete(ctx, prev.Image); err != nil {
			s.log.Warn(ctx, "old avatar cleanup failed", "user_id", c.UserID, "error", err)
		}
	}
	return u, nil
}
