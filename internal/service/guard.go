package service

import (
	"fmt"

	"github.com/iliyamo/user-management/internal/model"
	"github.com/iliyamo/user-management/internal/utils"
)

// Guard is an authorization predicate over verified claims.  It returns nil
// to allow and an error wrapping model.ErrForbidden to deny.  Guards see only
// the token; they never consult the user store.
type Guard func(utils.Claims) error

// AdminOnly allows administrators.
func AdminOnly() Guard {
	return func(c utils.Claims) error {
		if c.Role != model.RoleAdmin {
			return fmt.Errorf("%w: admin role required", model.ErrForbidden)
		}
		return nil
	}
}

// ModeratorOrAdminInGroup allows administrators, and moderators whose group
// is groupID.
func ModeratorOrAdminInGroup(groupID string) Guard {
	return func(c utils.Claims) error {
		switch c.Role {
		case model.RoleAdmin:
			return nil
		case model.RoleModerator:
			if groupID != "" && c.GroupID == groupID {
				return nil
			}
			return fmt.Errorf("%w: moderator outside group", model.ErrForbidden)
		}
		return fmt.Errorf("%w: moderator or admin role required", model.ErrForbidden)
	}
}

// NotBlocked rejects tokens of blocked accounts.
func NotBlocked() Guard {
	return func(c utils.Claims) error {
		if c.IsBlocked {
			return fmt.Errorf("%w: account is blocked", model.ErrForbidden)
		}
		return nil
	}
}

// Check runs guards in order and returns the first denial.
func Check(c utils.Claims, guards ...Guard) error {
	for _, g := range guards {
		if err := g(c); err != nil {
			return err
		}
	}
	return nil
}
