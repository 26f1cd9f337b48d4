package handler

import (
	"time"

	"github.com/iliyamo/user-management/internal/model"
)

// userView is the public shape of a user.  The password hash never leaves
// the service.
type userView struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	PhoneNumber string     `json:"phone_number"`
	Name        string     `json:"name,omitempty"`
	Surname     string     `json:"surname,omitempty"`
	Role        model.Role `json:"role"`
	GroupID     string     `json:"group_id"`
	Image       string     `json:"image,omitempty"`
	IsBlocked   bool       `json:"is_blocked"`
	CreatedAt   time.Time  `json:"created_at"`
	ModifiedAt  *time.Time `json:"modified_at,omitempty"`
}

func viewOf(u model.User) userView {
	return userView{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Name:        u.Name,
		Surname:     u.Surname,
		Role:        u.Role,
		GroupID:     u.GroupID,
		Image:       u.Image,
		IsBlocked:   u.IsBlocked,
		CreatedAt:   u.CreatedAt,
		ModifiedAt:  u.ModifiedAt,
	}
}

func viewsOf(users []model.User) []userView {
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, viewOf(u))
	}
	return out
}
