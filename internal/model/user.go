package model

import "time"

// Role is the permission level stored on a user and carried in tokens.
type Role string

const (
    RoleUser      Role = "user"
    RoleModerator Role = "moderator"
    RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
    switch r {
    case RoleUser, RoleModerator, RoleAdmin:
        return true
    }
    return false
}

// User represents a row of the `users` table.  PasswordHash is never
// serialized; handlers build their own response views.
//
// Fields:
//  ID           – UUID primary key.
//  Username     – unique login name.
//  Email        – unique email address.
//  PhoneNumber  – unique E.164-ish phone number.
//  Name/Surname – optional display names.
//  Role         – user, moderator or admin.
//  GroupID      – group the user belongs to.
//  Image        – avatar URL in object storage (empty when unset).
//  IsBlocked    – blocked accounts cannot log in.
//  PasswordHash – bcrypt digest.
type User struct {
    ID           string
    Username     string
    Email        string
    PhoneNumber  string
    Name         string
    Surname      string
    Role         Role
    GroupID      string
    Image        string
    IsBlocked    bool
    PasswordHash string
    CreatedAt    time.Time
    ModifiedAt   *time.Time
}

// Principal is the identity snapshot embedded in tokens.  It does not follow
// later changes of the user row until the user authenticates again.
type Principal struct {
    UserID    string
    Role      Role
    GroupID   string
    IsBlocked bool
}

// Principal returns the token snapshot of u.
func (u User) Principal() Principal {
    return Principal{
        UserID:    u.ID,
        Role:      u.Role,
        GroupID:   u.GroupID,
        IsBlocked: u.IsBlocked,
    }
}

// UserUpdate carries the optional columns of a partial user update.  Nil
// fields are left untouched.
type UserUpdate struct {
    Username    *string
    Email       *string
    PhoneNumber *string
    Name        *string
    Surname     *string
    Image       *string
    IsBlocked   *bool
    Role        *Role
    GroupID     *string
}

// Empty reports whether the update changes nothing.
func (u UserUpdate) Empty() bool {
    return u.Username == nil && u.Email == nil && u.PhoneNumber == nil &&
        u.Name == nil && u.Surname == nil && u.Image == nil &&
        u.IsBlocked == nil && u.Role == nil && u.GroupID == nil
}

// UserFilter describes a paged user listing.
type UserFilter struct {
    Page         int
    Limit        int
    FilterByName string
    SortBy       string
    Descending   bool
    GroupID      string // restricts the listing to one group when set
}
