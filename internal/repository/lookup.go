package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/iliyamo/user-management/internal/model"
)

// LookupKind names the identifier a user is looked up by.
type LookupKind int

const (
	ByUsername LookupKind = iota
	ByEmail
	ByPhone
	ByID
)

func (k LookupKind) String() string {
	switch k {
	case ByUsername:
		return "username"
	case ByEmail:
		return "email"
	case ByPhone:
		return "phone"
	case ByID:
		return "id"
	}
	return fmt.Sprintf("LookupKind(%d)", int(k))
}

// column returns the users column matching k.  Only these four values ever
// reach SQL text.
func (k LookupKind) column() (string, bool) {
	switch k {
	case ByUsername:
		return "username", true
	case ByEmail:
		return "email", true
	case ByPhone:
		return "phone_number", true
	case ByID:
		return "id", true
	}
	return "", false
}

// Lookup identifies one user by a single identifier.
type Lookup struct {
	Kind  LookupKind
	Value string
}

// normalized trims the value and lower-cases emails the way they are stored.
func (l Lookup) normalized() Lookup {
	l.Value = strings.TrimSpace(l.Value)
	if l.Kind == ByEmail {
		l.Value = strings.ToLower(l.Value)
	}
	return l
}

// UserStore resolves a Lookup to a user.  Implementations return
// model.ErrNotFound when nothing matches.
type UserStore interface {
	FindUser(ctx context.Context, l Lookup) (model.User, error)
}
