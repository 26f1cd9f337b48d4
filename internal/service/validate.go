package service

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iliyamo/user-management/internal/model"
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	phoneRe    = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
)

const (
	minPasswordLen = 8
	maxNameLen     = 15
	maxUsernameLen = 32
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{model.ErrInvalidInput}, args...)...)
}

// ValidatePassword requires at least 8 characters with a letter and a digit.
func ValidatePassword(pw string) error {
	if utf8.RuneCountInString(pw) < minPasswordLen {
		return invalid("password must be at least %d characters", minPasswordLen)
	}
	var letter, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return invalid("password must contain a letter and a digit")
	}
	return nil
}

func validateUsername(s string) error {
	if s == "" || len(s) > maxUsernameLen || !usernameRe.MatchString(s) {
		return invalid("username must be 1-%d letters, digits or underscores", maxUsernameLen)
	}
	return nil
}

func validateEmail(s string) error {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return invalid("email is not a valid address")
	}
	return nil
}

func validatePhone(s string) error {
	if !phoneRe.MatchString(s) {
		return invalid("phone_number must be in international format")
	}
	return nil
}

// validateName checks an optional display name; empty clears it.
func validateName(field, s string) error {
	if utf8.RuneCountInString(s) > maxNameLen {
		return invalid("%s must be at most %d characters", field, maxNameLen)
	}
	return nil
}

func validateGroupName(s string) error {
	if n := utf8.RuneCountInString(strings.TrimSpace(s)); n == 0 || n > maxNameLen {
		return invalid("group name must be 1-%d characters", maxNameLen)
	}
	return nil
}

// validateUpdate checks every field present in upd.
func validateUpdate(upd model.UserUpdate) error {
	if upd.Username != nil {
		if err := validateUsername(strings.TrimSpace(*upd.Username)); err != nil {
			return err
		}
	}
	if upd.Email != nil {
		if err := validateEmail(strings.ToLower(strings.TrimSpace(*upd.Email))); err != nil {
			return err
		}
	}
	if upd.PhoneNumber != nil {
		if err := validatePhone(*upd.PhoneNumber); err != nil {
			return err
		}
	}
	if upd.Name != nil {
		if err := validateName("name", *upd.Name); err != nil {
			return err
		}
	}
	if upd.Surname != nil {
		if err := validateName("surname", *upd.Surname); err != nil {
			return err
		}
	}
	if upd.Role != nil && !upd.Role.Valid() {
		return invalid("unknown role %q", string(*upd.Role))
	}
	return nil
}
