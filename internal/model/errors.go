package model

import (
    "errors"
    "fmt"
)

// Failure kinds shared by the auth core, the repositories and the handlers.
// Callers match them with errors.Is; handlers map them to HTTP statuses.
var (
    // ErrInvalidToken covers malformed, wrongly signed and expired tokens
    // alike so that callers cannot tell which check failed.
    ErrInvalidToken = errors.New("invalid token")
    // ErrUnauthorized means the presented credential was wrong.
    ErrUnauthorized = errors.New("unauthorized")
    // ErrForbidden means the caller is known but not allowed.
    ErrForbidden = errors.New("forbidden")
    // ErrNotFound means no matching record exists.
    ErrNotFound = errors.New("not found")

    ErrConflict     = errors.New("conflict")
    ErrInvalidInput = errors.New("invalid input")
)

// ErrTokenRevoked is returned when an already consumed refresh or reset token
// is presented again.  It is a Forbidden failure.
var ErrTokenRevoked = fmt.Errorf("%w: token already used", ErrForbidden)
