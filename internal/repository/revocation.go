package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore records tokens that may no longer be redeemed.  Entries
// only need to live as long as the token itself; implementations drop them
// after ttl.
type RevocationStore interface {
	// IsRevoked reports whether token has been recorded.
	IsRevoked(ctx context.Context, token string) (bool, error)
	// Revoke records token.  Revoking twice is not an error.
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	// RevokeIfAbsent records token only if it is not recorded yet and
	// reports whether this call did so.  Among concurrent callers presenting
	// the same token exactly one gets true.
	RevokeIfAbsent(ctx context.Context, token string, ttl time.Duration) (bool, error)
}

// Revocation backends accepted by NewRevocationStore.
const (
	BackendRedis  = "redis"
	BackendMySQL  = "mysql"
	BackendMemory = "memory"
)

// NewRevocationStore selects a backend by name.  A backend whose client is
// missing is an error; only an explicit memory backend keeps revocations in
// process.
func NewRevocationStore(backend string, rdb redis.UniversalClient, db *sql.DB, prefix string) (RevocationStore, error) {
	switch backend {
	case BackendRedis, "":
		if rdb == nil {
			return nil, fmt.Errorf("revocation backend %q needs a redis client", BackendRedis)
		}
		return NewRedisRevocationStore(rdb, prefix), nil
	case BackendMySQL:
		if db == nil {
			return nil, fmt.Errorf("revocation backend %q needs a database", backend)
		}
		return NewSQLRevocationStore(db), nil
	case BackendMemory:
		return NewMemoryRevocationStore(), nil
	}
	return nil, fmt.Errorf("unknown revocation backend %q", backend)
}

// errNoLifetime is returned when a token is recorded with nothing left of
// its lifetime; such a token is already unusable.
var errNoLifetime = errors.New("revocation ttl must be positive")
