package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/user-management/internal/utils"
)

// RedisRevocationStore keeps one key per revoked token, named
// <prefix>:<sha256(token)>, expiring with the token.
type RedisRevocationStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisRevocationStore(rdb redis.UniversalClient, prefix string) *RedisRevocationStore {
	if prefix == "" {
		prefix = "revoked"
	}
	return &RedisRevocationStore{rdb: rdb, prefix: prefix}
}

func (s *RedisRevocationStore) key(token string) string {
	return s.prefix + ":" + utils.HashToken(token)
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key(token)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return errNoLifetime
	}
	return s.rdb.Set(ctx, s.key(token), 1, ttl).Err()
}

// RevokeIfAbsent issues SET key 1 NX PX ttl, so the check and the write are
// one server-side step.
func (s *RedisRevocationStore) RevokeIfAbsent(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errNoLifetime
	}
	return s.rdb.SetNX(ctx, s.key(token), 1, ttl).Result()
}
