package repository

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/user-management/internal/utils"
)

// MemoryRevocationStore is a process-local RevocationStore for tests and
// single-instance deployments.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	entries map[string]time.Time // token hash -> expiry
	purgeAt int
	now     func() time.Time
}

const memoryPurgeThreshold = 1024

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{entries: make(map[string]time.Time), purgeAt: memoryPurgeThreshold, now: time.Now}
}

// live reports whether key is recorded and unexpired.  Expired entries are
// dropped.  Callers hold mu.
func (s *MemoryRevocationStore) live(key string, now time.Time) bool {
	exp, ok := s.entries[key]
	if !ok {
		return false
	}
	if !now.Before(exp) {
		delete(s.entries, key)
		return false
	}
	return true
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(utils.HashToken(token), s.now()), nil
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return errNoLifetime
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.entries[utils.HashToken(token)] = now.Add(ttl)
	s.maybePurge(now)
	return nil
}

func (s *MemoryRevocationStore) RevokeIfAbsent(_ context.Context, token string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errNoLifetime
	}
	key := utils.HashToken(token)
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if s.live(key, now) {
		return false, nil
	}
	s.entries[key] = now.Add(ttl)
	s.maybePurge(now)
	return true, nil
}

// maybePurge sweeps expired entries once the map has grown past purgeAt.
func (s *MemoryRevocationStore) maybePurge(now time.Time) {
	if len(s.entries) < s.purgeAt {
		return
	}
	for k, exp := range s.entries {
		if !now.Before(exp) {
			delete(s.entries, k)
		}
	}
	s.purgeAt = max(2*len(s.entries), memoryPurgeThreshold)
}
