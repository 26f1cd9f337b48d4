package config

import "time"

// CacheConfig controls the Redis response cache in front of admin reads.
// Without a Redis client the cache is a no-op whatever Enabled says.
type CacheConfig struct {
    Enabled      bool
    Methods      map[string]bool // methods whose responses are stored; any other method evicts
    TTL          time.Duration
    Prefix       string
    MaxBodyBytes int // larger responses are served but not stored
}

func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        Methods:      envSet("CACHE_METHODS", "GET"),
        TTL:          envDur("CACHE_TTL", 30*time.Second),
        Prefix:       envStr("CACHE_PREFIX", "cache"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
    }
}
