package config // package config loads application configuration from environment variables

import (
    "log"
    "os"
    "time"

    "github.com/joho/godotenv"
)

// Config holds all runtime configuration.  It is built once in main and
// passed to the components that need it; nothing reads the environment
// after startup.
type Config struct {
    Env  string // application environment (e.g. "dev", "prod")
    Port string // HTTP port to listen on

    DBUser string
    DBPass string // empty allowed
    DBHost string
    DBPort string
    DBName string

    JWTSecret        string
    JWTAlgorithm     string        // HS256, HS384 or HS512
    AccessTTL        time.Duration // access token lifetime
    RefreshTTL       time.Duration // refresh token lifetime
    PasswordResetTTL time.Duration // reset token lifetime
    ResetLinkBase    string        // prefix of the link mailed to users, token is appended
    BcryptCost       int

    RevocationBackend string // redis, mysql or memory
    RevocationPrefix  string

    LogLevel  string
    LogFormat string // json or text

    Redis     RedisConfig
    RabbitMQ  RabbitMQConfig
    S3        S3Config
    RateLimit RateLimitConfig
    Cache     CacheConfig
}

// Load reads the optional .env file and then the environment.  Required
// variables are enforced by must(); a missing one stops the process.
func Load() Config {
    if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
        log.Printf("config: .env not loaded: %v", err)
    }
    return Config{
        Env:    must("APP_ENV"),
        Port:   must("APP_PORT"),
        DBUser: must("DB_USER"),
        DBPass: os.Getenv("DB_PASS"),
        DBHost: must("DB_HOST"),
        DBPort: must("DB_PORT"),
        DBName: must("DB_NAME"),

        JWTSecret:        must("JWT_SECRET"),
        JWTAlgorithm:     envStr("JWT_ALGORITHM", "HS256"),
        AccessTTL:        envDur("ACCESS_TOKEN_TTL", 15*time.Minute),
        RefreshTTL:       envDur("REFRESH_TOKEN_TTL", 7*24*time.Hour),
        PasswordResetTTL: envDur("PASSWORD_RESET_TTL", 15*time.Minute),
        ResetLinkBase:    envStr("RESET_LINK_BASE", "http://localhost:8080/reset-password?token="),
        BcryptCost:       envInt("BCRYPT_COST", 12),

        RevocationBackend: envStr("REVOCATION_BACKEND", "redis"),
        RevocationPrefix:  envStr("REVOCATION_PREFIX", "revoked"),

        LogLevel:  envStr("LOG_LEVEL", "info"),
        LogFormat: envStr("LOG_FORMAT", "json"),

        Redis:     LoadRedisConfig(),
        RabbitMQ:  LoadRabbitMQConfig(),
        S3:        LoadS3Config(),
        RateLimit: LoadRateLimitConfig(),
        Cache:     LoadCacheConfig(),
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

