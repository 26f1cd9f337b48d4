package middleware

import (
    "context"
    "fmt"
    "math"
    "net/http"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "golang.org/x/time/rate"

    "github.com/iliyamo/user-management/internal/config"
    "github.com/iliyamo/user-management/internal/logging"
)

// tokenBucketScript refills KEYS[1] by whole intervals and takes one token.
// It returns {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local capacity = tonumber(ARGV[2])
    local refill_tokens = tonumber(ARGV[3])
    local interval_ms = tonumber(ARGV[4])
    local ttl_seconds = tonumber(ARGV[5])

    local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
    local tokens = tonumber(state[1])
    local last_refill = tonumber(state[2])

    if tokens == nil or last_refill == nil then
        tokens = capacity
        last_refill = now_ms
    end

    if interval_ms > 0 and refill_tokens > 0 then
        local elapsed = math.max(0, now_ms - last_refill)
        local intervals = math.floor(elapsed / interval_ms)
        if intervals > 0 then
            tokens = math.min(capacity, tokens + (intervals * refill_tokens))
            last_refill = last_refill + (intervals * interval_ms)
        end
    end

    local allowed = 0
    local retry_after_ms = 0
    if tokens > 0 then
        allowed = 1
        tokens = tokens - 1
    else
        local until_next = interval_ms - (now_ms - last_refill)
        if until_next < 0 then until_next = 0 end
        retry_after_ms = until_next
    end

    redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
    redis.call('EXPIRE', key, ttl_seconds)

    return { allowed, tokens, retry_after_ms }
`)

type rateDecision struct {
    allowed    bool
    remaining  int64
    retryAfter time.Duration
}

// redisBucket is the shared limiter used when Redis is reachable.
type redisBucket struct {
    rdb *redis.Client
    cfg config.RateLimitConfig
    now func() time.Time
}

func (b *redisBucket) take(ctx context.Context, key string) (rateDecision, error) {
    vals, err := tokenBucketScript.Run(ctx, b.rdb, []string{key},
        b.now().UnixMilli(),
        b.cfg.Capacity,
        b.cfg.RefillTokens,
        b.cfg.RefillInterval.Milliseconds(),
        int64(b.cfg.TTL/time.Second),
    ).Result()
    if err != nil {
        return rateDecision{}, err
    }
    arr, ok := vals.([]interface{})
    if !ok || len(arr) != 3 {
        return rateDecision{}, fmt.Errorf("unexpected script result %#v", vals)
    }
    return rateDecision{
        allowed:    asInt64(arr[0]) == 1,
        remaining:  asInt64(arr[1]),
        retryAfter: time.Duration(asInt64(arr[2])) * time.Millisecond,
    }, nil
}

// localBucket is the per-process fallback built on x/time/rate.  It keeps one
// limiter per key and forgets keys idle for longer than cfg.TTL.
type localBucket struct {
    mu      sync.Mutex
    entries map[string]*localEntry
    limit   rate.Limit
    burst   int
    ttl     time.Duration
    sweepAt int
    now     func() time.Time
}

type localEntry struct {
    lim  *rate.Limiter
    seen time.Time
}

const localSweepThreshold = 4096

func newLocalBucket(cfg config.RateLimitConfig) *localBucket {
    return &localBucket{
        entries: make(map[string]*localEntry),
        limit:   rate.Every(cfg.RefillInterval / time.Duration(cfg.RefillTokens)),
        burst:   cfg.Capacity,
        ttl:     cfg.TTL,
        sweepAt: localSweepThreshold,
        now:     time.Now,
    }
}

func (b *localBucket) take(key string) rateDecision {
    b.mu.Lock()
    defer b.mu.Unlock()
    now := b.now()
    e, ok := b.entries[key]
    if !ok {
        e = &localEntry{lim: rate.NewLimiter(b.limit, b.burst)}
        b.entries[key] = e
        b.sweep(now)
    }
    e.seen = now

    d := rateDecision{allowed: e.lim.AllowN(now, 1)}
    if !d.allowed {
        r := e.lim.ReserveN(now, 1)
        d.retryAfter = r.DelayFrom(now)
        r.CancelAt(now)
    }
    d.remaining = int64(math.Max(0, math.Floor(e.lim.TokensAt(now))))
    return d
}

// sweep drops idle limiters once the map outgrows sweepAt.  Callers hold mu.
func (b *localBucket) sweep(now time.Time) {
    if len(b.entries) < b.sweepAt {
        return
    }
    for k, e := range b.entries {
        if now.Sub(e.seen) > b.ttl {
            delete(b.entries, k)
        }
    }
    b.sweepAt = max(2*len(b.entries), localSweepThreshold)
}

// NewTokenBucket limits requests per key (see buildRateKey).  Buckets live in
// Redis so that all instances share them; when rdb is nil or a Redis call
// fails the request is counted by an in-process limiter instead.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log logging.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    local := newLocalBucket(cfg)
    var remote *redisBucket
    if rdb != nil {
        remote = &redisBucket{rdb: rdb, cfg: cfg, now: time.Now}
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(cfg, c)
            ctx := c.Request().Context()

            var (
                d   rateDecision
                err error
            )
            if remote != nil {
                d, err = remote.take(ctx, key)
                if err != nil {
                    log.Warn(ctx, "rate limit redis error, using local limiter", "key", key, "error", err)
                }
            }
            if remote == nil || err != nil {
                d = local.take(key)
            }

            c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))

            if !d.allowed {
                secs := int(math.Ceil(d.retryAfter.Seconds()))
                if secs < 1 {
                    secs = 1
                }
                c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
                if cfg.Debug {
                    log.Debug(ctx, "rate limited", "key", key, "retry_after", secs)
                }
                return c.JSON(http.StatusTooManyRequests, echo.Map{
                    "error":       "too_many_requests",
                    "message":     "rate limit exceeded",
                    "retry_after": secs,
                })
            }
            if cfg.Debug {
                c.Response().Header().Set("X-RateLimit-Key", key)
            }
            return next(c)
        }
    }
}

func asInt64(v interface{}) int64 {
    switch t := v.(type) {
    case int64:
        return t
    case int:
        return int64(t)
    case float64:
        return int64(t)
    case string:
        if n, err := strconv.ParseInt(t, 10, 64); err == nil {
            return n
        }
    }
    return 0
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    parts := []string{cfg.Prefix}
    ip := clientIP(c)
    uid := userID(c)
    route := c.Request().Method + " " + c.Path()

    switch strings.ToLower(cfg.KeyStrategy) {
    case "ip":
        parts = append(parts, "ip", ip)
    case "user":
        parts = append(parts, "user", uid)
    case "route":
        parts = append(parts, "route", route)
    case "ip_user":
        parts = append(parts, "ip", ip, "user", uid)
    case "ip_route":
        parts = append(parts, "ip", ip, "route", route)
    case "user_route":
        parts = append(parts, "user", uid, "route", route)
    default:
        parts = append(parts, "ip", ip, "user", uid, "route", route)
    }
    return strings.Join(parts, ":")
}
