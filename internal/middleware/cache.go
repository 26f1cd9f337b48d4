package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/user-management/internal/config"
    "github.com/iliyamo/user-management/internal/logging"
)

// bodyRecorder tees the response to the client and keeps up to limit bytes
// of it for the cache.
type bodyRecorder struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    size   int64
    limit  int64
}

func (br *bodyRecorder) WriteHeader(code int) {
    br.status = code
    br.ResponseWriter.WriteHeader(code)
}

func (br *bodyRecorder) Write(b []byte) (int, error) {
    if room := br.limit - br.size; room > 0 {
        br.buf.Write(b[:min(int64(len(b)), room)])
    }
    br.size += int64(len(b))
    return br.ResponseWriter.Write(b)
}

// overflowed reports whether more than limit bytes were written.
func (br *bodyRecorder) overflowed(limit int64) bool { return br.size > limit }

// cacheKey identifies a cached response by method, concrete path and query.
// The cached routes are admin-only, so the caller is not part of the key.
func cacheKey(prefix, method, path, query string) string {
    sum := sha1.Sum([]byte(method + " " + path + "?" + query))
    return fmt.Sprintf("%s:%x", prefix, sum[:])
}

// cachedResponse is the stored form of a response.
type cachedResponse struct {
    Status int         `json:"status"`
    Header http.Header `json:"header"`
    Body   []byte      `json:"body"`
}

func (cr cachedResponse) replay(w *echo.Response) {
    for k, vals := range cr.Header {
        if strings.EqualFold(k, echo.HeaderContentLength) {
            continue
        }
        for _, v := range vals {
            w.Header().Add(k, v)
        }
    }
    w.Header().Set("X-Cache", "HIT")
    w.WriteHeader(cr.Status)
    _, _ = w.Write(cr.Body)
}

// NewRedisCache caches successful responses of cfg.Methods in Redis, headers
// included.  A successful request with any other method (PUT, PATCH, DELETE)
// evicts the cached GET of the same path.  Responses larger than
// cfg.MaxBodyBytes are served but not cached.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, log logging.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 30 * time.Second
    }
    maxBody := int64(cfg.MaxBodyBytes)
    if maxBody <= 0 {
        maxBody = 1 << 20
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            r := c.Request()
            ctx := r.Context()
            method := strings.ToUpper(r.Method)

            if !cfg.Methods[method] {
                if err := next(c); err != nil {
                    return err
                }
                if s := c.Response().Status; s >= 200 && s < 300 {
                    if err := rdb.Del(ctx, cacheKey(cfg.Prefix, http.MethodGet, r.URL.Path, "")).Err(); err != nil {
                        log.Warn(ctx, "cache eviction failed", "path", r.URL.Path, "error", err)
                    }
                }
                return nil
            }

            key := cacheKey(cfg.Prefix, method, r.URL.Path, r.URL.RawQuery)
            if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
                var cr cachedResponse
                if json.Unmarshal(bs, &cr) == nil && cr.Status != 0 {
                    cr.replay(c.Response())
                    return nil
                }
            }

            rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody + 1}
            c.Response().Writer = rec
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }
            if rec.status != http.StatusOK || rec.overflowed(maxBody) {
                return nil
            }

            hdr := c.Response().Header().Clone()
            hdr.Del("X-Cache")
            payload, err := json.Marshal(cachedResponse{Status: rec.status, Header: hdr, Body: rec.buf.Bytes()})
            if err != nil {
                return nil
            }
            if err := rdb.Set(context.WithoutCancel(ctx), key, payload, ttl).Err(); err != nil {
                log.Warn(ctx, "cache store failed", "path", r.URL.Path, "error", err)
            }
            return nil
        }
    }
}
