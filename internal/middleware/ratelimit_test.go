package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/user-management/internal/config"
	"github.com/iliyamo/user-management/internal/logging"
)

func limitConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
}

func limitedServer(mw echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.POST("/v1/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, mw)
	return e
}

func hit(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	req.RemoteAddr = ip + ":40000"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func assertLimited(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	secs, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, secs, 1)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestTokenBucket_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	e := limitedServer(NewTokenBucket(limitConfig(), rdb, logging.Nop()))

	first := hit(e, "10.0.0.1")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusOK, hit(e, "10.0.0.1").Code)
	assertLimited(t, hit(e, "10.0.0.1"))

	// buckets are per client address
	assert.Equal(t, http.StatusOK, hit(e, "10.0.0.2").Code)
	assert.True(t, mr.Exists("rl:ip:10.0.0.1"))
}

func TestTokenBucket_LocalWithoutRedis(t *testing.T) {
	e := limitedServer(NewTokenBucket(limitConfig(), nil, logging.Nop()))

	assert.Equal(t, http.StatusOK, hit(e, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, hit(e, "10.0.0.1").Code)
	assertLimited(t, hit(e, "10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit(e, "10.0.0.2").Code)
}

func TestTokenBucket_FallsBackWhenRedisFails(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	e := limitedServer(NewTokenBucket(limitConfig(), rdb, logging.Nop()))
	mr.Close()

	assert.Equal(t, http.StatusOK, hit(e, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, hit(e, "10.0.0.1").Code)
	assertLimited(t, hit(e, "10.0.0.1"))
}

func TestTokenBucket_Disabled(t *testing.T) {
	cfg := limitConfig()
	cfg.Enabled = false
	e := limitedServer(NewTokenBucket(cfg, nil, logging.Nop()))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, hit(e, "10.0.0.1").Code)
	}
}

func TestLocalBucket_Refills(t *testing.T) {
	b := newLocalBucket(limitConfig())
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	assert.True(t, b.take("k").allowed)
	assert.True(t, b.take("k").allowed)
	d := b.take("k")
	assert.False(t, d.allowed)
	assert.InDelta(t, time.Minute.Seconds(), d.retryAfter.Seconds(), 1)

	now = now.Add(time.Minute)
	assert.True(t, b.take("k").allowed)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/auth/login")

	cfg := limitConfig()
	cfg.KeyStrategy = "ip_route"
	assert.Equal(t, "rl:ip:10.1.2.3:route:POST /v1/auth/login", buildRateKey(cfg, c))
	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:anon", buildRateKey(cfg, c))
}
