package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, limit int) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRateLimiter(rdb, limit, time.Minute, discard), mr
}

func hit(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/shops", nil)
	req.RemoteAddr = ip + ":41000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	rl, mr := newLimiter(t, 2)
	h := rl.Middleware(http.HandlerFunc(okHandler))

	assert.Equal(t, http.StatusNoContent, hit(h, "10.0.0.1").Code)
	rec := hit(h, "10.0.0.1")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = hit(h, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Other clients have their own window.
	assert.Equal(t, http.StatusNoContent, hit(h, "10.0.0.2").Code)

	ttl := mr.TTL("ratelimit:10.0.0.1")
	assert.Equal(t, time.Minute, ttl)
}

func TestRateLimiter_WindowExpires(t *testing.T) {
	rl, mr := newLimiter(t, 1)
	h := rl.Middleware(http.HandlerFunc(okHandler))

	require.Equal(t, http.StatusNoContent, hit(h, "10.0.0.1").Code)
	require.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1").Code)

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusNoContent, hit(h, "10.0.0.1").Code)
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	rl, mr := newLimiter(t, 1)
	h := rl.Middleware(http.HandlerFunc(okHandler))
	mr.Close()

	assert.Equal(t, http.StatusNoContent, hit(h, "10.0.0.1").Code)
	assert.Equal(t, http.StatusNoContent, hit(h, "10.0.0.1").Code)
}
