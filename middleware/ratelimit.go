package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go_trial/foodhub/utils"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed window request counter per client IP, kept in
// Redis so every replica shares the window.
type RateLimiter struct {
	rdb    redis.Cmdable
	limit  int64
	window time.Duration
	prefix string
	log    *slog.Logger
}

func NewRateLimiter(rdb redis.Cmdable, limit int, window time.Duration, log *slog.Logger) *RateLimiter {
	if log == nil {
		log = slog.Default()
	}
	return &RateLimiter{rdb: rdb, limit: int64(limit), window: window, prefix: "ratelimit:", log: log}
}

// allow counts one hit and reports whether it is within the limit. Redis
// errors let the request through.
func (rl *RateLimiter) allow(ctx context.Context, client string) (count int64, ok bool) {
	key := rl.prefix + client
	count, err := rl.rdb.Incr(ctx, key).Result()
	if err != nil {
		rl.log.Warn("rate limit counter unavailable", "error", err)
		return 0, true
	}
	if count == 1 {
		if err := rl.rdb.Expire(ctx, key, rl.window).Err(); err != nil {
			rl.log.Warn("rate limit expiry not set", "key", key, "error", err)
		}
	}
	return count, count <= rl.limit
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		count, ok := rl.allow(ctx, utils.ClientIP(r))
		cancel()

		remaining := rl.limit - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(rl.limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			deny(w, http.StatusTooManyRequests, "Too many requests from this IP, please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
