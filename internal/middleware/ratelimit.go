package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/AnshRaj112/tasknest-backend/internal/metrics"
	"github.com/AnshRaj112/tasknest-backend/internal/webutil"
	"github.com/AnshRaj112/tasknest-backend/pkg/clientip"
	"github.com/redis/go-redis/v9"
)

// AuthRateLimitKeyPrefix is the Redis key prefix for per-IP auth counters.
const AuthRateLimitKeyPrefix = "ratelimit:auth:"

// AuthRateLimit allows limit requests per client IP in each fixed window,
// counted in Redis so the budget is shared across instances. If Redis is
// unavailable the request is let through.
func AuthRateLimit(rdb redis.Cmdable, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := AuthRateLimitKeyPrefix + clientip.RealClientIP(r)

			count, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				rdb.Expire(ctx, key, window)
			}

			ttl, err := rdb.TTL(ctx, key).Result()
			if err != nil || ttl < 0 {
				ttl = window
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))

			if count > int64(limit) {
				metrics.RateLimited.WithLabelValues("auth").Inc()
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", strconv.Itoa(int(ttl.Seconds())))
				webutil.RespondWithError(w, http.StatusTooManyRequests, "Too many attempts. Please try again later.")
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(int64(limit)-count, 10))
			next.ServeHTTP(w, r)
		})
	}
}
