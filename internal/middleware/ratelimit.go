package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/edulink/edulink-backend/internal/database"
	"github.com/edulink/edulink-backend/pkg/clientip"
)

const (
	// RateLimitWindow is the counting window per IP
	RateLimitWindow = 120 * time.Second
	// RateLimitMaxRequests is the maximum number of requests allowed in the window
	RateLimitMaxRequests = 120
	// RateLimitKeyPrefix is the Redis key prefix for rate limiting
	RateLimitKeyPrefix = "ratelimit:"
)

// RateLimitMiddleware provides a Redis-windowed global per-IP rate limit.
// Fails open when Redis is unavailable.
func RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ipAddress := clientip.RealClientIP(r)

		ctx := context.Background()
		rateLimitKey := RateLimitKeyPrefix + ipAddress

		count, err := database.RedisClient.Incr(ctx, rateLimitKey).Result()
		if err != nil {
			// If Redis fails, allow the request (fail open)
			next.ServeHTTP(w, r)
			return
		}
		if count == 1 {
			database.RedisClient.Expire(ctx, rateLimitKey, RateLimitWindow)
		}

		if count > RateLimitMaxRequests {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"success":false,"message":"Too many requests. Please try again later."}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
