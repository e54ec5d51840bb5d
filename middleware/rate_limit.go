package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SubmissionRateLimiter caps report submissions per client IP within window.
// A nil client disables the limit; redis errors let the request through.
func SubmissionRateLimiter(client *redis.Client, limit int, window time.Duration, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || limit <= 0 {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := "ratelimit:reports:" + c.ClientIP()

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			log.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		// Set TTL only on the first increment of the window.
		if count == 1 {
			if err := client.Expire(ctx, key, window).Err(); err != nil {
				log.Warn("rate limiter ttl failed", zap.String("key", key), zap.Error(err))
			}
		}

		if count > int64(limit) {
			retryAfter, _ := client.TTL(ctx, key).Result()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"error":       "rate limit exceeded",
				"retry_after": retryAfter.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
