package middleware

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"autopilot/internal/config"
	"autopilot/internal/services"
)

// TieredRateLimiter enforces per-identity fixed-window limits on Redis.
// Authenticated users get the higher tier; anonymous sessions the lower one;
// requests with no identity yet fall back to the client IP at the anonymous
// tier. Redis being down fails open so the API stays up.
func TieredRateLimiter(rdb *services.RedisService, cfg *config.Config) fiber.Handler {
	window := time.Duration(cfg.RateLimitWindowSeconds) * time.Second

	return func(c *fiber.Ctx) error {
		limit := int64(cfg.RateLimitAnonymous)
		var key string

		if userID, ok := UserIDFromLocals(c); ok {
			limit = int64(cfg.RateLimitAuthenticated)
			key = "ratelimit:user:" + userID
		} else if session, ok := SessionFromLocals(c); ok {
			key = "ratelimit:session:" + session.ID
		} else {
			key = "ratelimit:ip:" + c.IP()
		}

		remaining, exceeded, err := rdb.CheckRateLimit(c.UserContext(), key, limit, window)
		if err != nil {
			log.Printf("⚠️  Rate limit check failed (allowing request): %v", err)
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if exceeded {
			log.Printf("🚫 Rate limit reached for %s on %s", key, c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"code":        "RATE_LIMITED",
				"message":     "Too many requests. Please slow down.",
				"retry_after": int(window.Seconds()),
			})
		}

		return c.Next()
	}
}
