package ratelimit

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/reef-research/backend/internal/metrics"
	"github.com/reef-research/backend/pkg/logger"
)

// Identifier derives the limit bucket key for a request: the authenticated
// user id when present, the client IP otherwise.
func Identifier(c *fiber.Ctx) string {
	if userID := c.Get("X-User-ID"); userID != "" {
		return userID
	}

	var body struct {
		UserID string `json:"user_id"`
	}
	if err := c.BodyParser(&body); err == nil && body.UserID != "" {
		return body.UserID
	}

	return c.IP()
}

// Middleware enforces lim for the named route. Every response carries the
// X-RateLimit-* headers; rejections additionally carry Retry-After.
func Middleware(route string, lim Limit, store Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := Identifier(c)

		res, err := store.Take(c.Context(), identifier, route, lim)
		if err != nil {
			// A broken limiter store should not take the API down.
			logger.Warn("Rate limit check failed, allowing request",
				zap.String("route", route),
				zap.Error(err),
			)
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			metrics.RateLimitRejections.WithLabelValues(route).Inc()

			retryAfter := res.RetryAfter(time.Now())
			c.Set("Retry-After", strconv.Itoa(retryAfter))

			logger.Warn("Rate limit exceeded",
				zap.String("route", route),
				zap.String("identifier", identifier),
				zap.Int("retry_after_sec", retryAfter),
			)

			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Rate limit exceeded. Please try again later.",
				"retry_after": retryAfter,
			})
		}

		return c.Next()
	}
}
