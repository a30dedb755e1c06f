package middleware

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fixoo-edu/fixoo_api/internal/apperr"
	"github.com/fixoo-edu/fixoo_api/internal/kv"
)

// RateLimit caps requests per minute for one scope, keyed on the phone or
// email in the JSON body and falling back to the client IP. It fails open
// when the store is unreachable.
func RateLimit(cache *kv.Store, scope string, maxPerMin int, message string, logger *slog.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		var req struct {
			Phone string `json:"phone"`
			Email string `json:"email"`
		}
		_ = c.BodyParser(&req)
		subject := strings.TrimSpace(req.Phone)
		if subject == "" {
			subject = strings.ToLower(strings.TrimSpace(req.Email))
		}
		if subject == "" {
			subject = c.IP()
		}

		count, err := cache.Incr(c.UserContext(), "rl:"+scope+":"+subject, time.Minute)
		if err != nil {
			logger.Warn("rate limit lookup failed", slog.String("scope", scope), slog.Any("error", err))
			return c.Next()
		}
		if count > int64(maxPerMin) {
			return apperr.New(apperr.ErrTooManyAttempts, message)
		}
		return c.Next()
	}
}
