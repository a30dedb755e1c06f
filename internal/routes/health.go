package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fixoo-edu/fixoo_api/internal/notification"
)

// RegisterHealthRoutes adds liveness/readiness style endpoints. Provider
// breakers are reported but an open one does not fail the check.
func RegisterHealthRoutes(app *fiber.App, d Deps, breakers map[string]*notification.Guard) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		dbStatus := "ok"
		redisStatus := "ok"

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if d.DB != nil {
			if err := d.DB.Ping(ctx); err != nil {
				dbStatus = err.Error()
			}
		} else {
			dbStatus = "memory"
		}
		if err := d.Cache.Ping(ctx).Err(); err != nil {
			redisStatus = err.Error()
		}

		notify := fiber.Map{}
		for name, g := range breakers {
			notify[name] = g.State()
		}

		status := http.StatusOK
		if (dbStatus != "ok" && dbStatus != "memory") || redisStatus != "ok" {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    fiber.Map{"postgres": dbStatus, "redis": redisStatus, "notifications": notify},
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
