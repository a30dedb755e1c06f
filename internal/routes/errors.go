package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/fixoo-edu/fixoo_api/internal/apperr"
)

// ErrorHandler renders every handler error as
// {"statusCode", "message", "error"}. Errors without a known kind are logged
// and reported as a generic 500.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := apperr.Status(err)
		message := apperr.Message(err)

		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
			message = fe.Message
		}
		if status >= http.StatusInternalServerError && fe == nil {
			logger.Error("unhandled error",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.Any("error", err),
			)
		}

		return c.Status(status).JSON(fiber.Map{
			"statusCode": status,
			"message":    message,
			"error":      http.StatusText(status),
		})
	}
}
