package device

import (
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/fixoo-edu/fixoo_api/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetAll handles GET /device.
func (h *Handler) GetAll(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	devices, err := h.service.List(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"devices": devices, "count": len(devices)})
}

// Delete handles DELETE /device/:deviceToken.
func (h *Handler) Delete(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	// Device names are free text ("iPhone 13"), so the segment arrives escaped.
	device, err := url.PathUnescape(c.Params("deviceToken"))
	if err != nil {
		device = c.Params("deviceToken")
	}
	remaining, err := h.service.Remove(c.UserContext(), userID, device)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message":          "Device deleted successfully",
		"remainingDevices": len(remaining),
	})
}
