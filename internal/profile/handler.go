package profile

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/fixoo-edu/fixoo_api/internal/apperr"
	"github.com/fixoo-edu/fixoo_api/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type updateProfileRequest struct {
	FullName string `json:"fullName"`
}

type updateIdentifierRequest struct {
	Phone string `json:"phone"`
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type updatePasswordRequest struct {
	Password    string `json:"password"`
	NewPassword string `json:"newPassword"`
}

// Get handles GET /profile.
func (h *Handler) Get(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	user, err := h.service.Get(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(user.Profile())
}

// Update handles PATCH /profile.
func (h *Handler) Update(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation(err.Error())
	}
	user, err := h.service.UpdateFullName(c.UserContext(), userID, req.FullName)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Profile updated successfully", "user": user.Profile()})
}

// UpdatePhone handles PATCH /profile/phone.
func (h *Handler) UpdatePhone(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	var req updateIdentifierRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation(err.Error())
	}
	if _, err := h.service.UpdatePhone(c.UserContext(), userID, req.Phone); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Phone number updated successfully"})
}

// UpdateEmail handles PATCH /profile/email.
func (h *Handler) UpdateEmail(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	var req updateIdentifierRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation(err.Error())
	}
	if _, err := h.service.UpdateEmail(c.UserContext(), userID, req.Email); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Email updated successfully"})
}

// UpdatePassword handles PATCH /profile/password.
func (h *Handler) UpdatePassword(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}
	var req updatePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation(err.Error())
	}
	if err := h.service.UpdatePassword(c.UserContext(), userID, req.Password, req.NewPassword); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Password updated successfully"})
}
