package identity

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/fixoo-edu/fixoo_api/internal/apperr"
	"github.com/fixoo-edu/fixoo_api/internal/verification"
)

// Handler exposes registration and password reset endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"fullName"`
	DeviceName string `json:"deviceName"`
	Role       Role   `json:"role"`
}

type resetPasswordRequest struct {
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	NewPassword string `json:"newPassword"`
	OTP         string `json:"otp"`
}

func pick(c verification.Channel, phone, email string) string {
	if c == verification.ChannelEmail {
		return email
	}
	return phone
}

// RegisterPhone handles POST /auth/register/phone.
func (h *Handler) RegisterPhone(c *fiber.Ctx) error { return h.register(c, verification.ChannelPhone) }

// RegisterEmail handles POST /auth/register/email.
func (h *Handler) RegisterEmail(c *fiber.Ctx) error { return h.register(c, verification.ChannelEmail) }

// ResetPasswordPhone handles POST /auth/resetPassword/phone.
func (h *Handler) ResetPasswordPhone(c *fiber.Ctx) error {
	return h.resetPassword(c, verification.ChannelPhone)
}

// ResetPasswordEmail handles POST /auth/resetPassword/email.
func (h *Handler) ResetPasswordEmail(c *fiber.Ctx) error {
	return h.resetPassword(c, verification.ChannelEmail)
}

func (h *Handler) register(c *fiber.Ctx, channel verification.Channel) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation(err.Error())
	}
	user, err := h.service.Register(c.UserContext(), Registration{
		Channel:    channel,
		Identifier: pick(channel, req.Phone, req.Email),
		Password:   req.Password,
		FullName:   req.FullName,
		DeviceName: req.DeviceName,
		Role:       req.Role,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "User successfully registered. Go to login to use website",
		"user":    user.Profile(),
	})
}

func (h *Handler) resetPassword(c *fiber.Ctx, channel verification.Channel) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation(err.Error())
	}
	password := req.NewPassword
	if password == "" {
		password = req.Password
	}
	if err := h.service.ResetPassword(c.UserContext(), channel, pick(channel, req.Phone, req.Email), password); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Password successfully reset"})
}
