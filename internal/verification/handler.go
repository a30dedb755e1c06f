package verification

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/fixoo-edu/fixoo_api/internal/apperr"
)

// Handler exposes the send/verify endpoints for both channels.
type Handler struct {
	service *Service
}

// NewHandler constructs a verification HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// otpRequest accepts "purpose" and, for older clients, "type".
type otpRequest struct {
	Purpose Purpose `json:"purpose"`
	Type    Purpose `json:"type"`
	Phone   string  `json:"phone"`
	Email   string  `json:"email"`
	OTP     string  `json:"otp"`
}

func (r otpRequest) toRequest(c Channel) Request {
	purpose := r.Purpose
	if purpose == "" {
		purpose = r.Type
	}
	identifier := r.Phone
	if c == ChannelEmail {
		identifier = r.Email
	}
	return Request{Purpose: purpose, Channel: c, Identifier: identifier}
}

// SendPhone handles POST /verification/phone/send.
func (h *Handler) SendPhone(c *fiber.Ctx) error { return h.send(c, ChannelPhone) }

// SendEmail handles POST /verification/email/send.
func (h *Handler) SendEmail(c *fiber.Ctx) error { return h.send(c, ChannelEmail) }

// VerifyPhone handles POST /verification/phone/verify.
func (h *Handler) VerifyPhone(c *fiber.Ctx) error { return h.verify(c, ChannelPhone) }

// VerifyEmail handles POST /verification/email/verify.
func (h *Handler) VerifyEmail(c *fiber.Ctx) error { return h.verify(c, ChannelEmail) }

func (h *Handler) send(c *fiber.Ctx, channel Channel) error {
	var req otpRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation(err.Error())
	}
	if err := h.service.Send(c.UserContext(), req.toRequest(channel)); err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"message": "Confirmation OTP code send"})
}

func (h *Handler) verify(c *fiber.Ctx, channel Channel) error {
	var req otpRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation(err.Error())
	}
	if req.OTP == "" {
		return apperr.Validation("otp is required")
	}
	if err := h.service.Verify(c.UserContext(), req.toRequest(channel), req.OTP); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "OTP verified successfully", "verified": true})
}
