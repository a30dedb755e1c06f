package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fixoo-edu/fixoo_api/internal/auth"
	"github.com/fixoo-edu/fixoo_api/internal/identity"
	"github.com/fixoo-edu/fixoo_api/internal/verification"
)

// RegisterAuthRoutes wires registration, login, refresh and password reset.
func RegisterAuthRoutes(r fiber.Router, ids *identity.Handler, h *auth.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/register/phone", ids.RegisterPhone)
	group.Post("/register/email", ids.RegisterEmail)
	if rateLimiter != nil {
		group.Post("/login/phone", rateLimiter, h.LoginPhone)
		group.Post("/login/email", rateLimiter, h.LoginEmail)
	} else {
		group.Post("/login/phone", h.LoginPhone)
		group.Post("/login/email", h.LoginEmail)
	}
	group.Post("/refreshToken", h.Refresh)
	group.Post("/resetPassword/phone", ids.ResetPasswordPhone)
	group.Post("/resetPassword/email", ids.ResetPasswordEmail)
}

// RegisterVerificationRoutes wires OTP send and verify for both channels.
func RegisterVerificationRoutes(r fiber.Router, h *verification.Handler, sendLimiter fiber.Handler) {
	group := r.Group("/verification")
	send := []fiber.Handler{}
	if sendLimiter != nil {
		send = append(send, sendLimiter)
	}
	group.Post("/phone/send", append(send, h.SendPhone)...)
	group.Post("/email/send", append(send, h.SendEmail)...)
	group.Post("/phone/verify", h.VerifyPhone)
	group.Post("/email/verify", h.VerifyEmail)
}
