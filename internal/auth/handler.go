package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fixoo-edu/fixoo_api/internal/apperr"
	"github.com/fixoo-edu/fixoo_api/internal/identity"
	"github.com/fixoo-edu/fixoo_api/internal/verification"
)

// RefreshCookie is the cookie login sets and refresh falls back to.
const RefreshCookie = "refreshToken"

// Handler exposes auth endpoints for login and refresh.
type Handler struct {
	ids        *identity.Service
	svc        *Service
	refreshTTL time.Duration
	secure     bool
}

// NewHandler wires login and refresh. secureCookie marks the refresh cookie
// Secure, which production deployments behind TLS want.
func NewHandler(ids *identity.Service, svc *Service, refreshTTL time.Duration, secureCookie bool) *Handler {
	return &Handler{ids: ids, svc: svc, refreshTTL: refreshTTL, secure: secureCookie}
}

type loginRequest struct {
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceName string `json:"deviceName"`
}

type loginResponse struct {
	Message string           `json:"message"`
	User    identity.Profile `json:"user"`
	TokenPair
}

// LoginPhone handles POST /auth/login/phone.
func (h *Handler) LoginPhone(c *fiber.Ctx) error { return h.login(c, verification.ChannelPhone) }

// LoginEmail handles POST /auth/login/email.
func (h *Handler) LoginEmail(c *fiber.Ctx) error { return h.login(c, verification.ChannelEmail) }

func (h *Handler) login(c *fiber.Ctx, channel verification.Channel) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation(err.Error())
	}
	identifier := req.Phone
	if channel == verification.ChannelEmail {
		identifier = req.Email
	}
	user, err := h.ids.Authenticate(c.UserContext(), identity.Credentials{
		Channel:    channel,
		Identifier: identifier,
		Password:   req.Password,
		DeviceName: req.DeviceName,
	})
	if err != nil {
		return err
	}
	pair, err := h.svc.Login(user)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		Expires:  time.Now().Add(h.refreshTTL),
		HTTPOnly: true,
		Secure:   h.secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return c.Status(http.StatusOK).JSON(loginResponse{Message: "Login successful", User: user.Profile(), TokenPair: pair})
}

type refreshRequest struct {
	Token       string `json:"token"`
	DeviceToken string `json:"deviceToken"`
}

// Refresh issues a new access token using a valid refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperr.Validation(err.Error())
		}
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		token = c.Cookies(RefreshCookie)
	}
	if token == "" {
		return apperr.Validation("token is required")
	}
	if req.DeviceToken == "" {
		return apperr.Validation("deviceToken is required")
	}
	access, expiresIn, err := h.svc.Refresh(c.UserContext(), token, req.DeviceToken)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message":     "Token refreshed successfully",
		"accessToken": access,
		"expiresIn":   expiresIn,
	})
}
