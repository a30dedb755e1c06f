package middleware

import (
	"errors"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fixoo-edu/fixoo_api/internal/apperr"
	"github.com/fixoo-edu/fixoo_api/internal/auth"
	"github.com/fixoo-edu/fixoo_api/internal/identity"
)

const (
	userIDKey = "user_id"
	roleKey   = "role"
)

// JWTAuth validates bearer access tokens and loads the subject. Tokens of
// deleted users are rejected even before they expire.
func JWTAuth(tokens *auth.TokenIssuer, repo identity.Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < 7 || !strings.EqualFold(authz[:7], "bearer ") {
			return apperr.Unauthorized("missing bearer token")
		}
		claims, err := tokens.Parse(auth.KindAccess, strings.TrimSpace(authz[7:]))
		if err != nil {
			return apperr.Unauthorized("invalid token")
		}
		id, err := claims.UserID()
		if err != nil {
			return apperr.Unauthorized("invalid token")
		}

		user, err := repo.FindByID(c.UserContext(), id)
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Unauthorized("User not found")
		}
		if err != nil {
			return err
		}

		c.Locals(userIDKey, user.ID)
		c.Locals(roleKey, user.Role)
		return c.Next()
	}
}

// RequireRoles lets through authenticated callers holding one of roles. It
// must run after JWTAuth.
func RequireRoles(roles ...identity.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(roleKey).(identity.Role)
		if !ok {
			return apperr.Unauthorized("authentication required")
		}
		if !slices.Contains(roles, role) {
			return apperr.Forbidden("Insufficient permissions")
		}
		return c.Next()
	}
}

// UserID returns the authenticated user id set by JWTAuth.
func UserID(c *fiber.Ctx) (int64, error) {
	id, ok := c.Locals(userIDKey).(int64)
	if !ok {
		return 0, apperr.Unauthorized("authentication required")
	}
	return id, nil
}
