package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fixoo-edu/fixoo_api/internal/device"
	"github.com/fixoo-edu/fixoo_api/internal/identity"
	"github.com/fixoo-edu/fixoo_api/internal/middleware"
	"github.com/fixoo-edu/fixoo_api/internal/profile"
	"github.com/fixoo-edu/fixoo_api/internal/users"
)

// RegisterDeviceRoutes wires the device allow-list. r must be authenticated.
func RegisterDeviceRoutes(r fiber.Router, h *device.Handler) {
	r.Get("/device", h.GetAll)
	r.Delete("/device/:deviceToken", h.Delete)
}

// RegisterProfileRoutes wires the caller's own profile. r must be authenticated.
func RegisterProfileRoutes(r fiber.Router, h *profile.Handler) {
	r.Get("/profile", h.Get)
	r.Patch("/profile", h.Update)
	r.Patch("/profile/phone", h.UpdatePhone)
	r.Patch("/profile/email", h.UpdateEmail)
	r.Patch("/profile/password", h.UpdatePassword)
}

// RegisterPublicUserRoutes wires the anonymous mentor directory.
func RegisterPublicUserRoutes(r fiber.Router, h *users.Handler) {
	r.Get("/users/mentors", h.Mentors)
	r.Get("/users/mentors/:id", h.Mentor)
}

// RegisterUserRoutes wires account administration. r must be authenticated.
func RegisterUserRoutes(r fiber.Router, h *users.Handler) {
	admin := middleware.RequireRoles(identity.RoleAdmin)
	staff := middleware.RequireRoles(identity.RoleAdmin, identity.RoleMentor)

	r.Get("/users", admin, h.List)
	r.Get("/users/phone/:phone", staff, h.ByPhone)
	r.Post("/users/admin", admin, h.Create(identity.RoleAdmin))
	r.Post("/users/mentor", admin, h.Create(identity.RoleMentor))
	r.Post("/users/assistant", staff, h.Create(identity.RoleAssistant))
	r.Patch("/users/mentors/:id", admin, h.UpdateMentor)
	r.Get("/users/:id", admin, h.Get)
	r.Delete("/users/:id", admin, h.Delete)
}
