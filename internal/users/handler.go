package users

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fixoo-edu/fixoo_api/internal/apperr"
	"github.com/fixoo-edu/fixoo_api/internal/identity"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"fullName"`
	DeviceName string `json:"deviceName"`
}

type updateMentorRequest struct {
	FullName string `json:"fullName"`
}

// mentorView is what anonymous callers see of a mentor: no device list.
type mentorView struct {
	ID        int64         `json:"id"`
	Phone     string        `json:"phone,omitempty"`
	Email     string        `json:"email,omitempty"`
	FullName  string        `json:"fullName"`
	Role      identity.Role `json:"role"`
	CreatedAt time.Time     `json:"createdAt"`
}

func newMentorView(u identity.User) mentorView {
	return mentorView{ID: u.ID, Phone: u.Phone, Email: u.Email, FullName: u.FullName, Role: u.Role, CreatedAt: u.CreatedAt}
}

func profiles(users []identity.User) []identity.Profile {
	out := make([]identity.Profile, 0, len(users))
	for _, u := range users {
		out = append(out, u.Profile())
	}
	return out
}

func idParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, apperr.Validation("id must be a positive number")
	}
	return id, nil
}

// List handles GET /users.
func (h *Handler) List(c *fiber.Ctx) error {
	users, err := h.service.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(profiles(users))
}

// Mentors handles GET /users/mentors.
func (h *Handler) Mentors(c *fiber.Ctx) error {
	users, err := h.service.Mentors(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]mentorView, 0, len(users))
	for _, u := range users {
		out = append(out, newMentorView(u))
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Mentor handles GET /users/mentors/:id.
func (h *Handler) Mentor(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	user, err := h.service.Mentor(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(newMentorView(user))
}

// Get handles GET /users/:id.
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	user, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(user.Profile())
}

// ByPhone handles GET /users/phone/:phone.
func (h *Handler) ByPhone(c *fiber.Ctx) error {
	phone, err := url.PathUnescape(c.Params("phone"))
	if err != nil {
		return apperr.Validation("malformed phone")
	}
	user, err := h.service.FindByPhone(c.UserContext(), phone)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(user.Profile())
}

// Create returns a handler for POST /users/<role>.
func (h *Handler) Create(role identity.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createRequest
		if err := c.BodyParser(&req); err != nil {
			return apperr.Validation(err.Error())
		}
		user, err := h.service.Create(c.UserContext(), role, CreateInput{
			Phone:      req.Phone,
			Email:      req.Email,
			Password:   req.Password,
			FullName:   req.FullName,
			DeviceName: req.DeviceName,
		})
		if err != nil {
			return err
		}
		return c.Status(http.StatusCreated).JSON(user.Profile())
	}
}

// UpdateMentor handles PATCH /users/mentors/:id.
func (h *Handler) UpdateMentor(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req updateMentorRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation(err.Error())
	}
	user, err := h.service.UpdateMentor(c.UserContext(), id, req.FullName)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(user.Profile())
}

// Delete handles DELETE /users/:id.
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "User deleted successfully"})
}
