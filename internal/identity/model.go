package identity

import (
	"slices"
	"time"

	"github.com/fixoo-edu/fixoo_api/internal/verification"
)

// Role is the platform role of a user.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleMentor    Role = "MENTOR"
	RoleAssistant Role = "ASSISTANT"
	RoleStudent   Role = "STUDENT"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMentor, RoleAssistant, RoleStudent:
		return true
	}
	return false
}

// User represents a platform account. Phone and Email are empty when unset;
// at least one of them is always present.
type User struct {
	ID           int64
	Phone        string
	Email        string
	PasswordHash []byte
	FullName     string
	Role         Role
	Devices      []string
	CreatedAt    time.Time
}

// HasDevice reports whether device is on the user's allow-list.
func (u User) HasDevice(device string) bool {
	return slices.Contains(u.Devices, device)
}

// Profile is the sanitized projection of a User returned to clients.
type Profile struct {
	ID        int64     `json:"id"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	FullName  string    `json:"fullName"`
	Role      Role      `json:"role"`
	Devices   []string  `json:"deviceName"`
	CreatedAt time.Time `json:"createdAt"`
}

// Profile returns the sanitized projection of u.
func (u User) Profile() Profile {
	devices := u.Devices
	if devices == nil {
		devices = []string{}
	}
	return Profile{
		ID:        u.ID,
		Phone:     u.Phone,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		Devices:   slices.Clone(devices),
		CreatedAt: u.CreatedAt,
	}
}

// Registration is the input of Register.
type Registration struct {
	Channel    verification.Channel
	Identifier string
	Password   string
	FullName   string
	DeviceName string
	Role       Role
}

// Credentials is the input of Authenticate.
type Credentials struct {
	Channel    verification.Channel
	Identifier string
	Password   string
	DeviceName string
}
