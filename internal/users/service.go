// Package users implements privileged account administration.
package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/fixoo-edu/fixoo_api/internal/apperr"
	"github.com/fixoo-edu/fixoo_api/internal/identity"
	"github.com/fixoo-edu/fixoo_api/internal/logging"
	"github.com/fixoo-edu/fixoo_api/internal/verification"
)

// CreateInput describes a staff account created by an administrator. No OTP
// confirmation is involved.
type CreateInput struct {
	Phone      string
	Email      string
	Password   string
	FullName   string
	DeviceName string
}

type Service struct {
	ids    *identity.Service
	repo   identity.Repository
	logger *slog.Logger
}

func NewService(ids *identity.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{ids: ids, repo: ids.Repository(), logger: logger}
}

// List returns every user, newest first.
func (s *Service) List(ctx context.Context) ([]identity.User, error) {
	return s.repo.List(ctx)
}

// Mentors lists users that can teach: mentors and admins.
func (s *Service) Mentors(ctx context.Context) ([]identity.User, error) {
	return s.repo.List(ctx, identity.RoleMentor, identity.RoleAdmin)
}

func (s *Service) Get(ctx context.Context, id int64) (identity.User, error) {
	if id <= 0 {
		return identity.User{}, apperr.Newf(apperr.ErrValidation, "Invalid user ID: %d. ID must be a positive number.", id)
	}
	user, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return identity.User{}, apperr.Newf(apperr.ErrNotFound, "User with ID %d not found", id)
	}
	return user, err
}

// Mentor loads a user and checks it can teach.
func (s *Service) Mentor(ctx context.Context, id int64) (identity.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return identity.User{}, err
	}
	if user.Role != identity.RoleMentor && user.Role != identity.RoleAdmin {
		return identity.User{}, apperr.Validation("User is not a mentor")
	}
	return user, nil
}

func (s *Service) FindByPhone(ctx context.Context, phone string) (identity.User, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return identity.User{}, apperr.Validation("Phone is required")
	}
	user, err := s.repo.FindByPhone(ctx, phone)
	if errors.Is(err, apperr.ErrNotFound) {
		return identity.User{}, apperr.Newf(apperr.ErrNotFound, "User with phone %s not found", phone)
	}
	return user, err
}

// Create adds a staff account with the given role.
func (s *Service) Create(ctx context.Context, role identity.Role, in CreateInput) (identity.User, error) {
	if !role.Valid() {
		return identity.User{}, apperr.Newf(apperr.ErrValidation, "unknown role %q", role)
	}
	in.Phone = verification.NormalizeIdentifier(verification.ChannelPhone, in.Phone)
	in.Email = verification.NormalizeIdentifier(verification.ChannelEmail, in.Email)
	if in.Phone == "" && in.Email == "" {
		return identity.User{}, apperr.Validation("Phone or email is required")
	}
	if in.Password == "" {
		return identity.User{}, apperr.Validation("Password is required")
	}

	if err := s.ensureFree(ctx, in.Phone, in.Email); err != nil {
		return identity.User{}, err
	}

	hash, err := s.ids.HashPassword(in.Password)
	if err != nil {
		return identity.User{}, err
	}
	var devices []string
	if d := strings.TrimSpace(in.DeviceName); d != "" {
		devices = []string{d}
	}
	user, err := s.repo.Create(ctx, identity.User{
		Phone:        in.Phone,
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		Role:         role,
		Devices:      devices,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return identity.User{}, err
	}
	s.logger.Info("staff account created", slog.Int64("user_id", user.ID), slog.String("role", string(role)))
	return user, nil
}

// UpdateMentor renames a mentor account.
func (s *Service) UpdateMentor(ctx context.Context, id int64, fullName string) (identity.User, error) {
	if _, err := s.Mentor(ctx, id); err != nil {
		return identity.User{}, err
	}
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return identity.User{}, apperr.Validation("fullName is required")
	}
	if err := s.repo.UpdateFullName(ctx, id, fullName); err != nil {
		return identity.User{}, err
	}
	return s.repo.FindByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", slog.Int64("user_id", id))
	return nil
}

func (s *Service) ensureFree(ctx context.Context, phone, email string) error {
	taken := apperr.Conflict("Phone or email already exists")
	if phone != "" {
		if _, err := s.repo.FindByPhone(ctx, phone); err == nil {
			return taken
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
	}
	if email != "" {
		if _, err := s.repo.FindByEmail(ctx, email); err == nil {
			return taken
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
	}
	return nil
}
