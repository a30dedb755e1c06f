// Package profile serves the authenticated user's own account.
package profile

import (
	"context"
	"strings"

	"github.com/fixoo-edu/fixoo_api/internal/apperr"
	"github.com/fixoo-edu/fixoo_api/internal/identity"
	"github.com/fixoo-edu/fixoo_api/internal/verification"
)

type Service struct {
	ids *identity.Service
}

func NewService(ids *identity.Service) *Service {
	return &Service{ids: ids}
}

func (s *Service) Get(ctx context.Context, userID int64) (identity.User, error) {
	return s.ids.FindByID(ctx, userID)
}

// UpdateFullName renames the user. Other profile fields change through their
// own gated operations.
func (s *Service) UpdateFullName(ctx context.Context, userID int64, fullName string) (identity.User, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return identity.User{}, apperr.Validation("fullName is required")
	}
	if err := s.ids.Repository().UpdateFullName(ctx, userID, fullName); err != nil {
		return identity.User{}, err
	}
	return s.ids.FindByID(ctx, userID)
}

func (s *Service) UpdatePhone(ctx context.Context, userID int64, phone string) (identity.User, error) {
	return s.ids.ChangeIdentifier(ctx, userID, verification.ChannelPhone, phone)
}

func (s *Service) UpdateEmail(ctx context.Context, userID int64, email string) (identity.User, error) {
	return s.ids.ChangeIdentifier(ctx, userID, verification.ChannelEmail, email)
}

func (s *Service) UpdatePassword(ctx context.Context, userID int64, current, next string) error {
	return s.ids.ChangePassword(ctx, userID, current, next)
}
