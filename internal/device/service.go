// Package device manages the per-user device allow-list. Removing a device is
// the way to revoke its refresh tokens.
package device

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/fixoo-edu/fixoo_api/internal/apperr"
	"github.com/fixoo-edu/fixoo_api/internal/identity"
	"github.com/fixoo-edu/fixoo_api/internal/logging"
)

// Service reads and trims a user's device list.
type Service struct {
	repo   identity.Repository
	logger *slog.Logger
}

// NewService builds a device service over the credential store.
func NewService(repo identity.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{repo: repo, logger: logger}
}

// List returns the device list in insertion order.
func (s *Service) List(ctx context.Context, userID int64) ([]string, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Devices == nil {
		return []string{}, nil
	}
	return user.Devices, nil
}

// Remove drops device and returns the remaining list. Names are matched
// trimmed; a padded name stored before trimming is matched verbatim.
func (s *Service) Remove(ctx context.Context, userID int64, device string) ([]string, error) {
	raw := device
	device = strings.TrimSpace(device)
	if device == "" {
		return nil, apperr.Validation("deviceToken is required")
	}
	remaining, err := s.repo.RemoveDevice(ctx, userID, device)
	if errors.Is(err, apperr.ErrNotFound) && raw != device {
		remaining, err = s.repo.RemoveDevice(ctx, userID, raw)
		device = raw
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("device removed", slog.Int64("user_id", userID), slog.String("device", device))
	if remaining == nil {
		remaining = []string{}
	}
	return remaining, nil
}
