package identity

import (
	"context"
	"errors"

	"github.com/fixoo-edu/fixoo_api/internal/apperr"
	"github.com/fixoo-edu/fixoo_api/internal/verification"
)

// Directory answers ownership questions for the OTP service.
type Directory struct {
	repo Repository
}

// NewDirectory wraps repo.
func NewDirectory(repo Repository) *Directory {
	return &Directory{repo: repo}
}

// Exists reports whether some user owns identifier on channel.
func (d *Directory) Exists(ctx context.Context, channel verification.Channel, identifier string) (bool, error) {
	var err error
	switch channel {
	case verification.ChannelPhone:
		_, err = d.repo.FindByPhone(ctx, identifier)
	case verification.ChannelEmail:
		_, err = d.repo.FindByEmail(ctx, identifier)
	default:
		return false, apperr.Newf(apperr.ErrValidation, "unsupported channel %q", channel)
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
