package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/fixoo-edu/fixoo_api/internal/apperr"
	"github.com/fixoo-edu/fixoo_api/internal/logging"
	"github.com/fixoo-edu/fixoo_api/internal/verification"
)

// Confirmations checks and consumes the flags written by a successful OTP
// verification.
type Confirmations interface {
	Confirmed(ctx context.Context, p verification.Purpose, c verification.Channel, identifier string) (bool, error)
	Consume(ctx context.Context, p verification.Purpose, c verification.Channel, identifier string) error
}

// Service manages the credential lifecycle.
type Service struct {
	repo    Repository
	confirm Confirmations
	cost    int
	logger  *slog.Logger
}

// NewService creates a new identity service. cost is the bcrypt work factor.
func NewService(repo Repository, confirm Confirmations, cost int, logger *slog.Logger) *Service {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{repo: repo, confirm: confirm, cost: cost, logger: logger}
}

// Repository exposes the underlying store to sibling services.
func (s *Service) Repository() Repository {
	return s.repo
}

// Register creates a user for an identifier whose REGISTER confirmation is
// still live, then consumes the confirmation.
func (s *Service) Register(ctx context.Context, reg Registration) (User, error) {
	reg.Identifier = verification.NormalizeIdentifier(reg.Channel, reg.Identifier)
	label := ChannelLabel(reg.Channel)
	if err := verification.ValidateIdentifier(reg.Channel, reg.Identifier); err != nil {
		return User{}, err
	}
	if reg.Password == "" {
		return User{}, apperr.Validation("Password is required")
	}
	reg.DeviceName = strings.TrimSpace(reg.DeviceName)
	if reg.DeviceName == "" {
		return User{}, apperr.Validation("deviceName is required")
	}
	if reg.Role == "" {
		reg.Role = RoleStudent
	}
	if !reg.Role.Valid() || reg.Role == RoleAdmin {
		return User{}, apperr.Newf(apperr.ErrValidation, "role %q is not allowed", reg.Role)
	}

	if err := s.requireConfirmed(ctx, verification.PurposeRegister, reg.Channel, reg.Identifier,
		label+" not verified or verification expired"); err != nil {
		return User{}, err
	}

	if _, err := s.FindByIdentifier(ctx, reg.Channel, reg.Identifier); err == nil {
		return User{}, apperr.Conflict(label + " already registered")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return User{}, err
	}

	hash, err := s.HashPassword(reg.Password)
	if err != nil {
		return User{}, err
	}

	user := User{
		PasswordHash: hash,
		FullName:     strings.TrimSpace(reg.FullName),
		Role:         reg.Role,
		Devices:      []string{reg.DeviceName},
		CreatedAt:    time.Now().UTC(),
	}
	if reg.Channel == verification.ChannelEmail {
		user.Email = reg.Identifier
	} else {
		user.Phone = reg.Identifier
	}

	// The unique constraint catches a concurrent registration that slipped past the lookup.
	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return User{}, err
	}

	s.consume(ctx, verification.PurposeRegister, reg.Channel, reg.Identifier)
	s.logger.Info("user registered",
		slog.Int64("user_id", created.ID),
		slog.String("channel", string(reg.Channel)),
		logging.Identifier(reg.Identifier),
	)
	return created, nil
}

// Authenticate checks a password and records the device on success. Unknown
// identifiers and wrong passwords fail identically.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	creds.Identifier = verification.NormalizeIdentifier(creds.Channel, creds.Identifier)
	if creds.Identifier == "" {
		return User{}, apperr.Validation(ChannelLabel(creds.Channel) + " is required")
	}
	creds.DeviceName = strings.TrimSpace(creds.DeviceName)
	if creds.DeviceName == "" {
		return User{}, apperr.Validation("deviceName is required")
	}

	invalid := apperr.Unauthorized("Invalid credentials")
	user, err := s.FindByIdentifier(ctx, creds.Channel, creds.Identifier)
	if errors.Is(err, apperr.ErrNotFound) {
		return User{}, invalid
	}
	if err != nil {
		return User{}, err
	}
	if !s.CheckPassword(user, creds.Password) {
		return User{}, invalid
	}

	added, err := s.repo.AddDevice(ctx, user.ID, creds.DeviceName)
	if err != nil {
		return User{}, err
	}
	if added {
		user.Devices = append(user.Devices, creds.DeviceName)
		s.logger.Info("device added", slog.Int64("user_id", user.ID), slog.String("device", creds.DeviceName))
	}
	return user, nil
}

// ResetPassword replaces the password of the identifier's owner. It needs a
// live RESET_PASSWORD confirmation, which it consumes.
func (s *Service) ResetPassword(ctx context.Context, channel verification.Channel, identifier, password string) error {
	identifier = verification.NormalizeIdentifier(channel, identifier)
	if err := verification.ValidateIdentifier(channel, identifier); err != nil {
		return err
	}
	if password == "" {
		return apperr.Validation("Password is required")
	}

	if err := s.requireConfirmed(ctx, verification.PurposeResetPassword, channel, identifier,
		"Not verified or verification expired"); err != nil {
		return err
	}

	user, err := s.FindByIdentifier(ctx, channel, identifier)
	if err != nil {
		return err
	}
	hash, err := s.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}

	s.consume(ctx, verification.PurposeResetPassword, channel, identifier)
	s.logger.Info("password reset", slog.Int64("user_id", user.ID), logging.Identifier(identifier))
	return nil
}

// ChangeIdentifier moves a user to a new phone or email. The new identifier
// needs a live EDIT_PHONE or EDIT_EMAIL confirmation.
func (s *Service) ChangeIdentifier(ctx context.Context, userID int64, channel verification.Channel, identifier string) (User, error) {
	identifier = verification.NormalizeIdentifier(channel, identifier)
	label := ChannelLabel(channel)
	if err := verification.ValidateIdentifier(channel, identifier); err != nil {
		return User{}, err
	}
	purpose := verification.Normalize(verification.PurposeEditPhone, channel)

	if err := s.requireConfirmed(ctx, purpose, channel, identifier,
		label+" not verified or verification expired"); err != nil {
		return User{}, err
	}

	owner, err := s.FindByIdentifier(ctx, channel, identifier)
	switch {
	case err == nil && owner.ID != userID:
		return User{}, apperr.Conflict(label + " already in use")
	case err != nil && !errors.Is(err, apperr.ErrNotFound):
		return User{}, err
	}

	if channel == verification.ChannelEmail {
		err = s.repo.UpdateEmail(ctx, userID, identifier)
	} else {
		err = s.repo.UpdatePhone(ctx, userID, identifier)
	}
	if err != nil {
		return User{}, err
	}

	s.consume(ctx, purpose, channel, identifier)
	s.logger.Info("identifier changed",
		slog.Int64("user_id", userID),
		slog.String("channel", string(channel)),
		logging.Identifier(identifier),
	)
	return s.repo.FindByID(ctx, userID)
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if current == "" || next == "" {
		return apperr.Validation("password and newPassword are required")
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.CheckPassword(user, current) {
		return apperr.Validation("Current password is incorrect")
	}
	hash, err := s.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	s.logger.Info("password changed", slog.Int64("user_id", userID))
	return nil
}

// FindByID loads a user by id.
func (s *Service) FindByID(ctx context.Context, id int64) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// FindByIdentifier loads a user by phone or email.
func (s *Service) FindByIdentifier(ctx context.Context, channel verification.Channel, identifier string) (User, error) {
	identifier = verification.NormalizeIdentifier(channel, identifier)
	switch channel {
	case verification.ChannelPhone:
		return s.repo.FindByPhone(ctx, identifier)
	case verification.ChannelEmail:
		return s.repo.FindByEmail(ctx, identifier)
	default:
		return User{}, apperr.Newf(apperr.ErrValidation, "unsupported channel %q", channel)
	}
}

// HashPassword hashes password with the configured cost.
func (s *Service) HashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, apperr.Validation("Password is too long")
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// CheckPassword reports whether password matches the stored hash.
func (s *Service) CheckPassword(user User, password string) bool {
	return bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) == nil
}

func (s *Service) requireConfirmed(ctx context.Context, p verification.Purpose, c verification.Channel, identifier, message string) error {
	ok, err := s.confirm.Confirmed(ctx, p, c, identifier)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Unverified(message)
	}
	return nil
}

// consume runs after the gated write committed, so a failure only leaves the
// flag to expire on its own.
func (s *Service) consume(ctx context.Context, p verification.Purpose, c verification.Channel, identifier string) {
	if err := s.confirm.Consume(context.WithoutCancel(ctx), p, c, identifier); err != nil {
		s.logger.Error("consume confirmation",
			slog.String("purpose", string(p)),
			logging.Identifier(identifier),
			slog.Any("error", err),
		)
	}
}

// ChannelLabel is the capitalised field name used in client messages.
func ChannelLabel(c verification.Channel) string {
	if c == verification.ChannelEmail {
		return "Email"
	}
	return "Phone"
}
