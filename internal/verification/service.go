package verification

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/fixoo-edu/fixoo_api/internal/apperr"
	"github.com/fixoo-edu/fixoo_api/internal/kv"
	"github.com/fixoo-edu/fixoo_api/internal/logging"
	"github.com/fixoo-edu/fixoo_api/internal/notification"
)

// Directory answers whether an identifier already belongs to an account.
type Directory interface {
	Exists(ctx context.Context, channel Channel, identifier string) (bool, error)
}

// Config tunes code issuance.
type Config struct {
	AppName         string
	CodeTTL         time.Duration
	ConfirmationTTL time.Duration
	CodeLength      int
	// MaxAttempts is the number of wrong codes that burns an outstanding
	// code. Zero disables the limit.
	MaxAttempts int
}

// Request identifies the code being sent or checked.
type Request struct {
	Purpose    Purpose
	Channel    Channel
	Identifier string
}

type confirmation struct {
	Verified bool `json:"verified"`
}

// Service issues and checks one-time codes and records the confirmation flag
// that a successful check grants.
type Service struct {
	store    *kv.Store
	dir      Directory
	notifier notification.Notifier
	cfg      Config
	generate func(length int) (string, error)
	logger   *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(fn func(length int) (string, error)) Option {
	return func(s *Service) { s.generate = fn }
}

// NewService builds the verification service.
func NewService(store *kv.Store, dir Directory, notifier notification.Notifier, cfg Config, logger *slog.Logger, opts ...Option) *Service {
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 600 * time.Second
	}
	if cfg.ConfirmationTTL <= 0 {
		cfg.ConfirmationTTL = 600 * time.Second
	}
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = 6
	}
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Service{store: store, dir: dir, notifier: notifier, cfg: cfg, generate: RandomCode, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send issues a code for req and dispatches it over the request channel. The
// code itself is never returned.
func (s *Service) Send(ctx context.Context, req Request) error {
	req, err := normalize(req)
	if err != nil {
		return err
	}
	key, err := Key(req.Purpose, req.Channel, req.Identifier, false)
	if err != nil {
		return err
	}

	pending, err := s.store.Exists(ctx, key)
	if err != nil {
		return err
	}
	if pending {
		return apperr.Conflict("Code already sent to user")
	}

	if err := s.checkOwnership(ctx, req); err != nil {
		return err
	}

	code, err := s.generate(s.cfg.CodeLength)
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}

	claimed, err := s.store.SetIfAbsent(ctx, key, code, s.cfg.CodeTTL)
	if err != nil {
		return err
	}
	if !claimed {
		return apperr.Conflict("Code already sent to user")
	}
	if tries, err := attemptsKey(req.Purpose, req.Channel, req.Identifier); err == nil {
		if _, err := s.store.Delete(ctx, tries); err != nil {
			s.logger.Warn("reset otp attempts", slog.Any("error", err))
		}
	}

	msg, err := buildMessage(s.cfg.AppName, req.Purpose, req.Channel, req.Identifier, code)
	if err == nil {
		err = s.notifier.Send(ctx, msg)
	}
	if err != nil {
		// Release the claim so the caller can ask again right away.
		if _, delErr := s.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.Error("release otp after failed dispatch", slog.Any("error", delErr))
		}
		return fmt.Errorf("dispatch otp: %w", err)
	}

	s.logger.Info("otp issued",
		slog.String("purpose", string(req.Purpose)),
		slog.String("channel", string(req.Channel)),
		logging.Identifier(req.Identifier),
	)
	return nil
}

// Verify checks code against the outstanding code for req. On a match the code
// is deleted and a confirmation flag is written for the gated operation.
func (s *Service) Verify(ctx context.Context, req Request, code string) error {
	req, err := normalize(req)
	if err != nil {
		return err
	}
	key, err := Key(req.Purpose, req.Channel, req.Identifier, false)
	if err != nil {
		return err
	}

	var stored string
	found, err := s.store.Get(ctx, key, &stored)
	if err != nil {
		return err
	}
	if !found {
		return apperr.New(apperr.ErrExpiredOrMissing, "OTP expired or not found")
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return s.recordFailure(ctx, req, key)
	}

	removed, err := s.store.Delete(ctx, key)
	if err != nil {
		return err
	}
	if !removed {
		// Another request consumed the code between our read and delete.
		return apperr.New(apperr.ErrExpiredOrMissing, "OTP expired or not found")
	}
	if tries, err := attemptsKey(req.Purpose, req.Channel, req.Identifier); err == nil {
		_, _ = s.store.Delete(ctx, tries)
	}

	confirmKey, err := Key(req.Purpose, req.Channel, req.Identifier, true)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, confirmKey, confirmation{Verified: true}, s.cfg.ConfirmationTTL); err != nil {
		return err
	}

	s.logger.Info("otp verified",
		slog.String("purpose", string(req.Purpose)),
		slog.String("channel", string(req.Channel)),
		logging.Identifier(req.Identifier),
	)
	return nil
}

// Confirmed reports whether a live confirmation flag exists.
func (s *Service) Confirmed(ctx context.Context, p Purpose, c Channel, identifier string) (bool, error) {
	key, err := Key(p, c, NormalizeIdentifier(c, identifier), true)
	if err != nil {
		return false, err
	}
	return s.store.Exists(ctx, key)
}

// Consume deletes a confirmation flag after the gated operation committed.
func (s *Service) Consume(ctx context.Context, p Purpose, c Channel, identifier string) error {
	key, err := Key(p, c, NormalizeIdentifier(c, identifier), true)
	if err != nil {
		return err
	}
	_, err = s.store.Delete(ctx, key)
	return err
}

func (s *Service) recordFailure(ctx context.Context, req Request, key string) error {
	invalid := apperr.New(apperr.ErrInvalidCode, "Invalid OTP code")
	if s.cfg.MaxAttempts <= 0 {
		return invalid
	}
	tries, err := attemptsKey(req.Purpose, req.Channel, req.Identifier)
	if err != nil {
		return err
	}
	window, err := s.store.TTL(ctx, key)
	if err != nil || window <= 0 {
		window = s.cfg.CodeTTL
	}
	n, err := s.store.Incr(ctx, tries, window)
	if err != nil {
		return err
	}
	if n < int64(s.cfg.MaxAttempts) {
		return invalid
	}
	if _, err := s.store.Delete(ctx, key, tries); err != nil {
		return err
	}
	s.logger.Warn("otp burned after repeated invalid attempts",
		slog.String("purpose", string(req.Purpose)),
		slog.String("channel", string(req.Channel)),
		logging.Identifier(req.Identifier),
	)
	return apperr.New(apperr.ErrTooManyAttempts, "Too many invalid attempts, request a new code")
}

func (s *Service) checkOwnership(ctx context.Context, req Request) error {
	exists, err := s.dir.Exists(ctx, req.Channel, req.Identifier)
	if err != nil {
		return err
	}
	switch req.Purpose {
	case PurposeResetPassword:
		if !exists {
			return apperr.NotFound("User not found")
		}
	default:
		if exists {
			return apperr.Conflict(channelLabel(req.Channel) + " already used")
		}
	}
	return nil
}

func normalize(req Request) (Request, error) {
	req.Identifier = NormalizeIdentifier(req.Channel, req.Identifier)
	if err := ValidateIdentifier(req.Channel, req.Identifier); err != nil {
		return req, err
	}
	req.Purpose = Normalize(req.Purpose, req.Channel)
	return req, nil
}

func channelLabel(c Channel) string {
	if c == ChannelEmail {
		return "Email"
	}
	return "Phone"
}

// RandomCode returns a uniformly random numeric code of the given width.
func RandomCode(length int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}
