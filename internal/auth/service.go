package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/fixoo-edu/fixoo_api/internal/apperr"
	"github.com/fixoo-edu/fixoo_api/internal/identity"
	"github.com/fixoo-edu/fixoo_api/internal/logging"
)

// Service issues token pairs and refreshes access tokens.
type Service struct {
	tokens *TokenIssuer
	users  identity.Repository
	logger *slog.Logger
}

// NewService wires the token issuer to the credential store used for refresh checks.
func NewService(tokens *TokenIssuer, users identity.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{tokens: tokens, users: users, logger: logger}
}

// TokenPair is the login response body: both tokens and the access lifetime in seconds.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Login issues tokens for a user already authenticated by identity.Service.
func (s *Service) Login(user identity.User) (TokenPair, error) {
	access, accessExp, err := s.tokens.Issue(KindAccess, user)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := s.tokens.Issue(KindRefresh, user)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(time.Until(accessExp).Round(time.Second).Seconds()),
	}, nil
}

// Refresh verifies a refresh token and returns a new access token. The subject
// must still exist and deviceToken must still be on its device list, so
// removing a device revokes its refresh tokens at once.
func (s *Service) Refresh(ctx context.Context, refreshToken, deviceToken string) (string, int64, error) {
	invalid := apperr.Unauthorized("Invalid or expired refresh token")

	claims, err := s.tokens.Parse(KindRefresh, refreshToken)
	if err != nil {
		return "", 0, invalid
	}
	id, err := claims.UserID()
	if err != nil {
		return "", 0, invalid
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", 0, invalid
		}
		return "", 0, err
	}
	deviceToken = strings.TrimSpace(deviceToken)
	if deviceToken == "" || !user.HasDevice(deviceToken) {
		s.logger.Warn("refresh from unknown device", slog.Int64("user_id", id))
		return "", 0, invalid
	}

	access, exp, err := s.tokens.Issue(KindAccess, user)
	if err != nil {
		return "", 0, err
	}
	return access, int64(time.Until(exp).Round(time.Second).Seconds()), nil
}
