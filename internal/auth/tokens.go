package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fixoo-edu/fixoo_api/internal/config"
	"github.com/fixoo-edu/fixoo_api/internal/identity"
)

// Token kinds carried in the typ claim.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// ErrWrongKind is returned when a token of the other kind is presented.
var ErrWrongKind = errors.New("unexpected token kind")

// Claims is the payload of access and refresh tokens.
type Claims struct {
	Role identity.Role `json:"role"`
	Kind string        `json:"typ"`
	jwt.RegisteredClaims
}

// UserID returns the numeric subject.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// TokenIssuer signs and verifies HS256 tokens. Access and refresh tokens use
// separate secrets and lifetimes.
type TokenIssuer struct {
	issuer     string
	access     []byte
	refresh    []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer builds an issuer from configuration.
func NewTokenIssuer(cfg config.Config) *TokenIssuer {
	return &TokenIssuer{
		issuer:     cfg.AppName,
		access:     []byte(cfg.JWTSecret),
		refresh:    []byte(cfg.RefreshSecret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		now:        time.Now,
	}
}

// Issue signs a token of the given kind for user.
func (t *TokenIssuer) Issue(kind string, user identity.User) (string, time.Time, error) {
	secret, ttl, err := t.params(kind)
	if err != nil {
		return "", time.Time{}, err
	}
	now := t.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Role: user.Role,
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, exp, nil
}

// Parse verifies signature, expiry and kind.
func (t *TokenIssuer) Parse(kind, tokenString string) (*Claims, error) {
	secret, _, err := t.params(kind)
	if err != nil {
		return nil, err
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Kind != kind {
		return nil, ErrWrongKind
	}
	return claims, nil
}

func (t *TokenIssuer) params(kind string) ([]byte, time.Duration, error) {
	switch kind {
	case KindAccess:
		return t.access, t.accessTTL, nil
	case KindRefresh:
		return t.refresh, t.refreshTTL, nil
	default:
		return nil, 0, fmt.Errorf("unknown token kind %q", kind)
	}
}
