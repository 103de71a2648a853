package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/medora/medora/internal/platform/apierr"
)

type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

var (
	ErrTokenMissing = errors.New("token missing")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// TokenError maps a verification failure to the 401 reported to clients.
func TokenError(err error) *apierr.Error {
	switch {
	case errors.Is(err, ErrTokenMissing):
		return apierr.Unauthorized("Missing token")
	case errors.Is(err, ErrTokenExpired):
		return apierr.Unauthorized("Token has expired")
	default:
		return apierr.Unauthorized("Invalid token")
	}
}

type Claims struct {
	jwt.RegisteredClaims
	Type TokenKind `json:"type"`
}

// UserID returns the subject as a UUID.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

type TokenConfig struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenPair is returned by login and registration.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenService issues and verifies HS256 tokens. Revocation is consulted on
// every verification when a store is configured.
type TokenService struct {
	cfg     TokenConfig
	revoked RevocationStore
	now     func() time.Time
}

func NewTokenService(cfg TokenConfig, revoked RevocationStore) *TokenService {
	return &TokenService{cfg: cfg, revoked: revoked, now: time.Now}
}

func (s *TokenService) ttl(kind TokenKind) time.Duration {
	if kind == RefreshToken {
		return s.cfg.RefreshTTL
	}
	return s.cfg.AccessTTL
}

// Issue signs a token of the given kind for userID.
func (s *TokenService) Issue(userID uuid.UUID, kind TokenKind) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl(kind))),
		},
		Type: kind,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

func (s *TokenService) IssuePair(userID uuid.UUID) (TokenPair, error) {
	access, err := s.Issue(userID, AccessToken)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.Issue(userID, RefreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks signature, expiry, kind and revocation. The returned error
// wraps one of ErrTokenMissing, ErrTokenExpired or ErrTokenInvalid, except
// for revocation store failures which are returned as-is.
func (s *TokenService) Verify(ctx context.Context, raw string, kind TokenKind) (*Claims, error) {
	if raw == "" {
		return nil, ErrTokenMissing
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Type != kind {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrTokenInvalid, kind, claims.Type)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrTokenInvalid)
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrTokenInvalid)
	}

	if s.revoked != nil {
		revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, fmt.Errorf("%w: revoked", ErrTokenInvalid)
		}
	}

	return claims, nil
}

// Revoke records the token's jti until its natural expiry.
func (s *TokenService) Revoke(ctx context.Context, c *Claims) error {
	if s.revoked == nil {
		return nil
	}
	var exp time.Time
	if c.ExpiresAt != nil {
		exp = c.ExpiresAt.Time
	}
	return s.revoked.Revoke(ctx, c.ID, c.Subject, exp)
}
