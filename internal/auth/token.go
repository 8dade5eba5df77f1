package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/org/authcore/pkg/models"
)

// TokenType is the value of the "type" claim.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// expiryGrace makes Verify reject only once now is past exp at second resolution.
const expiryGrace = time.Second

// Claims is the payload of every issued token.
type Claims struct {
	Type TokenType `json:"type"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 session tokens with a single process-wide secret.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithAccessTTL overrides the access token lifetime. Non-positive values are ignored.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides the refresh token lifetime. Non-positive values are ignored.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source used for issuing and verifying.
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewTokenService creates a TokenService signing with secret.
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is not configured")
	}
	s := &TokenService{
		secret:     []byte(secret),
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// Issue signs a token of the given kind for subject, expiring ttl from now.
func (s *TokenService) Issue(subject string, kind TokenType, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("ttl must be greater than zero")
	}
	if kind != TokenAccess && kind != TokenRefresh {
		return "", fmt.Errorf("unknown token type %q", kind)
	}
	now := s.now().UTC()
	claims := Claims{
		Type: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// IssuePair signs a fresh access and refresh token for subject.
func (s *TokenService) IssuePair(subject string) (models.TokenPair, error) {
	access, err := s.Issue(subject, TokenAccess, s.accessTTL)
	if err != nil {
		return models.TokenPair{}, err
	}
	refresh, err := s.Issue(subject, TokenRefresh, s.refreshTTL)
	if err != nil {
		return models.TokenPair{}, err
	}
	return models.TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

// Verify checks the signature and expiry of token and returns its claims.
// Every failure is a *TokenError matching ErrInvalidToken.
func (s *TokenService) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &TokenError{Reason: ReasonMalformed}
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		// exp has whole-second precision: a token stays valid through its expiry second
		jwt.WithLeeway(expiryGrace),
	)
	if err != nil {
		return nil, &TokenError{Reason: classify(err), Err: err}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, &TokenError{Reason: ReasonMalformed}
	}
	return claims, nil
}

// Refresh exchanges a refresh token for a new pair bound to the same subject.
// Earlier pairs stay valid until they expire.
func (s *TokenService) Refresh(refreshToken string) (models.TokenPair, error) {
	claims, err := s.Verify(refreshToken)
	if err != nil {
		return models.TokenPair{}, err
	}
	if claims.Type != TokenRefresh {
		return models.TokenPair{}, &TokenError{Reason: ReasonWrongType}
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return models.TokenPair{}, &TokenError{Reason: ReasonMalformed}
	}
	return s.IssuePair(claims.Subject)
}

func classify(err error) TokenReason {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ReasonSignature
	default:
		return ReasonMalformed
	}
}
