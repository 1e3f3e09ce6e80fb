package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RefreshMultiplier scales the access TTL into the refresh token lifetime.
const RefreshMultiplier = 3

const bearerPrefix = "Bearer "

// TokenConfig holds the immutable token settings.
type TokenConfig struct {
	AccessTTL time.Duration
	// Issuer is used when the request context carries no issuer.
	Issuer string
}

// TokenService issues, validates and refreshes tokens. It holds no mutable state.
type TokenService struct {
	codec     *Codec
	resolver  PrincipalResolver
	accessTTL time.Duration
	issuer    string
	now       func() time.Time
}

// TokenServiceOption configures TokenService behavior.
type TokenServiceOption func(*TokenService) error

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) TokenServiceOption {
	return func(s *TokenService) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewTokenService constructs a TokenService.
func NewTokenService(codec *Codec, resolver PrincipalResolver, cfg TokenConfig, opts ...TokenServiceOption) (*TokenService, error) {
	if codec == nil {
		return nil, errors.New("auth: codec is required")
	}
	if resolver == nil {
		return nil, errors.New("auth: principal resolver is required")
	}
	if cfg.AccessTTL < time.Second {
		return nil, fmt.Errorf("auth: access token ttl must be at least one second, got %s", cfg.AccessTTL)
	}
	svc := &TokenService{
		codec:     codec,
		resolver:  resolver,
		accessTTL: cfg.AccessTTL,
		issuer:    strings.TrimSpace(cfg.Issuer),
		now:       time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// IssueAccessToken mints an access token and a refresh token for username.
// The refresh token lives RefreshMultiplier times longer and carries no issuer.
func (s *TokenService) IssueAccessToken(ctx context.Context, username string, roles []string) (TokenPair, error) {
	const op = "auth.TokenService.IssueAccessToken"

	now := s.now().Truncate(time.Second)
	accessExp := now.Add(s.accessTTL)
	refreshExp := now.Add(s.accessTTL * RefreshMultiplier)

	issuer := s.issuer
	if iss, ok := IssuerFromContext(ctx); ok {
		issuer = iss
	}

	access, err := s.codec.Encode(Claims{
		Subject:   username,
		Roles:     roles,
		IssuedAt:  now,
		ExpiresAt: accessExp,
		Issuer:    issuer,
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	refresh, err := s.codec.Encode(Claims{
		Subject:   username,
		Roles:     roles,
		IssuedAt:  now,
		ExpiresAt: refreshExp,
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	return TokenPair{
		Username:         username,
		Authenticated:    true,
		CreatedAt:        now,
		ExpiresAt:        accessExp,
		RefreshExpiresAt: refreshExp,
		AccessToken:      access,
		RefreshToken:     refresh,
	}, nil
}

// Refresh re-issues a full token pair from the refresh token in header
// ("Bearer <token>"). Expired refresh tokens are rejected with ErrExpired.
func (s *TokenService) Refresh(ctx context.Context, header string) (TokenPair, error) {
	const op = "auth.TokenService.Refresh"

	token, ok := StripBearer(header)
	if !ok {
		return TokenPair{}, fmt.Errorf("%s: %w", op, ErrMissingToken)
	}
	claims, err := s.codec.Decode(token)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	if !claims.ExpiresAt.After(s.now()) {
		return TokenPair{}, fmt.Errorf("%s: %w", op, ErrExpired)
	}
	return s.IssueAccessToken(ctx, claims.Subject, claims.Roles)
}

// ValidateAccessToken reports whether token is authentic and unexpired. A token that
// fails to decode yields ErrInvalidToken; an expired one yields false and no error.
// A token whose expiry equals the current instant is already invalid.
func (s *TokenService) ValidateAccessToken(token string) (bool, error) {
	const op = "auth.TokenService.ValidateAccessToken"

	claims, err := s.codec.Decode(token)
	if err != nil {
		return false, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}
	return claims.ExpiresAt.After(s.now()), nil
}

// ResolveAuthentication maps a token subject to a principal through the resolver.
// Roles come from the resolver, not from the token.
func (s *TokenService) ResolveAuthentication(ctx context.Context, token string) (Principal, error) {
	const op = "auth.TokenService.ResolveAuthentication"

	claims, err := s.codec.Decode(token)
	if err != nil {
		return Principal{}, fmt.Errorf("%s: %w", op, err)
	}
	principal, err := s.resolver.ResolvePrincipal(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) || errors.Is(err, ErrNotFound) {
			return Principal{}, fmt.Errorf("%s: %w", op, ErrPrincipalNotFound)
		}
		return Principal{}, fmt.Errorf("%s: resolve %q: %w", op, claims.Subject, err)
	}
	return principal, nil
}

// StripBearer extracts the token from an Authorization header value. The scheme
// is matched exactly; anything else counts as no token.
func StripBearer(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
