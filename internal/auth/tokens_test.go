package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
func newFakeClock(unix int64) *fakeClock     { return &fakeClock{t: time.Unix(unix, 0)} }
func staticResolver(roles ...string) ResolverFunc {
	return func(_ context.Context, username string) (Principal, error) {
		return NewPrincipal(username, roles), nil
	}
}

func newTestService(t *testing.T, clock *fakeClock, resolver PrincipalResolver, ttl time.Duration) *TokenService {
	t.Helper()
	codec, err := NewCodec("s3cr3t")
	require.NoError(t, err)
	svc, err := NewTokenService(codec, resolver, TokenConfig{AccessTTL: ttl, Issuer: "startup"}, WithClock(clock.Now))
	require.NoError(t, err)
	return svc
}

func TestNewTokenServiceValidatesConfig(t *testing.T) {
	codec, err := NewCodec("s3cr3t")
	require.NoError(t, err)

	_, err = NewTokenService(codec, staticResolver(), TokenConfig{})
	require.Error(t, err)
	_, err = NewTokenService(codec, staticResolver(), TokenConfig{AccessTTL: 500 * time.Millisecond})
	require.Error(t, err)
	_, err = NewTokenService(nil, staticResolver(), TokenConfig{AccessTTL: time.Hour})
	require.Error(t, err)
	_, err = NewTokenService(codec, nil, TokenConfig{AccessTTL: time.Hour})
	require.Error(t, err)
}

func TestIssueAccessTokenWindows(t *testing.T) {
	clock := newFakeClock(1_700_000_000)
	ttl := 3600 * time.Second
	svc := newTestService(t, clock, staticResolver(), ttl)

	pair, err := svc.IssueAccessToken(context.Background(), "alice", []string{"ADMIN", "COMMON_USER"})
	require.NoError(t, err)

	now := clock.Now()
	require.Equal(t, "alice", pair.Username)
	require.True(t, pair.Authenticated)
	require.True(t, pair.CreatedAt.Equal(now))
	require.True(t, pair.ExpiresAt.Equal(now.Add(ttl)))
	require.True(t, pair.RefreshExpiresAt.Equal(now.Add(3*ttl)))
	require.Equal(t, 3*ttl, pair.RefreshExpiresAt.Sub(pair.CreatedAt))

	access, err := svc.codec.Decode(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", access.Subject)
	require.Equal(t, []string{"ADMIN", "COMMON_USER"}, access.Roles)
	require.True(t, access.IssuedAt.Equal(pair.CreatedAt))
	require.True(t, access.ExpiresAt.Equal(pair.ExpiresAt))
	require.Equal(t, "startup", access.Issuer)

	refresh, err := svc.codec.Decode(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "alice", refresh.Subject)
	require.Equal(t, access.Roles, refresh.Roles)
	require.True(t, refresh.ExpiresAt.Equal(pair.RefreshExpiresAt))
	require.Empty(t, refresh.Issuer)
}

func TestIssueAccessTokenTruncatesToSeconds(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 999_000_000)}
	svc := newTestService(t, clock, staticResolver(), time.Minute)

	pair, err := svc.IssueAccessToken(context.Background(), "alice", nil)
	require.NoError(t, err)
	require.True(t, pair.CreatedAt.Equal(time.Unix(1_700_000_000, 0)))

	claims, err := svc.codec.Decode(pair.AccessToken)
	require.NoError(t, err)
	require.True(t, claims.IssuedAt.Equal(pair.CreatedAt))
	require.True(t, claims.ExpiresAt.Equal(pair.ExpiresAt))
}

func TestIssueAccessTokenUsesIssuerFromContext(t *testing.T) {
	clock := newFakeClock(1_700_000_000)
	svc := newTestService(t, clock, staticResolver(), time.Minute)

	ctx := ContextWithIssuer(context.Background(), "https://auth.example.com")
	pair, err := svc.IssueAccessToken(ctx, "alice", nil)
	require.NoError(t, err)

	claims, err := svc.codec.Decode(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "https://auth.example.com", claims.Issuer)
}

func TestValidateAccessTokenExpiryBoundary(t *testing.T) {
	clock := newFakeClock(1_700_000_000)
	svc := newTestService(t, clock, staticResolver(), 10*time.Second)

	pair, err := svc.IssueAccessToken(context.Background(), "alice", nil)
	require.NoError(t, err)

	ok, err := svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(9 * time.Second)
	ok, err = svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	require.True(t, ok, "one second before expiry")

	clock.Advance(time.Second)
	ok, err = svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	require.False(t, ok, "exp == now must be invalid")

	clock.Advance(time.Hour)
	ok, err = svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestValidateAccessTokenRejectsGarbage(t *testing.T) {
	svc := newTestService(t, newFakeClock(1_700_000_000), staticResolver(), time.Minute)

	ok, err := svc.ValidateAccessToken("garbage")
	require.False(t, ok)
	require.ErrorIs(t, err, ErrInvalidToken)
	require.ErrorIs(t, err, ErrMalformed)

	other, err := NewCodec("other")
	require.NoError(t, err)
	iat := time.Unix(1_700_000_000, 0)
	forged, err := other.Encode(Claims{Subject: "alice", IssuedAt: iat, ExpiresAt: iat.Add(time.Hour)})
	require.NoError(t, err)

	ok, err = svc.ValidateAccessToken(forged)
	require.False(t, ok)
	require.ErrorIs(t, err, ErrInvalidToken)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestRefreshReissuesPair(t *testing.T) {
	clock := newFakeClock(1_700_000_000)
	ttl := 3600 * time.Second
	svc := newTestService(t, clock, staticResolver(), ttl)
	ctx := context.Background()

	first, err := svc.IssueAccessToken(ctx, "alice", []string{"ADMIN"})
	require.NoError(t, err)

	clock.Advance(2 * ttl)
	second, err := svc.Refresh(ctx, "Bearer "+first.RefreshToken)
	require.NoError(t, err)

	require.Equal(t, "alice", second.Username)
	require.True(t, second.CreatedAt.Equal(clock.Now()))
	require.True(t, second.ExpiresAt.Equal(clock.Now().Add(ttl)))
	require.True(t, second.RefreshExpiresAt.Equal(clock.Now().Add(3*ttl)))
	require.NotEqual(t, first.AccessToken, second.AccessToken)

	claims, err := svc.codec.Decode(second.AccessToken)
	require.NoError(t, err)
	require.Equal(t, []string{"ADMIN"}, claims.Roles)

	ok, err := svc.ValidateAccessToken(first.AccessToken)
	require.NoError(t, err)
	require.False(t, ok, "old access token stays expired")
}

func TestRefreshRejectsExpiredRefreshToken(t *testing.T) {
	clock := newFakeClock(1_700_000_000)
	svc := newTestService(t, clock, staticResolver(), time.Minute)

	pair, err := svc.IssueAccessToken(context.Background(), "alice", nil)
	require.NoError(t, err)

	clock.Advance(3 * time.Minute)
	_, err = svc.Refresh(context.Background(), "Bearer "+pair.RefreshToken)
	require.ErrorIs(t, err, ErrExpired)
}

func TestRefreshHeaderErrors(t *testing.T) {
	svc := newTestService(t, newFakeClock(1_700_000_000), staticResolver(), time.Minute)
	ctx := context.Background()

	for _, header := range []string{"", "Bearer ", "Bearer    ", "Token abc", "bearer abc"} {
		_, err := svc.Refresh(ctx, header)
		require.ErrorIs(t, err, ErrMissingToken, "header %q", header)
	}

	_, err := svc.Refresh(ctx, "Bearer not-a-token")
	require.ErrorIs(t, err, ErrMalformed)

	pair, err := svc.IssueAccessToken(ctx, "alice", nil)
	require.NoError(t, err)
	parts := strings.Split(pair.RefreshToken, ".")
	_, err = svc.Refresh(ctx, "Bearer "+parts[0]+"."+parts[1]+".AAAA"+parts[2][4:])
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestResolveAuthenticationUsesResolverRoles(t *testing.T) {
	clock := newFakeClock(1_700_000_000)
	var seen string
	resolver := ResolverFunc(func(_ context.Context, username string) (Principal, error) {
		seen = username
		return NewPrincipal(username, []string{"MANAGER"}), nil
	})
	svc := newTestService(t, clock, resolver, time.Minute)

	pair, err := svc.IssueAccessToken(context.Background(), "alice", []string{"ADMIN"})
	require.NoError(t, err)

	principal, err := svc.ResolveAuthentication(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", seen)
	require.Equal(t, "alice", principal.Username)
	require.True(t, principal.HasRole("MANAGER"))
	require.False(t, principal.HasRole("ADMIN"))
}

func TestResolveAuthenticationErrors(t *testing.T) {
	clock := newFakeClock(1_700_000_000)
	boom := errors.New("db down")

	cases := []struct {
		name string
		err  error
		want error
	}{
		{name: "not found", err: ErrPrincipalNotFound, want: ErrPrincipalNotFound},
		{name: "store not found", err: ErrNotFound, want: ErrPrincipalNotFound},
		{name: "backend failure", err: boom, want: boom},
		{name: "cancelled", err: context.Canceled, want: context.Canceled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resolver := ResolverFunc(func(context.Context, string) (Principal, error) { return Principal{}, tc.err })
			svc := newTestService(t, clock, resolver, time.Minute)
			pair, err := svc.IssueAccessToken(context.Background(), "alice", nil)
			require.NoError(t, err)

			_, err = svc.ResolveAuthentication(context.Background(), pair.AccessToken)
			require.ErrorIs(t, err, tc.want)
		})
	}

	svc := newTestService(t, clock, staticResolver(), time.Minute)
	_, err := svc.ResolveAuthentication(context.Background(), "garbage")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestResolveAuthenticationPassesContext(t *testing.T) {
	clock := newFakeClock(1_700_000_000)
	resolver := ResolverFunc(func(ctx context.Context, _ string) (Principal, error) {
		return Principal{}, ctx.Err()
	})
	svc := newTestService(t, clock, resolver, time.Minute)
	pair, err := svc.IssueAccessToken(context.Background(), "alice", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.ResolveAuthentication(ctx, pair.AccessToken)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStripBearer(t *testing.T) {
	token, ok := StripBearer("Bearer abc.def.ghi")
	require.True(t, ok)
	require.Equal(t, "abc.def.ghi", token)

	for _, h := range []string{"", "Bearer", "Bearer ", "Basic abc", "BEARER abc"} {
		_, ok := StripBearer(h)
		require.False(t, ok, "header %q", h)
	}
}
