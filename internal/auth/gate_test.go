package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	valid      bool
	validErr   error
	principal  Principal
	resolveErr error
	calls      int
}

func (s *stubVerifier) ValidateAccessToken(string) (bool, error) {
	s.calls++
	return s.valid, s.validErr
}

func (s *stubVerifier) ResolveAuthentication(context.Context, string) (Principal, error) {
	return s.principal, s.resolveErr
}

func TestAuthenticateOutcomes(t *testing.T) {
	alice := NewPrincipal("alice", []string{"ADMIN"})

	cases := []struct {
		name    string
		header  string
		v       *stubVerifier
		outcome Outcome
		user    string
	}{
		{name: "no header", header: "", v: &stubVerifier{}, outcome: OutcomeAnonymous},
		{name: "basic scheme", header: "Basic Zm9vOmJhcg==", v: &stubVerifier{}, outcome: OutcomeAnonymous},
		{name: "invalid", header: "Bearer x", v: &stubVerifier{validErr: ErrInvalidToken}, outcome: OutcomeInvalid},
		{name: "expired", header: "Bearer x", v: &stubVerifier{valid: false}, outcome: OutcomeExpired},
		{name: "unresolved", header: "Bearer x", v: &stubVerifier{valid: true, resolveErr: ErrPrincipalNotFound}, outcome: OutcomeUnresolved},
		{name: "resolver failure", header: "Bearer x", v: &stubVerifier{valid: true, resolveErr: errors.New("db down")}, outcome: OutcomeUnresolved},
		{name: "authenticated", header: "Bearer x", v: &stubVerifier{valid: true, principal: alice}, outcome: OutcomeAuthenticated, user: "alice"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, outcome, err := Authenticate(context.Background(), tc.v, tc.header)
			require.Equal(t, tc.outcome, outcome)
			require.Equal(t, tc.user, p.Username)
			if outcome == OutcomeAuthenticated || outcome == OutcomeAnonymous {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestAuthenticateSkipsVerifierWithoutBearer(t *testing.T) {
	v := &stubVerifier{valid: true}
	_, outcome, err := Authenticate(context.Background(), v, "Token abc")
	require.NoError(t, err)
	require.Equal(t, OutcomeAnonymous, outcome)
	require.Zero(t, v.calls)
}
