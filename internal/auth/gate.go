package auth

import "context"

// Outcome labels the decision the authentication gate took for one request.
type Outcome string

const (
	OutcomeAnonymous     Outcome = "anonymous"
	OutcomeInvalid       Outcome = "invalid"
	OutcomeExpired       Outcome = "expired"
	OutcomeUnresolved    Outcome = "unresolved"
	OutcomeAuthenticated Outcome = "authenticated"
)

// TokenVerifier is the part of TokenService the gate depends on.
type TokenVerifier interface {
	ValidateAccessToken(token string) (bool, error)
	ResolveAuthentication(ctx context.Context, token string) (Principal, error)
}

// Authenticate runs the gate decision for an Authorization header value. Only
// OutcomeAuthenticated carries a principal; the returned error explains why the
// request stays anonymous and is meant for logging, never for rejecting.
func Authenticate(ctx context.Context, v TokenVerifier, header string) (Principal, Outcome, error) {
	token, ok := StripBearer(header)
	if !ok {
		return Principal{}, OutcomeAnonymous, nil
	}
	valid, err := v.ValidateAccessToken(token)
	if err != nil {
		return Principal{}, OutcomeInvalid, err
	}
	if !valid {
		return Principal{}, OutcomeExpired, ErrExpired
	}
	principal, err := v.ResolveAuthentication(ctx, token)
	if err != nil {
		return Principal{}, OutcomeUnresolved, err
	}
	return principal, OutcomeAuthenticated, nil
}
