package auth

import "errors"

// Token lifecycle errors. Callers compare with errors.Is; the HTTP layer reports
// ErrMalformed and ErrInvalidSignature identically so clients cannot tell them apart.
var (
	ErrMalformed         = errors.New("auth: malformed token")
	ErrInvalidSignature  = errors.New("auth: invalid token signature")
	ErrExpired           = errors.New("auth: token expired")
	ErrMissingToken      = errors.New("auth: missing bearer token")
	ErrInvalidToken      = errors.New("auth: invalid token")
	ErrInvalidClaims     = errors.New("auth: invalid claims")
	ErrPrincipalNotFound = errors.New("auth: principal not found")
	ErrMissingSecret     = errors.New("auth: signing secret is not configured")
)

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrAlreadyExists      = errors.New("auth: already exists")
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)
