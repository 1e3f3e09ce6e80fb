package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	maxUsernameLen = 50
	maxFullNameLen = 255
)

// DefaultRoles are granted to accounts created through SignUp without explicit roles.
var DefaultRoles = []string{RoleCommonUser}

// Authenticator implements the credential endpoints: sign-in, refresh and sign-up.
type Authenticator struct {
	users     UserStore
	passwords PasswordHasher
	tokens    *TokenService
	now       func() time.Time

	decoyOnce sync.Once
	decoyHash string
}

func NewAuthenticator(users UserStore, passwords PasswordHasher, tokens *TokenService) (*Authenticator, error) {
	if users == nil || passwords == nil || tokens == nil {
		return nil, errors.New("auth: authenticator requires a user store, a password hasher and a token service")
	}
	return &Authenticator{users: users, passwords: passwords, tokens: tokens, now: time.Now}, nil
}

// SignIn checks credentials and issues a token pair. Unknown users, wrong
// passwords and inactive accounts are indistinguishable to the caller.
func (a *Authenticator) SignIn(ctx context.Context, creds Credentials) (TokenPair, error) {
	const op = "auth.Authenticator.SignIn"

	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}
	user, err := a.users.FindByUsername(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			a.verifyDecoy(creds.Password)
			return TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := a.passwords.Verify(user.PasswordHash, creds.Password); err != nil {
		return TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if !user.Active() {
		return TokenPair{}, fmt.Errorf("%s: account disabled: %w", op, ErrInvalidCredentials)
	}
	return a.tokens.IssueAccessToken(ctx, user.Username, user.Roles)
}

// Refresh re-issues tokens for username from the refresh token in header. The
// token is checked before the user is looked up; an unknown, inactive or
// mismatching user is reported as ErrInvalidCredentials.
func (a *Authenticator) Refresh(ctx context.Context, username, header string) (TokenPair, error) {
	const op = "auth.Authenticator.Refresh"

	if strings.TrimSpace(username) == "" {
		return TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}
	if _, ok := StripBearer(header); !ok {
		return TokenPair{}, fmt.Errorf("%s: %w", op, ErrMissingToken)
	}
	pair, err := a.tokens.Refresh(ctx, header)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	if pair.Username != username {
		return TokenPair{}, fmt.Errorf("%s: subject mismatch: %w", op, ErrInvalidCredentials)
	}
	user, err := a.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	if !user.Active() {
		return TokenPair{}, fmt.Errorf("%s: account disabled: %w", op, ErrInvalidCredentials)
	}
	return pair, nil
}

// verifyDecoy spends the same hashing work as a real password check so that
// unknown usernames cannot be told apart by response time.
func (a *Authenticator) verifyDecoy(password string) {
	a.decoyOnce.Do(func() {
		hash, err := a.passwords.Hash("decoy-password-for-unknown-users")
		if err == nil {
			a.decoyHash = hash
		}
	})
	if a.decoyHash != "" {
		_ = a.passwords.Verify(a.decoyHash, password)
	}
}

// SignUp hashes the password and stores a new, fully enabled account.
func (a *Authenticator) SignUp(ctx context.Context, req SignUp) (*User, error) {
	const op = "auth.Authenticator.SignUp"

	username := strings.TrimSpace(req.Username)
	fullName := strings.TrimSpace(req.FullName)
	switch {
	case username == "" || req.Password == "" || fullName == "":
		return nil, fmt.Errorf("%s: %w: username, password and fullname are required", op, ErrInvalidInput)
	case utf8.RuneCountInString(username) > maxUsernameLen:
		return nil, fmt.Errorf("%s: %w: username longer than %d characters", op, ErrInvalidInput, maxUsernameLen)
	case utf8.RuneCountInString(fullName) > maxFullNameLen:
		return nil, fmt.Errorf("%s: %w: fullname longer than %d characters", op, ErrInvalidInput, maxFullNameLen)
	}

	hash, err := a.passwords.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: hash password: %w", op, err)
	}
	roles := req.Roles
	if len(roles) == 0 {
		roles = DefaultRoles
	}
	user := &User{
		Username:              username,
		FullName:              fullName,
		PasswordHash:          hash,
		AccountNonExpired:     true,
		AccountNonLocked:      true,
		CredentialsNonExpired: true,
		Enabled:               true,
		Roles:                 normalizeRoles(roles),
		CreatedAt:             a.now().UTC(),
	}
	if err := a.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrAlreadyExists)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}
