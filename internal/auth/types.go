package auth

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// User is an account known to the credential store.
type User struct {
	ID                    uuid.UUID
	Username              string
	FullName              string
	PasswordHash          string
	AccountNonExpired     bool
	AccountNonLocked      bool
	CredentialsNonExpired bool
	Enabled               bool
	// Roles holds the descriptions of the permissions granted to the user.
	Roles     []string
	CreatedAt time.Time
}

// Active reports whether every account status flag allows authentication.
func (u *User) Active() bool {
	return u != nil && u.Enabled && u.AccountNonLocked && u.AccountNonExpired && u.CredentialsNonExpired
}

// Credentials is a username and plaintext password pair submitted at sign-in.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username:%q, Password:***}", c.Username)
}

// LogValue keeps the password out of structured logs.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(slog.String("username", c.Username))
}

// SignUp describes a new account.
type SignUp struct {
	Username string
	Password string
	FullName string
	Roles    []string
}

// TokenPair is the result of a successful sign-in or refresh. It is never mutated;
// a refresh produces a new value.
type TokenPair struct {
	Username         string
	Authenticated    bool
	CreatedAt        time.Time
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
	AccessToken      string
	RefreshToken     string
}
