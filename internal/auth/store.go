package auth

import (
	"context"
	"errors"
)

//go:generate mockgen -destination=mocks/mock_auth.go -package=mocks startup.org/internal/auth UserStore,PasswordHasher

// UserStore is the credential store boundary.
type UserStore interface {
	// FindByUsername returns the user with its roles loaded, or ErrNotFound.
	FindByUsername(ctx context.Context, username string) (*User, error)
	// Create persists u and its roles. A taken username yields ErrAlreadyExists.
	Create(ctx context.Context, u *User) error
}

// StoreResolver resolves principals from a UserStore. Unknown and inactive accounts
// both map to ErrPrincipalNotFound.
func StoreResolver(users UserStore) ResolverFunc {
	return func(ctx context.Context, username string) (Principal, error) {
		user, err := users.FindByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Principal{}, ErrPrincipalNotFound
			}
			return Principal{}, err
		}
		if !user.Active() {
			return Principal{}, ErrPrincipalNotFound
		}
		return NewPrincipal(user.Username, user.Roles), nil
	}
}
