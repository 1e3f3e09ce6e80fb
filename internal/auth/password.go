package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes new passwords and verifies submitted ones.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify returns nil when password matches hash.
	Verify(hash, password string) error
}

// BcryptHasher implements PasswordHasher with bcrypt. Zero Cost means bcrypt.DefaultCost.
type BcryptHasher struct {
	Cost int
}

func (b BcryptHasher) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return hashPassword(password, cost)
}

func (BcryptHasher) Verify(hash, password string) error {
	return VerifyPassword(hash, password)
}

func hashPassword(password string, cost int) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares plaintext password with stored hash.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
