package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the decoded payload of an access or refresh token.
type Claims struct {
	Subject   string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Issuer    string
}

// wireClaims maps Claims onto the JWT payload keys sub, roles, iat, exp and iss.
type wireClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Codec signs and verifies compact HS256 tokens. It is immutable and safe for
// concurrent use.
type Codec struct {
	key    []byte
	parser *jwt.Parser
}

// NewCodec derives the HMAC key from secret. The secret is base64 encoded once and
// the encoded bytes are used as the key, so tokens stay compatible with issuers that
// apply the same normalization.
func NewCodec(secret string) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	key := []byte(base64.StdEncoding.EncodeToString([]byte(secret)))
	return &Codec{
		key: key,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
			jwt.WithStrictDecoding(),
		),
	}, nil
}

// Encode serializes and signs claims. Timestamps are truncated to whole seconds.
// Roles are encoded as a sorted set; names are kept byte for byte.
func (c *Codec) Encode(claims Claims) (string, error) {
	const op = "auth.Codec.Encode"

	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("%s: %w: empty subject", op, ErrInvalidClaims)
	}
	iat := claims.IssuedAt.Truncate(time.Second)
	exp := claims.ExpiresAt.Truncate(time.Second)
	if !exp.After(iat) {
		return "", fmt.Errorf("%s: %w: expiry must be after issue time", op, ErrInvalidClaims)
	}

	wc := wireClaims{
		Roles: roleSet(claims.Roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			Issuer:    claims.Issuer,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, wc).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// Decode verifies the signature of token and returns its claims. Expiry is not
// checked here; callers compare ExpiresAt against their own clock.
func (c *Codec) Decode(token string) (Claims, error) {
	const op = "auth.Codec.Decode"

	var wc wireClaims
	_, err := c.parser.ParseWithClaims(token, &wc, func(*jwt.Token) (any, error) {
		return c.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return Claims{}, fmt.Errorf("%s: %w", op, ErrMalformed)
		}
		return Claims{}, fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}
	if wc.Subject == "" || wc.IssuedAt == nil || wc.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%s: %w: missing registered claims", op, ErrMalformed)
	}

	return Claims{
		Subject:   wc.Subject,
		Roles:     roleSet(wc.Roles),
		IssuedAt:  wc.IssuedAt.Time,
		ExpiresAt: wc.ExpiresAt.Time,
		Issuer:    wc.Issuer,
	}, nil
}

// roleSet dedupes and sorts roles without altering the names. The result is
// never nil so the payload always carries a JSON array.
func roleSet(roles []string) []string {
	out := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// normalizeRoles trims and drops blank names before building the set. Stores use
// it on input; names stay case sensitive.
func normalizeRoles(roles []string) []string {
	trimmed := make([]string, 0, len(roles))
	for _, r := range roles {
		if r = strings.TrimSpace(r); r != "" {
			trimmed = append(trimmed, r)
		}
	}
	return roleSet(trimmed)
}
