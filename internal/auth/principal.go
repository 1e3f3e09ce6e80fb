package auth

import (
	"context"
	"sort"
	"strings"
)

// Principal is the authenticated identity bound to a single request.
type Principal struct {
	Username string
	Roles    map[string]struct{}
}

// NewPrincipal builds a principal with a role set. Blank role names are ignored.
func NewPrincipal(username string, roles []string) Principal {
	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		set[r] = struct{}{}
	}
	return Principal{Username: username, Roles: set}
}

// HasRole reports whether the principal holds role.
func (p Principal) HasRole(role string) bool {
	_, ok := p.Roles[role]
	return ok
}

// RoleList returns the role names in sorted order.
func (p Principal) RoleList() []string {
	out := make([]string, 0, len(p.Roles))
	for r := range p.Roles {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Role names assigned by the user store.
const (
	RoleAdmin      = "ADMIN"
	RoleManager    = "MANAGER"
	RoleCommonUser = "COMMON_USER"
)

// PrincipalResolver loads the authoritative identity for a token subject.
// Implementations must return ErrPrincipalNotFound for unknown or disabled users.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, username string) (Principal, error)
}

// ResolverFunc adapts a function to PrincipalResolver.
type ResolverFunc func(ctx context.Context, username string) (Principal, error)

func (f ResolverFunc) ResolvePrincipal(ctx context.Context, username string) (Principal, error) {
	return f(ctx, username)
}
