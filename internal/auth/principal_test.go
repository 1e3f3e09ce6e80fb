package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrincipalRoles(t *testing.T) {
	principal := NewPrincipal("alice", []string{"MANAGER", " ADMIN", "", "MANAGER"})

	require.True(t, principal.HasRole("ADMIN"))
	require.True(t, principal.HasRole("MANAGER"))
	require.False(t, principal.HasRole("admin"), "role names are case sensitive")
	require.False(t, principal.HasRole(""))
	require.Equal(t, []string{"ADMIN", "MANAGER"}, principal.RoleList())
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	require.False(t, ok)

	ctx := ContextWithPrincipal(context.Background(), NewPrincipal("alice", []string{"ADMIN"}))
	p, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "alice", p.Username)
	require.True(t, p.HasRole("ADMIN"))
}

func TestIssuerContext(t *testing.T) {
	_, ok := IssuerFromContext(context.Background())
	require.False(t, ok)

	require.Equal(t, context.Background(), ContextWithIssuer(context.Background(), ""))

	iss, ok := IssuerFromContext(ContextWithIssuer(context.Background(), "http://localhost:8080"))
	require.True(t, ok)
	require.Equal(t, "http://localhost:8080", iss)
}

func TestStoreResolver(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &User{
		Username: "alice", Enabled: true, AccountNonLocked: true, AccountNonExpired: true, CredentialsNonExpired: true,
		Roles: []string{"ADMIN"},
	}))
	require.NoError(t, store.Create(ctx, &User{
		Username: "locked", Enabled: true, AccountNonLocked: false, AccountNonExpired: true, CredentialsNonExpired: true,
	}))

	resolve := StoreResolver(store)

	p, err := resolve.ResolvePrincipal(ctx, "alice")
	require.NoError(t, err)
	require.True(t, p.HasRole("ADMIN"))

	_, err = resolve.ResolvePrincipal(ctx, "locked")
	require.ErrorIs(t, err, ErrPrincipalNotFound)

	_, err = resolve.ResolvePrincipal(ctx, "nobody")
	require.ErrorIs(t, err, ErrPrincipalNotFound)
}
