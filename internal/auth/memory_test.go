package auth

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	u := &User{Username: "alice", FullName: "Alice", Roles: []string{"MANAGER", "ADMIN", "ADMIN"}}
	require.NoError(t, store.Create(ctx, u))
	require.NotEqual(t, uuid.Nil, u.ID)
	require.False(t, u.CreatedAt.IsZero())

	require.ErrorIs(t, store.Create(ctx, &User{Username: "alice"}), ErrAlreadyExists)

	got, err := store.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, []string{"ADMIN", "MANAGER"}, got.Roles)

	got.Roles[0] = "mutated"
	again, err := store.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "ADMIN", again.Roles[0])

	_, err = store.FindByUsername(ctx, "bob")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &User{Username: "alice"}))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.FindByUsername(ctx, "alice")
			_ = store.Create(ctx, &User{Username: uuid.NewString()})
		}()
	}
	wg.Wait()
}
