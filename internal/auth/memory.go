package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ UserStore = (*MemoryStore)(nil)

// MemoryStore is an in-process UserStore for local runs and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]User)}
}

func (s *MemoryStore) FindByUsername(_ context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	u.Roles = append([]string(nil), u.Roles...)
	return &u, nil
}

func (s *MemoryStore) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Username]; ok {
		return ErrAlreadyExists
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	stored := *u
	stored.Roles = normalizeRoles(u.Roles)
	s.users[u.Username] = stored
	return nil
}
