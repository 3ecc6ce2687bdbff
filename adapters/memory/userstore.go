// Package memory provides in-memory store implementations for tests and
// single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/artpar/trustmeter/domain/identity"
	"github.com/artpar/trustmeter/ports"
)

// UserStore is an in-memory implementation of ports.UserStore.
type UserStore struct {
	mu        sync.RWMutex
	users     map[string]identity.User // by ID
	byAddress map[string]string        // address -> ID
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		users:     make(map[string]identity.User),
		byAddress: make(map[string]string),
	}
}

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, id string) (identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return identity.User{}, ports.ErrNotFound
	}
	return u, nil
}

// GetByAddress retrieves a user by wallet address.
func (s *UserStore) GetByAddress(ctx context.Context, address string) (identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byAddress[address]
	if !ok {
		return identity.User{}, ports.ErrNotFound
	}
	return s.users[id], nil
}

// Create stores a new user.
func (s *UserStore) Create(ctx context.Context, u identity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byAddress[u.Address]; exists {
		return ports.ErrDuplicate
	}
	if _, exists := s.users[u.ID]; exists {
		return ports.ErrDuplicate
	}
	s.users[u.ID] = u
	s.byAddress[u.Address] = u.ID
	return nil
}

// SwapNonce replaces the nonce if it still equals oldNonce.
func (s *UserStore) SwapNonce(ctx context.Context, userID, oldNonce, newNonce string, issuedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ports.ErrNotFound
	}
	if u.Nonce != oldNonce {
		return ports.ErrStateChanged
	}
	s.users[userID] = u.WithNonce(newNonce, issuedAt)
	return nil
}

// List returns users ordered by creation time.
func (s *UserStore) List(ctx context.Context, limit int) ([]identity.User, error) {
	s.mu.RLock()
	out := make([]identity.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ ports.UserStore = (*UserStore)(nil)
