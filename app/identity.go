// Package app contains the application services that coordinate domain logic
// with the stores and chain adapters.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/artpar/trustmeter/domain/identity"
	"github.com/artpar/trustmeter/ports"
	"github.com/rs/zerolog"
)

// IdentityService maps wallet addresses to users and manages their sign-in nonces.
type IdentityService struct {
	users  ports.UserStore
	ids    ports.IDGenerator
	random ports.Random
	clock  ports.Clock
	logger zerolog.Logger
}

// NewIdentityService creates an identity service.
func NewIdentityService(users ports.UserStore, ids ports.IDGenerator, random ports.Random, clock ports.Clock, logger zerolog.Logger) *IdentityService {
	return &IdentityService{
		users:  users,
		ids:    ids,
		random: random,
		clock:  clock,
		logger: logger,
	}
}

// GetOrCreate returns the user for a wallet address, creating it with a fresh
// nonce on first sight. Concurrent first sightings resolve to a single user.
func (s *IdentityService) GetOrCreate(ctx context.Context, address string) (identity.User, error) {
	addr, err := identity.NormalizeAddress(address)
	if err != nil {
		return identity.User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	u, err := s.users.GetByAddress(ctx, addr)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return identity.User{}, fmt.Errorf("get user: %w", err)
	}

	nonce, err := s.random.Hex(identity.NonceBytes)
	if err != nil {
		return identity.User{}, fmt.Errorf("generate nonce: %w", err)
	}
	now := s.clock.Now()
	u = identity.User{
		ID:            s.ids.New(),
		Address:       addr,
		Nonce:         nonce,
		NonceIssuedAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.users.Create(ctx, u)
	switch {
	case err == nil:
		s.logger.Info().Str("user_id", u.ID).Str("address", addr).Msg("user created")
		return u, nil
	case errors.Is(err, ports.ErrDuplicate):
		// Lost the creation race; the winner's row is authoritative.
		return s.users.GetByAddress(ctx, addr)
	default:
		return identity.User{}, fmt.Errorf("create user: %w", err)
	}
}

// Get returns a user by ID.
func (s *IdentityService) Get(ctx context.Context, userID string) (identity.User, error) {
	u, err := s.users.Get(ctx, userID)
	if errors.Is(err, ports.ErrNotFound) {
		return identity.User{}, ErrNotFound
	}
	return u, err
}

// RotateNonce replaces the user's nonce if it is still u.Nonce.
// Returns ErrConflict if another caller rotated it first.
func (s *IdentityService) RotateNonce(ctx context.Context, u identity.User) (string, error) {
	nonce, err := s.random.Hex(identity.NonceBytes)
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	err = s.users.SwapNonce(ctx, u.ID, u.Nonce, nonce, s.clock.Now())
	switch {
	case err == nil:
		return nonce, nil
	case errors.Is(err, ports.ErrStateChanged):
		return "", ErrConflict
	case errors.Is(err, ports.ErrNotFound):
		return "", ErrNotFound
	default:
		return "", fmt.Errorf("rotate nonce: %w", err)
	}
}
