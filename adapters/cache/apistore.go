// Package cache provides read-through caching decorators for stores.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/artpar/trustmeter/domain/catalog"
	"github.com/artpar/trustmeter/domain/wei"
	"github.com/artpar/trustmeter/ports"
	"github.com/rs/zerolog"
)

// Config sizes the API cache.
type Config struct {
	TTL       time.Duration // default 30s
	MaxSizeMB int           // 0 = unbounded
}

// APIStore caches API lookups in front of another ports.APIStore.
// Writes through this store invalidate the cached entry; writes made by
// other processes are visible after TTL.
type APIStore struct {
	next   ports.APIStore
	cache  *bigcache.BigCache
	logger zerolog.Logger
}

// apiEntry is the cached encoding of catalog.API.
type apiEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	Price     string    `json:"price"`
	Mirrored  bool      `json:"mirrored"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAPIStore wraps next with a bigcache-backed cache.
func NewAPIStore(ctx context.Context, next ports.APIStore, cfg Config, logger zerolog.Logger) (*APIStore, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	bc := bigcache.DefaultConfig(cfg.TTL)
	bc.CleanWindow = cfg.TTL
	bc.HardMaxCacheSize = cfg.MaxSizeMB
	bc.Verbose = false

	c, err := bigcache.New(ctx, bc)
	if err != nil {
		return nil, fmt.Errorf("create api cache: %w", err)
	}
	return &APIStore{next: next, cache: c, logger: logger}, nil
}

// Get returns the cached API or loads it from the underlying store.
func (s *APIStore) Get(ctx context.Context, id string) (catalog.API, error) {
	if raw, err := s.cache.Get(id); err == nil {
		if a, err := decodeAPI(raw); err == nil {
			return a, nil
		}
		s.invalidate(id)
	} else if !errors.Is(err, bigcache.ErrEntryNotFound) {
		s.logger.Debug().Err(err).Str("api_id", id).Msg("api cache read failed")
	}

	a, err := s.next.Get(ctx, id)
	if err != nil {
		return catalog.API{}, err
	}
	if raw, err := encodeAPI(a); err == nil {
		if err := s.cache.Set(id, raw); err != nil {
			s.logger.Debug().Err(err).Str("api_id", id).Msg("api cache write failed")
		}
	}
	return a, nil
}

// Create stores a new API.
func (s *APIStore) Create(ctx context.Context, a catalog.API) error {
	return s.next.Create(ctx, a)
}

// List is not cached.
func (s *APIStore) List(ctx context.Context) ([]catalog.API, error) {
	return s.next.List(ctx)
}

// ListByOwner is not cached.
func (s *APIStore) ListByOwner(ctx context.Context, ownerID string) ([]catalog.API, error) {
	return s.next.ListByOwner(ctx, ownerID)
}

// UpdatePrice writes through and drops the cached entry.
func (s *APIStore) UpdatePrice(ctx context.Context, id string, price *big.Int, at time.Time) error {
	defer s.invalidate(id)
	return s.next.UpdatePrice(ctx, id, price, at)
}

// SetMirrored writes through and drops the cached entry.
func (s *APIStore) SetMirrored(ctx context.Context, id string, mirrored bool) error {
	defer s.invalidate(id)
	return s.next.SetMirrored(ctx, id, mirrored)
}

// Close releases the cache.
func (s *APIStore) Close() error {
	return s.cache.Close()
}

func (s *APIStore) invalidate(id string) {
	if err := s.cache.Delete(id); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		s.logger.Debug().Err(err).Str("api_id", id).Msg("api cache delete failed")
	}
}

func encodeAPI(a catalog.API) ([]byte, error) {
	return json.Marshal(apiEntry{
		ID:        a.ID,
		Name:      a.Name,
		OwnerID:   a.OwnerID,
		Price:     wei.String(a.PricePerRequest),
		Mirrored:  a.ChainMirrored,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	})
}

func decodeAPI(raw []byte) (catalog.API, error) {
	var e apiEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return catalog.API{}, err
	}
	price, err := wei.Parse(e.Price)
	if err != nil {
		return catalog.API{}, err
	}
	return catalog.API{
		ID:              e.ID,
		Name:            e.Name,
		OwnerID:         e.OwnerID,
		PricePerRequest: price,
		ChainMirrored:   e.Mirrored,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}, nil
}

// Ensure interface compliance.
var _ ports.APIStore = (*APIStore)(nil)
