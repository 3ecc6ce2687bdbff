package memory

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/artpar/trustmeter/domain/catalog"
	"github.com/artpar/trustmeter/domain/wei"
	"github.com/artpar/trustmeter/ports"
)

// APIStore is an in-memory implementation of ports.APIStore.
type APIStore struct {
	mu   sync.RWMutex
	apis map[string]catalog.API
}

// NewAPIStore creates a new in-memory API store.
func NewAPIStore() *APIStore {
	return &APIStore{apis: make(map[string]catalog.API)}
}

// Get retrieves an API by ID.
func (s *APIStore) Get(ctx context.Context, id string) (catalog.API, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.apis[id]
	if !ok {
		return catalog.API{}, ports.ErrNotFound
	}
	return cloneAPI(a), nil
}

// Create stores a new API.
func (s *APIStore) Create(ctx context.Context, a catalog.API) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.apis[a.ID]; exists {
		return ports.ErrDuplicate
	}
	s.apis[a.ID] = cloneAPI(a)
	return nil
}

// List returns all APIs ordered by creation time.
func (s *APIStore) List(ctx context.Context) ([]catalog.API, error) {
	return s.filter(func(catalog.API) bool { return true }), nil
}

// ListByOwner returns APIs owned by ownerID.
func (s *APIStore) ListByOwner(ctx context.Context, ownerID string) ([]catalog.API, error) {
	return s.filter(func(a catalog.API) bool { return a.OwnerID == ownerID }), nil
}

// UpdatePrice sets the price for future requests.
func (s *APIStore) UpdatePrice(ctx context.Context, id string, price *big.Int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.apis[id]
	if !ok {
		return ports.ErrNotFound
	}
	a.PricePerRequest = wei.Copy(price)
	a.UpdatedAt = at
	s.apis[id] = a
	return nil
}

// SetMirrored records on-chain registration status.
func (s *APIStore) SetMirrored(ctx context.Context, id string, mirrored bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.apis[id]
	if !ok {
		return ports.ErrNotFound
	}
	a.ChainMirrored = mirrored
	s.apis[id] = a
	return nil
}

func (s *APIStore) filter(keep func(catalog.API) bool) []catalog.API {
	s.mu.RLock()
	out := make([]catalog.API, 0, len(s.apis))
	for _, a := range s.apis {
		if keep(a) {
			out = append(out, cloneAPI(a))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func cloneAPI(a catalog.API) catalog.API {
	a.PricePerRequest = wei.Copy(a.PricePerRequest)
	return a
}

var _ ports.APIStore = (*APIStore)(nil)
