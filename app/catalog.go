package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/artpar/trustmeter/domain/catalog"
	"github.com/artpar/trustmeter/domain/identity"
	"github.com/artpar/trustmeter/ports"
	"github.com/rs/zerolog"
)

// DefaultRegisterTimeout bounds the on-chain mirror check during registration.
const DefaultRegisterTimeout = 10 * time.Second

// CatalogService manages registered APIs.
type CatalogService struct {
	apis      ports.APIStore
	users     ports.UserStore
	registrar ports.ChainRegistrar
	ids       ports.IDGenerator
	clock     ports.Clock
	observer  ports.Observer
	logger    zerolog.Logger

	// RegisterTimeout bounds the registrar call. Zero uses DefaultRegisterTimeout.
	RegisterTimeout time.Duration
}

// NewCatalogService creates a catalog service. registrar may be nil.
func NewCatalogService(apis ports.APIStore, users ports.UserStore, registrar ports.ChainRegistrar, ids ports.IDGenerator, clock ports.Clock, observer ports.Observer, logger zerolog.Logger) *CatalogService {
	return &CatalogService{
		apis:      apis,
		users:     users,
		registrar: registrar,
		ids:       ids,
		clock:     clock,
		observer:  observerOrNop(observer),
		logger:    logger,
	}
}

// Register creates an API owned by ownerID. On-chain mirroring is attempted
// afterwards; its failure is logged and counted but does not fail registration.
func (s *CatalogService) Register(ctx context.Context, ownerID, name string, price *big.Int) (catalog.API, error) {
	owner, err := s.users.Get(ctx, ownerID)
	if errors.Is(err, ports.ErrNotFound) {
		return catalog.API{}, ErrNotFound
	}
	if err != nil {
		return catalog.API{}, fmt.Errorf("get owner: %w", err)
	}

	api, err := catalog.New(s.ids.New(), owner.ID, name, price, s.clock.Now())
	if err != nil {
		return catalog.API{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.apis.Create(ctx, api); err != nil {
		return catalog.API{}, fmt.Errorf("create api: %w", err)
	}

	s.logger.Info().
		Str("api_id", api.ID).
		Str("owner_id", owner.ID).
		Str("price_wei", api.PricePerRequest.String()).
		Msg("api registered")

	if s.mirror(ctx, api, owner) {
		api.ChainMirrored = true
	}
	return api, nil
}

// mirror registers the API on chain. It reports whether the API is now mirrored.
func (s *CatalogService) mirror(ctx context.Context, api catalog.API, owner identity.User) bool {
	if s.registrar == nil {
		return false
	}

	timeout := s.RegisterTimeout
	if timeout <= 0 {
		timeout = DefaultRegisterTimeout
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.registrar.RegisterAPI(rctx, api, owner.Address)
	switch {
	case err == nil:
	case errors.Is(err, ports.ErrChainNotConfigured):
		s.logger.Debug().Err(err).Str("api_id", api.ID).Msg("chain mirroring skipped")
		return false
	default:
		s.observer.ChainRegistrationFailed()
		s.logger.Warn().Err(err).Str("api_id", api.ID).Msg("chain mirroring failed")
		return false
	}

	if err := s.apis.SetMirrored(ctx, api.ID, true); err != nil {
		s.logger.Warn().Err(err).Str("api_id", api.ID).Msg("failed to record chain mirroring")
		return false
	}
	return true
}

// Get returns an API by ID.
func (s *CatalogService) Get(ctx context.Context, id string) (catalog.API, error) {
	a, err := s.apis.Get(ctx, id)
	if errors.Is(err, ports.ErrNotFound) {
		return catalog.API{}, ErrNotFound
	}
	return a, err
}

// List returns all registered APIs.
func (s *CatalogService) List(ctx context.Context) ([]catalog.API, error) {
	return s.apis.List(ctx)
}

// ListByOwner returns the APIs owned by a user.
func (s *CatalogService) ListByOwner(ctx context.Context, ownerID string) ([]catalog.API, error) {
	return s.apis.ListByOwner(ctx, ownerID)
}

// UpdatePrice changes the price charged for future requests.
// Pending charges already recorded are unaffected.
func (s *CatalogService) UpdatePrice(ctx context.Context, callerID, apiID string, price *big.Int) (catalog.API, error) {
	if err := catalog.ValidatePrice(price); err != nil {
		return catalog.API{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	api, err := s.Get(ctx, apiID)
	if err != nil {
		return catalog.API{}, err
	}
	if !api.IsOwnedBy(callerID) {
		return catalog.API{}, ErrForbidden
	}

	if err := s.apis.UpdatePrice(ctx, apiID, price, s.clock.Now()); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return catalog.API{}, ErrNotFound
		}
		return catalog.API{}, fmt.Errorf("update price: %w", err)
	}

	s.logger.Info().
		Str("api_id", apiID).
		Str("old_price_wei", api.PricePerRequest.String()).
		Str("new_price_wei", price.String()).
		Msg("api price updated")
	return s.Get(ctx, apiID)
}
