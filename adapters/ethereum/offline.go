package ethereum

import (
	"context"

	"github.com/artpar/trustmeter/domain/catalog"
	"github.com/artpar/trustmeter/domain/settlement"
	"github.com/artpar/trustmeter/ports"
)

// Offline stands in for the chain when no RPC endpoint is configured.
// Every call returns ports.ErrChainNotConfigured.
type Offline struct{}

// Transaction always reports the chain as unavailable.
func (Offline) Transaction(ctx context.Context, hash string) (settlement.Transaction, error) {
	return settlement.Transaction{}, ports.ErrChainNotConfigured
}

// RegisterAPI always reports the chain as unavailable.
func (Offline) RegisterAPI(ctx context.Context, api catalog.API, ownerAddress string) error {
	return ports.ErrChainNotConfigured
}

var (
	_ ports.ChainReader    = Offline{}
	_ ports.ChainRegistrar = Offline{}
)
