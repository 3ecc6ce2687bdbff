package bootstrap

import (
	"context"
	"fmt"

	"github.com/artpar/trustmeter/adapters/ethereum"
	"github.com/artpar/trustmeter/config"
	"github.com/artpar/trustmeter/ports"
	"github.com/rs/zerolog"
)

// Chain holds the chain-facing adapters.
type Chain struct {
	Reader    ports.ChainReader
	Registrar ports.ChainRegistrar // nil unless chain.verify_contract is set
	Encoder   ports.SettlementEncoder
	Pinger    ports.Pinger // nil when running offline

	client *ethereum.Client
}

// Close closes the node connection.
func (c *Chain) Close() {
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
}

// OpenChain connects to the configured node. Without an RPC URL the service
// runs offline: settlements stay unconfirmed and registrations are not mirrored.
func OpenChain(ctx context.Context, cfg config.ChainConfig, expectedChainID int64, logger zerolog.Logger) (*Chain, error) {
	c := &Chain{Encoder: ethereum.Encoder{}}

	if cfg.RPCURL == "" {
		logger.Warn().Msg("no chain.rpc_url configured; settlements cannot be confirmed")
		c.Reader = ethereum.Offline{}
		if cfg.VerifyContract {
			c.Registrar = ethereum.Offline{}
		}
		return c, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	client, err := ethereum.Dial(dialCtx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect chain: %w", err)
	}

	chainID := client.ChainID()
	if expectedChainID != 0 && chainID.Int64() != expectedChainID {
		logger.Warn().
			Str("node_chain_id", chainID.String()).
			Int64("auth_chain_id", expectedChainID).
			Msg("node chain id differs from the chain id in sign-in messages")
	}

	c.client = client
	c.Reader = ethereum.NewReader(client)
	c.Pinger = client
	if cfg.VerifyContract && cfg.ContractAddress != "" {
		c.Registrar = ethereum.NewRegistrar(client, cfg.ContractAddress)
	}

	logger.Info().
		Str("chain_id", chainID.String()).
		Str("settlement_mode", cfg.SettlementMode).
		Msg("chain connected")
	return c, nil
}
