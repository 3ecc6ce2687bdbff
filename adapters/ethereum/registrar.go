package ethereum

import (
	"context"
	"errors"
	"fmt"

	"github.com/artpar/trustmeter/domain/catalog"
	"github.com/artpar/trustmeter/ports"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// ErrContractNotDeployed is returned when the settlement contract address has no code.
var ErrContractNotDeployed = errors.New("settlement contract not deployed")

// Registrar implements ports.ChainRegistrar by simulating registerApi with
// eth_call from the owner's address. Nothing is submitted.
type Registrar struct {
	client   rpcClient
	contract common.Address
}

// NewRegistrar creates a registrar for the contract at address.
func NewRegistrar(c *Client, contract string) *Registrar {
	return newRegistrar(c.rpc, contract)
}

func newRegistrar(client rpcClient, contract string) *Registrar {
	return &Registrar{client: client, contract: common.HexToAddress(contract)}
}

// RegisterAPI checks that the contract exists and would accept the registration.
func (r *Registrar) RegisterAPI(ctx context.Context, api catalog.API, ownerAddress string) error {
	code, err := r.client.CodeAt(ctx, r.contract, nil)
	if err != nil {
		return classify(err, ErrContractNotDeployed)
	}
	if len(code) == 0 {
		return ErrContractNotDeployed
	}

	data, err := encodeRegisterAPI(api.Name, api.PricePerRequest)
	if err != nil {
		return fmt.Errorf("encode registerApi: %w", err)
	}

	msg := ethereum.CallMsg{
		From: common.HexToAddress(ownerAddress),
		To:   &r.contract,
		Data: data,
	}
	if _, err := r.client.CallContract(ctx, msg, nil); err != nil {
		return fmt.Errorf("simulate registerApi: %w", err)
	}
	return nil
}

var _ ports.ChainRegistrar = (*Registrar)(nil)
