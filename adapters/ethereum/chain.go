package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/artpar/trustmeter/domain/settlement"
	"github.com/artpar/trustmeter/ports"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// rpcClient is the subset of *ethclient.Client used by the adapters.
type rpcClient interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client is a JSON-RPC connection to an Ethereum node.
type Client struct {
	rpc     *ethclient.Client
	chainID *big.Int
}

// Dial connects to the node at url and reads its chain ID.
func Dial(ctx context.Context, url string) (*Client, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	id, err := c.ChainID(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	return &Client{rpc: c, chainID: id}, nil
}

// ChainID returns the node's chain ID.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Ping checks that the node answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.rpc.BlockNumber(ctx)
	return err
}

// Close closes the connection.
func (c *Client) Close() {
	c.rpc.Close()
}

var _ ports.Pinger = (*Client)(nil)

// Reader implements ports.ChainReader.
type Reader struct {
	client rpcClient
	signer types.Signer
}

// NewReader creates a reader from a dialed client.
func NewReader(c *Client) *Reader {
	return newReader(c.rpc, c.chainID)
}

func newReader(client rpcClient, chainID *big.Int) *Reader {
	return &Reader{
		client: client,
		signer: types.LatestSignerForChainID(chainID),
	}
}

// Transaction returns the mined transaction with its receipt status and confirmation depth.
func (r *Reader) Transaction(ctx context.Context, hash string) (settlement.Transaction, error) {
	h := common.HexToHash(hash)

	tx, pending, err := r.client.TransactionByHash(ctx, h)
	if err != nil {
		return settlement.Transaction{}, classify(err, ports.ErrTxNotFound)
	}
	if pending {
		return settlement.Transaction{}, ports.ErrTxPending
	}

	receipt, err := r.client.TransactionReceipt(ctx, h)
	if err != nil {
		return settlement.Transaction{}, classify(err, ports.ErrTxPending)
	}

	head, err := r.client.BlockNumber(ctx)
	if err != nil {
		return settlement.Transaction{}, classify(err, ports.ErrTxPending)
	}

	from, err := types.Sender(r.signer, tx)
	if err != nil {
		return settlement.Transaction{}, fmt.Errorf("%w: recover sender: %v", settlement.ErrMismatch, err)
	}

	out := settlement.Transaction{
		Hash:      strings.ToLower(h.Hex()),
		From:      strings.ToLower(from.Hex()),
		Value:     tx.Value(),
		Succeeded: receipt.Status == types.ReceiptStatusSuccessful,
	}
	if to := tx.To(); to != nil {
		out.To = strings.ToLower(to.Hex())
	}
	if receipt.BlockNumber != nil && head >= receipt.BlockNumber.Uint64() {
		out.Confirmations = head - receipt.BlockNumber.Uint64() + 1
	}
	// calldata for other methods decodes to nil and fails verification in contract mode
	if call, err := DecodeSettleCall(tx.Data()); err == nil {
		out.Call = call
	}
	return out, nil
}

var _ ports.ChainReader = (*Reader)(nil)

// classify maps node errors: NotFound becomes notFound, anything else is
// reported as the chain being unavailable.
func classify(err, notFound error) error {
	if errors.Is(err, ethereum.NotFound) {
		return notFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ports.ErrChainUnavailable, err)
}
