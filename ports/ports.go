// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/artpar/trustmeter/domain/catalog"
	"github.com/artpar/trustmeter/domain/identity"
	"github.com/artpar/trustmeter/domain/settlement"
	"github.com/artpar/trustmeter/domain/usage"
)

// -----------------------------------------------------------------------------
// Store Errors
// -----------------------------------------------------------------------------

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a uniqueness constraint rejects a write.
	ErrDuplicate = errors.New("duplicate")

	// ErrConflict is returned on transient contention (busy database, serialization failure).
	// Callers may retry.
	ErrConflict = errors.New("conflict")

	// ErrStateChanged is returned when a conditional update finds the record
	// no longer in the expected state.
	ErrStateChanged = errors.New("state changed")
)

// -----------------------------------------------------------------------------
// Chain Errors
// -----------------------------------------------------------------------------

var (
	// ErrTxNotFound is returned when the node does not know the transaction.
	ErrTxNotFound = errors.New("transaction not found")

	// ErrTxPending is returned when the transaction is known but not mined.
	ErrTxPending = errors.New("transaction pending")

	// ErrChainUnavailable is returned when the chain node cannot be reached.
	ErrChainUnavailable = errors.New("chain unavailable")

	// ErrChainNotConfigured is returned when the service runs without a chain node.
	// It wraps ErrChainUnavailable.
	ErrChainNotConfigured = fmt.Errorf("%w: no chain node configured", ErrChainUnavailable)
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// Random abstracts randomness for testability.
type Random interface {
	// Bytes generates n random bytes.
	Bytes(n int) ([]byte, error)
	// Hex generates n random bytes, hex-encoded (2n characters).
	Hex(n int) (string, error)
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// UserStore persists wallet identities.
type UserStore interface {
	// Get retrieves a user by ID.
	Get(ctx context.Context, id string) (identity.User, error)

	// GetByAddress retrieves a user by normalized wallet address.
	GetByAddress(ctx context.Context, address string) (identity.User, error)

	// Create stores a new user. Returns ErrDuplicate if the address exists.
	Create(ctx context.Context, u identity.User) error

	// SwapNonce replaces the nonce only if it still equals oldNonce.
	// Returns ErrStateChanged otherwise.
	SwapNonce(ctx context.Context, userID, oldNonce, newNonce string, issuedAt time.Time) error

	// List returns users ordered by creation time.
	List(ctx context.Context, limit int) ([]identity.User, error)
}

// APIStore persists registered APIs.
type APIStore interface {
	// Get retrieves an API by ID.
	Get(ctx context.Context, id string) (catalog.API, error)

	// Create stores a new API.
	Create(ctx context.Context, a catalog.API) error

	// List returns all APIs ordered by creation time.
	List(ctx context.Context) ([]catalog.API, error)

	// ListByOwner returns APIs owned by a user.
	ListByOwner(ctx context.Context, ownerID string) ([]catalog.API, error)

	// UpdatePrice sets the price charged for future requests.
	UpdatePrice(ctx context.Context, id string, price *big.Int, at time.Time) error

	// SetMirrored records that the API was registered on chain.
	SetMirrored(ctx context.Context, id string, mirrored bool) error
}

// UsageStore persists usage periods. Implementations serialize writes per (user, api).
type UsageStore interface {
	// Increment atomically finds or creates the open period for (userID, apiID)
	// and records one request charged at price. newID is used if a period is created.
	// Returns ErrConflict on transient contention.
	Increment(ctx context.Context, userID, apiID, newID string, price *big.Int, at time.Time) (usage.Period, error)

	// GetOpen returns the open period for (userID, apiID), or ErrNotFound.
	GetOpen(ctx context.Context, userID, apiID string) (usage.Period, error)

	// CloseOpen closes the open period for (userID, apiID) under batchID.
	// Returns ErrNotFound if there is no open period and usage.ErrEmptyPeriod
	// if it has no requests.
	CloseOpen(ctx context.Context, userID, apiID, batchID string, at time.Time) (usage.Period, error)

	// GetByBatch returns the period frozen under batchID, or ErrNotFound.
	GetByBatch(ctx context.Context, batchID string) (usage.Period, error)

	// MarkSettled moves a closed period to settled. Returns ErrStateChanged if the
	// period is not closed and ErrDuplicate if txHash already settled another batch.
	MarkSettled(ctx context.Context, batchID, txHash string, at time.Time) (usage.Period, error)

	// List returns periods matching the filter, newest first.
	List(ctx context.Context, f usage.Filter) ([]usage.Period, error)
}

// -----------------------------------------------------------------------------
// Authentication Ports
// -----------------------------------------------------------------------------

// SignatureVerifier checks wallet signatures. Verify must not panic on malformed input.
type SignatureVerifier interface {
	Verify(message string, signature []byte, claimedAddress string) bool
}

// SessionClaims identifies a user authenticated by a session token.
type SessionClaims struct {
	UserID    string
	Address   string
	ExpiresAt time.Time
}

// SessionIssuer issues and validates session tokens.
type SessionIssuer interface {
	Issue(userID, address string) (token string, expiresAt time.Time, err error)
	Validate(token string) (SessionClaims, error)
}

// -----------------------------------------------------------------------------
// Chain Ports
// -----------------------------------------------------------------------------

// ChainReader reads payment transactions. Callers apply their own timeout.
type ChainReader interface {
	// Transaction returns the transaction with its receipt status and confirmations.
	// Returns ErrTxNotFound or ErrTxPending when it is not yet usable.
	Transaction(ctx context.Context, hash string) (settlement.Transaction, error)
}

// ChainRegistrar mirrors catalog registrations on chain.
type ChainRegistrar interface {
	// RegisterAPI checks that ownerAddress can register api on the settlement contract.
	RegisterAPI(ctx context.Context, api catalog.API, ownerAddress string) error
}

// SettlementEncoder renders the calldata a payer submits in contract settlement mode.
type SettlementEncoder interface {
	EncodeSettleCall(call settlement.SettleCall) ([]byte, error)
}

// -----------------------------------------------------------------------------
// Observability Ports
// -----------------------------------------------------------------------------

// Observer receives domain events for metrics. Implementations must be cheap
// and must not block.
type Observer interface {
	AuthFailed(reason string)
	UsageRecorded(apiID string, charged *big.Int)
	BatchClosed(apiID string, amount *big.Int)
	SettlementConfirmed(mode string)
	SettlementRejected(reason string)
	StoreConflict(op string)
	ChainRegistrationFailed()
}
