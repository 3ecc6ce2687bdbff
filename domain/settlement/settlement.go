// Package settlement provides settlement batch types and on-chain payment verification.
// All functions are pure - no side effects.
package settlement

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/artpar/trustmeter/domain/usage"
	"github.com/artpar/trustmeter/domain/wei"
)

// Mode selects how a batch is paid on chain.
type Mode string

const (
	ModeDirect   Mode = "direct"   // plain value transfer to the API owner
	ModeContract Mode = "contract" // settlePayment call on the settlement contract
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeDirect || m == ModeContract
}

// Verification errors. Every mismatch wraps ErrMismatch.
var (
	ErrMismatch                  = errors.New("transaction does not match batch")
	ErrInsufficientConfirmations = errors.New("transaction has too few confirmations")
	ErrInvalidTxHash             = errors.New("invalid transaction hash")
	ErrInvalidBatchID            = errors.New("invalid batch id")
)

// Batch is the immutable settlement view of a closed or settled usage period.
type Batch struct {
	ID            string
	PeriodID      string
	UserID        string
	APIID         string
	ContractAPIID *big.Int
	PayerAddress  string
	OwnerAddress  string
	RequestCount  int64
	Amount        *big.Int // wei
	State         usage.State
	ClosedAt      time.Time
	SettleTxHash  string
	SettledAt     *time.Time
}

// NewBatch derives a batch from a closed or settled period.
func NewBatch(p usage.Period, payer, owner string, contractAPIID *big.Int) Batch {
	b := Batch{
		ID:            p.BatchID,
		PeriodID:      p.ID,
		UserID:        p.UserID,
		APIID:         p.APIID,
		ContractAPIID: wei.Copy(contractAPIID),
		PayerAddress:  payer,
		OwnerAddress:  owner,
		RequestCount:  p.RequestCount,
		Amount:        wei.Copy(p.PendingPayment),
		State:         p.State,
		SettleTxHash:  p.SettleTxHash,
		SettledAt:     p.SettledAt,
	}
	if p.ClosedAt != nil {
		b.ClosedAt = *p.ClosedAt
	}
	return b
}

// Settled reports whether the batch has been confirmed.
func (b Batch) Settled() bool {
	return b.State == usage.StateSettled
}

// SettleCall holds the arguments of settlePayment(bytes32,address,uint256,uint256).
type SettleCall struct {
	BatchID      string // 64 lower-case hex characters, no prefix
	User         string
	APIID        *big.Int
	RequestCount *big.Int
}

// Instruction tells the payer how to pay a batch.
type Instruction struct {
	Batch Batch
	Mode  Mode
	PayTo string
	Value *big.Int
	Call  *SettleCall // set in contract mode
}

// NewInstruction builds the payment instruction for a batch.
func NewInstruction(b Batch, mode Mode, contract string) Instruction {
	in := Instruction{
		Batch: b,
		Mode:  mode,
		PayTo: b.OwnerAddress,
		Value: wei.Copy(b.Amount),
	}
	if mode == ModeContract {
		in.PayTo = contract
		in.Call = &SettleCall{
			BatchID:      b.ID,
			User:         b.PayerAddress,
			APIID:        wei.Copy(b.ContractAPIID),
			RequestCount: big.NewInt(b.RequestCount),
		}
	}
	return in
}

// Transaction is the chain's view of a payment transaction.
type Transaction struct {
	Hash          string
	From          string
	To            string // empty for contract creation
	Value         *big.Int
	Succeeded     bool
	Confirmations uint64
	Call          *SettleCall // decoded settlePayment arguments, if any
}

// Expectation describes what a valid payment must look like.
type Expectation struct {
	Mode             Mode
	Contract         string
	MinConfirmations uint64
}

// Verify checks that tx pays batch b as described by exp.
// Content mismatches wrap ErrMismatch; too few confirmations return ErrInsufficientConfirmations.
func Verify(b Batch, tx Transaction, exp Expectation) error {
	if !strings.EqualFold(tx.From, b.PayerAddress) {
		return fmt.Errorf("%w: sender %s is not the payer", ErrMismatch, tx.From)
	}
	if !wei.Equal(tx.Value, b.Amount) {
		return fmt.Errorf("%w: value %s, expected %s", ErrMismatch, wei.String(tx.Value), wei.String(b.Amount))
	}

	switch exp.Mode {
	case ModeContract:
		if exp.Contract == "" || !strings.EqualFold(tx.To, exp.Contract) {
			return fmt.Errorf("%w: recipient %s is not the settlement contract", ErrMismatch, tx.To)
		}
		if err := verifyCall(b, tx.Call); err != nil {
			return err
		}
	default:
		if !strings.EqualFold(tx.To, b.OwnerAddress) {
			return fmt.Errorf("%w: recipient %s is not the api owner", ErrMismatch, tx.To)
		}
	}

	if tx.Confirmations < max(exp.MinConfirmations, 1) {
		return ErrInsufficientConfirmations
	}
	if !tx.Succeeded {
		return fmt.Errorf("%w: transaction reverted", ErrMismatch)
	}
	return nil
}

func verifyCall(b Batch, c *SettleCall) error {
	if c == nil {
		return fmt.Errorf("%w: not a settlePayment call", ErrMismatch)
	}
	if !strings.EqualFold(c.BatchID, b.ID) {
		return fmt.Errorf("%w: call settles batch %s", ErrMismatch, c.BatchID)
	}
	if !strings.EqualFold(c.User, b.PayerAddress) {
		return fmt.Errorf("%w: call names user %s", ErrMismatch, c.User)
	}
	if c.APIID == nil || b.ContractAPIID == nil || c.APIID.Cmp(b.ContractAPIID) != 0 {
		return fmt.Errorf("%w: call names a different api", ErrMismatch)
	}
	if c.RequestCount == nil || c.RequestCount.Cmp(big.NewInt(b.RequestCount)) != 0 {
		return fmt.Errorf("%w: call request count %s, expected %d", ErrMismatch, wei.String(c.RequestCount), b.RequestCount)
	}
	return nil
}

// Result is the outcome of a confirmation.
type Result struct {
	Batch          Batch
	AlreadySettled bool
}

// NormalizeTxHash validates a 32-byte hex transaction hash and returns it lower-case with 0x prefix.
func NormalizeTxHash(h string) (string, error) {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimPrefix(h, "0x")
	if len(h) != 64 {
		return "", ErrInvalidTxHash
	}
	if _, err := hex.DecodeString(h); err != nil {
		return "", ErrInvalidTxHash
	}
	return "0x" + h, nil
}

// BatchIDBytes decodes a batch id into the contract's bytes32 form.
func BatchIDBytes(id string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(id), "0x"))
	if err != nil || len(raw) != len(out) {
		return out, ErrInvalidBatchID
	}
	copy(out[:], raw)
	return out, nil
}
