// Package usage provides the usage period state machine.
// All functions are pure - no side effects.
package usage

import (
	"errors"
	"math/big"
	"time"

	"github.com/artpar/trustmeter/domain/wei"
)

// State is the lifecycle state of a usage period.
type State string

const (
	StateOpen    State = "open"    // accepting usage
	StateClosed  State = "closed"  // frozen into a batch, awaiting payment
	StateSettled State = "settled" // payment confirmed
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateOpen, StateClosed, StateSettled:
		return true
	}
	return false
}

// Transition errors.
var (
	ErrNotOpen     = errors.New("usage period is not open")
	ErrEmptyPeriod = errors.New("usage period has no requests")
	ErrNotClosed   = errors.New("usage period is not closed")
)

// Period accumulates usage for one (user, api) pair (immutable value type).
type Period struct {
	ID             string
	UserID         string
	APIID          string
	State          State
	RequestCount   int64
	PendingPayment *big.Int // wei, sum of the price at each recorded request
	BatchID        string   // set when closed
	SettleTxHash   string   // set when settled
	OpenedAt       time.Time
	UpdatedAt      time.Time
	ClosedAt       *time.Time
	SettledAt      *time.Time
}

// Snapshot is the counter view of a period.
type Snapshot struct {
	RequestCount   int64
	PendingPayment *big.Int
}

// Snapshot returns the counters of the period.
func (p Period) Snapshot() Snapshot {
	return Snapshot{
		RequestCount:   p.RequestCount,
		PendingPayment: wei.Copy(p.PendingPayment),
	}
}

// EmptySnapshot is the view of a (user, api) pair with no open period.
func EmptySnapshot() Snapshot {
	return Snapshot{PendingPayment: wei.Zero()}
}

// Open creates a new empty open period.
func Open(id, userID, apiID string, at time.Time) Period {
	return Period{
		ID:             id,
		UserID:         userID,
		APIID:          apiID,
		State:          StateOpen,
		PendingPayment: wei.Zero(),
		OpenedAt:       at,
		UpdatedAt:      at,
	}
}

// Record adds one request charged at price to an open period.
func Record(p Period, price *big.Int, at time.Time) (Period, error) {
	if p.State != StateOpen {
		return p, ErrNotOpen
	}
	p.RequestCount++
	p.PendingPayment = wei.Add(p.PendingPayment, price)
	p.UpdatedAt = at
	return p, nil
}

// Close freezes an open, non-empty period under batchID.
func Close(p Period, batchID string, at time.Time) (Period, error) {
	if p.State != StateOpen {
		return p, ErrNotOpen
	}
	if p.RequestCount == 0 {
		return p, ErrEmptyPeriod
	}
	p.State = StateClosed
	p.BatchID = batchID
	p.PendingPayment = wei.Copy(p.PendingPayment)
	p.ClosedAt = &at
	p.UpdatedAt = at
	return p, nil
}

// Settle marks a closed period as paid by txHash.
func Settle(p Period, txHash string, at time.Time) (Period, error) {
	if p.State != StateClosed {
		return p, ErrNotClosed
	}
	p.State = StateSettled
	p.SettleTxHash = txHash
	p.SettledAt = &at
	p.UpdatedAt = at
	return p, nil
}

// Filter selects periods for listing.
type Filter struct {
	UserID string
	APIID  string
	State  State
	Limit  int
}

// DefaultListLimit caps list results when Filter.Limit is unset.
const DefaultListLimit = 100

// EffectiveLimit returns the row cap for the filter.
func (f Filter) EffectiveLimit() int {
	if f.Limit <= 0 || f.Limit > 1000 {
		return DefaultListLimit
	}
	return f.Limit
}

// Matches reports whether p satisfies the filter.
func (f Filter) Matches(p Period) bool {
	if f.UserID != "" && p.UserID != f.UserID {
		return false
	}
	if f.APIID != "" && p.APIID != f.APIID {
		return false
	}
	if f.State != "" && p.State != f.State {
		return false
	}
	return true
}
