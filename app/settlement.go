package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/artpar/trustmeter/domain/catalog"
	"github.com/artpar/trustmeter/domain/identity"
	"github.com/artpar/trustmeter/domain/settlement"
	"github.com/artpar/trustmeter/domain/usage"
	"github.com/artpar/trustmeter/ports"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// batchIDBytes is the entropy of a batch ID; it doubles as the contract's bytes32.
const batchIDBytes = 32

// SettlementConfig describes how batches are paid and verified.
type SettlementConfig struct {
	Mode             settlement.Mode
	Contract         string        // settlement contract address, required in contract mode
	MinConfirmations uint64        // at least 1 is always required
	ChainTimeout     time.Duration // bound on a single chain lookup
}

// DefaultSettlementConfig returns direct-transfer settlement with one confirmation.
func DefaultSettlementConfig() SettlementConfig {
	return SettlementConfig{
		Mode:             settlement.ModeDirect,
		MinConfirmations: 1,
		ChainTimeout:     15 * time.Second,
	}
}

// SettlementCoordinator closes usage periods into batches and confirms their payment.
type SettlementCoordinator struct {
	usage    ports.UsageStore
	apis     ports.APIStore
	users    ports.UserStore
	chain    ports.ChainReader
	random   ports.Random
	clock    ports.Clock
	observer ports.Observer
	cfg      SettlementConfig
	logger   zerolog.Logger

	flight singleflight.Group
}

// NewSettlementCoordinator creates a settlement coordinator.
func NewSettlementCoordinator(store ports.UsageStore, apis ports.APIStore, users ports.UserStore, chain ports.ChainReader, random ports.Random, clock ports.Clock, observer ports.Observer, cfg SettlementConfig, logger zerolog.Logger) *SettlementCoordinator {
	if !cfg.Mode.Valid() {
		cfg.Mode = settlement.ModeDirect
	}
	if cfg.ChainTimeout <= 0 {
		cfg.ChainTimeout = DefaultSettlementConfig().ChainTimeout
	}
	return &SettlementCoordinator{
		usage:    store,
		apis:     apis,
		users:    users,
		chain:    chain,
		random:   random,
		clock:    clock,
		observer: observerOrNop(observer),
		cfg:      cfg,
		logger:   logger,
	}
}

// Mode returns the configured settlement mode.
func (c *SettlementCoordinator) Mode() settlement.Mode {
	return c.cfg.Mode
}

// CloseBatch freezes the caller's open period for apiID into a new batch and
// returns the payment instruction for it.
func (c *SettlementCoordinator) CloseBatch(ctx context.Context, userID, apiID string) (settlement.Instruction, error) {
	pt, err := c.parties(ctx, userID, apiID)
	if err != nil {
		return settlement.Instruction{}, err
	}

	batchID, err := c.random.Hex(batchIDBytes)
	if err != nil {
		return settlement.Instruction{}, fmt.Errorf("generate batch id: %w", err)
	}

	p, err := c.usage.CloseOpen(ctx, userID, apiID, batchID, c.clock.Now())
	switch {
	case err == nil:
	case errors.Is(err, ports.ErrNotFound), errors.Is(err, usage.ErrEmptyPeriod):
		return settlement.Instruction{}, ErrNothingToSettle
	case errors.Is(err, ports.ErrConflict):
		c.observer.StoreConflict("close")
		return settlement.Instruction{}, ErrConflict
	default:
		return settlement.Instruction{}, fmt.Errorf("close period: %w", err)
	}

	b := pt.batch(p)
	c.observer.BatchClosed(apiID, b.Amount)
	c.logger.Info().
		Str("batch_id", b.ID).
		Str("user_id", userID).
		Str("api_id", apiID).
		Int64("requests", b.RequestCount).
		Str("amount_wei", b.Amount.String()).
		Msg("batch closed")

	return c.Instruction(b), nil
}

// Instruction returns the payment instruction for a batch.
func (c *SettlementCoordinator) Instruction(b settlement.Batch) settlement.Instruction {
	return settlement.NewInstruction(b, c.cfg.Mode, c.cfg.Contract)
}

// GetBatch returns a closed or settled batch.
func (c *SettlementCoordinator) GetBatch(ctx context.Context, batchID string) (settlement.Batch, error) {
	id, err := normalizeBatchID(batchID)
	if err != nil {
		return settlement.Batch{}, err
	}
	p, err := c.usage.GetByBatch(ctx, id)
	if errors.Is(err, ports.ErrNotFound) {
		return settlement.Batch{}, ErrNotFound
	}
	if err != nil {
		return settlement.Batch{}, fmt.Errorf("get batch: %w", err)
	}
	pt, err := c.parties(ctx, p.UserID, p.APIID)
	if err != nil {
		return settlement.Batch{}, err
	}
	return pt.batch(p), nil
}

// ListBatches returns closed and settled batches matching f, newest first.
func (c *SettlementCoordinator) ListBatches(ctx context.Context, f usage.Filter) ([]settlement.Batch, error) {
	var states []usage.State
	switch f.State {
	case "":
		states = []usage.State{usage.StateClosed, usage.StateSettled}
	case usage.StateClosed, usage.StateSettled:
		states = []usage.State{f.State}
	default:
		return nil, fmt.Errorf("%w: batches are closed or settled", ErrInvalidInput)
	}

	var periods []usage.Period
	for _, st := range states {
		sf := f
		sf.State = st
		ps, err := c.usage.List(ctx, sf)
		if err != nil {
			return nil, fmt.Errorf("list batches: %w", err)
		}
		periods = append(periods, ps...)
	}
	sort.SliceStable(periods, func(i, j int) bool {
		return periods[i].UpdatedAt.After(periods[j].UpdatedAt)
	})
	if limit := f.EffectiveLimit(); len(periods) > limit {
		periods = periods[:limit]
	}

	cache := make(map[string]parties)
	out := make([]settlement.Batch, 0, len(periods))
	for _, p := range periods {
		key := p.UserID + "/" + p.APIID
		pt, ok := cache[key]
		if !ok {
			var err error
			if pt, err = c.parties(ctx, p.UserID, p.APIID); err != nil {
				return nil, err
			}
			cache[key] = pt
		}
		out = append(out, pt.batch(p))
	}
	return out, nil
}

// ConfirmSettlement verifies that txHash pays the batch and marks it settled.
// Confirming a settled batch returns its stored result with AlreadySettled set.
// Concurrent confirmations of the same batch and hash share one verification,
// which keeps running when the caller that started it goes away.
func (c *SettlementCoordinator) ConfirmSettlement(ctx context.Context, batchID, txHash string) (settlement.Result, error) {
	id, err := normalizeBatchID(batchID)
	if err != nil {
		return settlement.Result{}, err
	}
	hash, err := settlement.NormalizeTxHash(txHash)
	if err != nil {
		return settlement.Result{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	// The shared lookup outlives any single caller; ChainTimeout bounds it.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(id+":"+hash, func() (any, error) {
		return c.confirm(flightCtx, id, hash)
	})
	select {
	case <-ctx.Done():
		return settlement.Result{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return settlement.Result{}, r.Err
		}
		return r.Val.(settlement.Result), nil
	}
}

func (c *SettlementCoordinator) confirm(ctx context.Context, batchID, txHash string) (settlement.Result, error) {
	b, err := c.GetBatch(ctx, batchID)
	if err != nil {
		return settlement.Result{}, err
	}
	if b.Settled() {
		return settlement.Result{Batch: b, AlreadySettled: true}, nil
	}

	log := c.logger.With().Str("batch_id", batchID).Str("tx_hash", txHash).Logger()

	tx, err := c.readTransaction(ctx, txHash)
	if err != nil {
		if ctx.Err() != nil {
			return settlement.Result{}, ctx.Err()
		}
		if errors.Is(err, settlement.ErrMismatch) {
			return settlement.Result{}, c.mismatch(log, "mismatch", err)
		}
		log.Info().Err(err).Msg("settlement transaction not confirmed")
		c.observer.SettlementRejected("unconfirmed")
		return settlement.Result{}, fmt.Errorf("%w: %v", ErrUnconfirmed, err)
	}

	exp := settlement.Expectation{
		Mode:             c.cfg.Mode,
		Contract:         c.cfg.Contract,
		MinConfirmations: c.cfg.MinConfirmations,
	}
	if err := settlement.Verify(b, tx, exp); err != nil {
		if errors.Is(err, settlement.ErrInsufficientConfirmations) {
			log.Info().Uint64("confirmations", tx.Confirmations).Msg("settlement transaction needs more confirmations")
			c.observer.SettlementRejected("insufficient_confirmations")
			return settlement.Result{}, fmt.Errorf("%w: %v", ErrUnconfirmed, err)
		}
		return settlement.Result{}, c.mismatch(log, "mismatch", err)
	}

	p, err := c.usage.MarkSettled(ctx, batchID, txHash, c.clock.Now())
	switch {
	case err == nil:
	case errors.Is(err, ports.ErrDuplicate):
		return settlement.Result{}, c.mismatch(log, "tx_reused", errors.New("transaction already settled another batch"))
	case errors.Is(err, ports.ErrStateChanged):
		// Someone else settled it between our read and write.
		again, gerr := c.GetBatch(ctx, batchID)
		if gerr == nil && again.Settled() {
			return settlement.Result{Batch: again, AlreadySettled: true}, nil
		}
		return settlement.Result{}, ErrConflict
	case errors.Is(err, ports.ErrConflict):
		c.observer.StoreConflict("settle")
		return settlement.Result{}, ErrConflict
	default:
		return settlement.Result{}, fmt.Errorf("mark settled: %w", err)
	}

	b.State = p.State
	b.SettleTxHash = p.SettleTxHash
	b.SettledAt = p.SettledAt

	c.observer.SettlementConfirmed(string(c.cfg.Mode))
	log.Info().Str("amount_wei", b.Amount.String()).Msg("batch settled")
	return settlement.Result{Batch: b}, nil
}

func (c *SettlementCoordinator) readTransaction(ctx context.Context, txHash string) (settlement.Transaction, error) {
	if c.chain == nil {
		return settlement.Transaction{}, ports.ErrChainNotConfigured
	}
	rctx, cancel := context.WithTimeout(ctx, c.cfg.ChainTimeout)
	defer cancel()
	return c.chain.Transaction(rctx, txHash)
}

func (c *SettlementCoordinator) mismatch(log zerolog.Logger, reason string, cause error) error {
	log.Warn().Err(cause).Str("reason", reason).Msg("settlement rejected")
	c.observer.SettlementRejected(reason)
	return fmt.Errorf("%w: %v", ErrSettlementMismatch, cause)
}

// parties are the records a batch snapshot is derived from.
type parties struct {
	payer identity.User
	api   catalog.API
	owner identity.User
}

func (pt parties) batch(p usage.Period) settlement.Batch {
	return settlement.NewBatch(p, pt.payer.Address, pt.owner.Address, catalog.ContractID(pt.api.ID))
}

func (c *SettlementCoordinator) parties(ctx context.Context, userID, apiID string) (parties, error) {
	api, err := c.apis.Get(ctx, apiID)
	if err != nil {
		return parties{}, notFoundOr(err, "get api")
	}
	payer, err := c.users.Get(ctx, userID)
	if err != nil {
		return parties{}, notFoundOr(err, "get payer")
	}
	owner, err := c.users.Get(ctx, api.OwnerID)
	if err != nil {
		return parties{}, notFoundOr(err, "get api owner")
	}
	return parties{payer: payer, api: api, owner: owner}, nil
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, ports.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func normalizeBatchID(id string) (string, error) {
	id = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(id), "0x"))
	if _, err := settlement.BatchIDBytes(id); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return id, nil
}
