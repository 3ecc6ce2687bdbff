package app_test

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/artpar/trustmeter/app"
	"github.com/artpar/trustmeter/domain/catalog"
	"github.com/artpar/trustmeter/domain/identity"
	"github.com/artpar/trustmeter/domain/settlement"
	"github.com/artpar/trustmeter/domain/usage"
	"github.com/artpar/trustmeter/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contractAddr = "0x5fbdb2315678afecb367f032d93f642f64180aa3"

func txHash(b byte) string {
	return "0x" + strings.Repeat(string("0123456789abcdef"[b%16]), 64)
}

// recordN records n requests for u against a.
func recordN(t *testing.T, e *testEnv, u identity.User, a catalog.API, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := e.meter.RecordUsage(context.Background(), u.ID, a.ID)
		require.NoError(t, err)
	}
}

// payment builds a transaction paying the instruction in direct mode.
func payment(in settlement.Instruction, hash string) settlement.Transaction {
	return settlement.Transaction{
		Hash:          hash,
		From:          in.Batch.PayerAddress,
		To:            in.PayTo,
		Value:         in.Value,
		Succeeded:     true,
		Confirmations: 3,
		Call:          in.Call,
	}
}

func TestSettlement_Lifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, owner := e.api(t, 100)
	u, _ := e.user(t)

	recordN(t, e, u, a, 3)

	in, err := e.settle.CloseBatch(ctx, u.ID, a.ID)
	require.NoError(t, err)
	assert.Len(t, in.Batch.ID, 64)
	assert.Equal(t, int64(3), in.Batch.RequestCount)
	assert.Equal(t, "300", in.Value.String())
	assert.Equal(t, owner.Address, in.PayTo)
	assert.Equal(t, u.Address, in.Batch.PayerAddress)
	assert.Equal(t, usage.StateClosed, in.Batch.State)
	assert.Nil(t, in.Call)

	// Usage after close opens a fresh period.
	snap, err := e.meter.RecordUsage(ctx, u.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.RequestCount)
	assert.Equal(t, "100", snap.PendingPayment.String())

	hash := txHash(1)
	e.chain.put(payment(in, hash))

	res, err := e.settle.ConfirmSettlement(ctx, in.Batch.ID, hash)
	require.NoError(t, err)
	assert.False(t, res.AlreadySettled)
	assert.True(t, res.Batch.Settled())
	assert.Equal(t, hash, res.Batch.SettleTxHash)
	assert.Equal(t, "300", res.Batch.Amount.String())
	assert.Equal(t, 1, e.observer.count("confirmed:direct"))

	again, err := e.settle.ConfirmSettlement(ctx, strings.ToUpper(in.Batch.ID), hash)
	require.NoError(t, err)
	assert.True(t, again.AlreadySettled)
	assert.Equal(t, hash, again.Batch.SettleTxHash)
	assert.Equal(t, 1, e.observer.count("confirmed:direct"), "idempotent confirm must not settle twice")

	stored, err := e.settle.GetBatch(ctx, in.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, "300", stored.Amount.String())
	assert.Equal(t, int64(3), stored.RequestCount)
}

func TestCloseBatch_NothingToSettle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, _ := e.api(t, 100)
	u, _ := e.user(t)

	_, err := e.settle.CloseBatch(ctx, u.ID, a.ID)
	assert.ErrorIs(t, err, app.ErrNothingToSettle)

	recordN(t, e, u, a, 1)
	_, err = e.settle.CloseBatch(ctx, u.ID, a.ID)
	require.NoError(t, err)

	_, err = e.settle.CloseBatch(ctx, u.ID, a.ID)
	assert.ErrorIs(t, err, app.ErrNothingToSettle)

	_, err = e.settle.CloseBatch(ctx, u.ID, "missing")
	assert.ErrorIs(t, err, app.ErrNotFound)
}

func TestConfirmSettlement_Mismatch(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(tx *settlement.Transaction)
	}{
		{"underpaid", func(tx *settlement.Transaction) { tx.Value = new(big.Int).Sub(tx.Value, big.NewInt(1)) }},
		{"wrong recipient", func(tx *settlement.Transaction) { tx.To = contractAddr }},
		{"wrong sender", func(tx *settlement.Transaction) { tx.From = contractAddr }},
		{"reverted", func(tx *settlement.Transaction) { tx.Succeeded = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			ctx := context.Background()
			a, _ := e.api(t, 100)
			u, _ := e.user(t)
			recordN(t, e, u, a, 3)

			in, err := e.settle.CloseBatch(ctx, u.ID, a.ID)
			require.NoError(t, err)

			tx := payment(in, txHash(2))
			tt.mutate(&tx)
			e.chain.put(tx)

			_, err = e.settle.ConfirmSettlement(ctx, in.Batch.ID, tx.Hash)
			assert.ErrorIs(t, err, app.ErrSettlementMismatch)

			b, err := e.settle.GetBatch(ctx, in.Batch.ID)
			require.NoError(t, err)
			assert.Equal(t, usage.StateClosed, b.State, "batch must stay closed")
			assert.Equal(t, 1, e.observer.count("rejected:mismatch"))
		})
	}
}

func TestConfirmSettlement_Unconfirmed(t *testing.T) {
	tests := []struct {
		name  string
		setup func(e *testEnv, hash string)
	}{
		{"unknown transaction", func(e *testEnv, hash string) {}},
		{"pending transaction", func(e *testEnv, hash string) { e.chain.fail(hash, ports.ErrTxPending) }},
		{"node unreachable", func(e *testEnv, hash string) { e.chain.fail(hash, ports.ErrChainUnavailable) }},
		{"chain timeout", func(e *testEnv, hash string) { e.chain.block = make(chan struct{}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := app.DefaultSettlementConfig()
			cfg.ChainTimeout = 20 * time.Millisecond
			e := newEnv(t, withSettlement(cfg))
			ctx := context.Background()
			a, _ := e.api(t, 100)
			u, _ := e.user(t)
			recordN(t, e, u, a, 1)

			in, err := e.settle.CloseBatch(ctx, u.ID, a.ID)
			require.NoError(t, err)

			hash := txHash(3)
			tt.setup(e, hash)

			_, err = e.settle.ConfirmSettlement(ctx, in.Batch.ID, hash)
			assert.ErrorIs(t, err, app.ErrUnconfirmed)

			b, err := e.settle.GetBatch(ctx, in.Batch.ID)
			require.NoError(t, err)
			assert.Equal(t, usage.StateClosed, b.State)
		})
	}
}

func TestConfirmSettlement_InsufficientConfirmations(t *testing.T) {
	cfg := app.DefaultSettlementConfig()
	cfg.MinConfirmations = 6
	e := newEnv(t, withSettlement(cfg))
	ctx := context.Background()
	a, _ := e.api(t, 100)
	u, _ := e.user(t)
	recordN(t, e, u, a, 1)

	in, err := e.settle.CloseBatch(ctx, u.ID, a.ID)
	require.NoError(t, err)

	tx := payment(in, txHash(4))
	e.chain.put(tx)
	_, err = e.settle.ConfirmSettlement(ctx, in.Batch.ID, tx.Hash)
	assert.ErrorIs(t, err, app.ErrUnconfirmed)

	tx.Confirmations = 6
	e.chain.put(tx)
	res, err := e.settle.ConfirmSettlement(ctx, in.Batch.ID, tx.Hash)
	require.NoError(t, err)
	assert.True(t, res.Batch.Settled())
}

func TestConfirmSettlement_TxReused(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, _ := e.api(t, 100)
	u, _ := e.user(t)

	recordN(t, e, u, a, 2)
	first, err := e.settle.CloseBatch(ctx, u.ID, a.ID)
	require.NoError(t, err)
	recordN(t, e, u, a, 2)
	second, err := e.settle.CloseBatch(ctx, u.ID, a.ID)
	require.NoError(t, err)
	require.NotEqual(t, first.Batch.ID, second.Batch.ID)

	hash := txHash(5)
	e.chain.put(payment(first, hash))

	_, err = e.settle.ConfirmSettlement(ctx, first.Batch.ID, hash)
	require.NoError(t, err)

	// Same amount and parties, but the transaction already paid the first batch.
	_, err = e.settle.ConfirmSettlement(ctx, second.Batch.ID, hash)
	assert.ErrorIs(t, err, app.ErrSettlementMismatch)
	assert.Equal(t, 1, e.observer.count("rejected:tx_reused"))
}

func TestConfirmSettlement_Concurrent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, _ := e.api(t, 100)
	u, _ := e.user(t)
	recordN(t, e, u, a, 3)

	in, err := e.settle.CloseBatch(ctx, u.ID, a.ID)
	require.NoError(t, err)
	hash := txHash(6)
	e.chain.put(payment(in, hash))

	const n = 10
	results := make([]settlement.Result, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.settle.ConfirmSettlement(ctx, in.Batch.ID, hash)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.True(t, results[i].Batch.Settled())
	}
	assert.Equal(t, 1, e.observer.count("confirmed:direct"), "batch must settle exactly once")
}

func TestConfirmSettlement_ContractMode(t *testing.T) {
	cfg := app.DefaultSettlementConfig()
	cfg.Mode = settlement.ModeContract
	cfg.Contract = contractAddr
	e := newEnv(t, withSettlement(cfg))
	ctx := context.Background()
	a, _ := e.api(t, 100)
	u, _ := e.user(t)
	recordN(t, e, u, a, 3)

	in, err := e.settle.CloseBatch(ctx, u.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, contractAddr, in.PayTo)
	require.NotNil(t, in.Call)
	assert.Equal(t, in.Batch.ID, in.Call.BatchID)
	assert.Equal(t, catalog.ContractID(a.ID), in.Call.APIID)
	assert.Equal(t, "3", in.Call.RequestCount.String())

	hash := txHash(7)
	e.chain.put(payment(in, hash))

	res, err := e.settle.ConfirmSettlement(ctx, in.Batch.ID, hash)
	require.NoError(t, err)
	assert.True(t, res.Batch.Settled())
	assert.Equal(t, 1, e.observer.count("confirmed:contract"))
}

func TestConfirmSettlement_InvalidInput(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.settle.ConfirmSettlement(ctx, "short", txHash(1))
	assert.ErrorIs(t, err, app.ErrInvalidInput)

	_, err = e.settle.ConfirmSettlement(ctx, strings.Repeat("ab", 32), "0x1234")
	assert.ErrorIs(t, err, app.ErrInvalidInput)

	_, err = e.settle.ConfirmSettlement(ctx, strings.Repeat("ab", 32), txHash(1))
	assert.ErrorIs(t, err, app.ErrNotFound)
}

func TestListBatches(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, _ := e.api(t, 100)
	u, _ := e.user(t)
	other, _ := e.user(t)

	recordN(t, e, u, a, 1)
	first, err := e.settle.CloseBatch(ctx, u.ID, a.ID)
	require.NoError(t, err)

	e.clock.Advance(time.Minute)
	recordN(t, e, u, a, 2)
	_, err = e.settle.CloseBatch(ctx, u.ID, a.ID)
	require.NoError(t, err)

	recordN(t, e, other, a, 1)
	recordN(t, e, u, a, 1) // open, never listed

	e.clock.Advance(time.Minute)
	e.chain.put(payment(first, txHash(8)))
	_, err = e.settle.ConfirmSettlement(ctx, first.Batch.ID, txHash(8))
	require.NoError(t, err)

	all, err := e.settle.ListBatches(ctx, usage.Filter{UserID: u.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.Batch.ID, all[0].ID, "most recently updated first")

	closed, err := e.settle.ListBatches(ctx, usage.Filter{UserID: u.ID, State: usage.StateClosed})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, int64(2), closed[0].RequestCount)

	_, err = e.settle.ListBatches(ctx, usage.Filter{State: usage.StateOpen})
	assert.ErrorIs(t, err, app.ErrInvalidInput)
}

func TestConfirmSettlement_CallerGoesAway(t *testing.T) {
	e := newEnv(t)
	a, _ := e.api(t, 100)
	u, _ := e.user(t)
	recordN(t, e, u, a, 2)

	in, err := e.settle.CloseBatch(context.Background(), u.ID, a.ID)
	require.NoError(t, err)
	hash := txHash(7)
	release := make(chan struct{})
	e.chain.block = release

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := e.settle.ConfirmSettlement(firstCtx, in.Batch.ID, hash)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return e.chain.calls.Load() == 1 }, time.Second, time.Millisecond)

	type outcome struct {
		res settlement.Result
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := e.settle.ConfirmSettlement(context.Background(), in.Batch.ID, hash)
		second <- outcome{res, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	e.chain.put(payment(in, hash))
	close(release)

	got := <-second
	require.NoError(t, got.err)
	assert.True(t, got.res.Batch.Settled())
}
