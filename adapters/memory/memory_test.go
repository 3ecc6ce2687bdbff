package memory_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/artpar/trustmeter/adapters/memory"
	"github.com/artpar/trustmeter/domain/catalog"
	"github.com/artpar/trustmeter/domain/identity"
	"github.com/artpar/trustmeter/domain/usage"
	"github.com/artpar/trustmeter/ports"
)

var now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// UserStore tests

func TestUserStore_CreateDuplicateAddress(t *testing.T) {
	store := memory.NewUserStore()
	ctx := context.Background()

	u := identity.User{ID: "u1", Address: "0xabc", Nonce: "n1", CreatedAt: now}
	if err := store.Create(ctx, u); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	err := store.Create(ctx, identity.User{ID: "u2", Address: "0xabc"})
	if !errors.Is(err, ports.ErrDuplicate) {
		t.Errorf("second Create = %v, want ErrDuplicate", err)
	}

	got, err := store.GetByAddress(ctx, "0xabc")
	if err != nil || got.ID != "u1" {
		t.Errorf("GetByAddress = %+v, %v", got, err)
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestUserStore_SwapNonce(t *testing.T) {
	store := memory.NewUserStore()
	ctx := context.Background()
	store.Create(ctx, identity.User{ID: "u1", Address: "0xabc", Nonce: "n1"})

	if err := store.SwapNonce(ctx, "u1", "n1", "n2", now); err != nil {
		t.Fatalf("SwapNonce failed: %v", err)
	}
	if err := store.SwapNonce(ctx, "u1", "n1", "n3", now); !errors.Is(err, ports.ErrStateChanged) {
		t.Errorf("stale SwapNonce = %v, want ErrStateChanged", err)
	}

	u, _ := store.Get(ctx, "u1")
	if u.Nonce != "n2" {
		t.Errorf("Nonce = %s, want n2", u.Nonce)
	}
}

// APIStore tests

func TestAPIStore_UpdatePrice(t *testing.T) {
	store := memory.NewAPIStore()
	ctx := context.Background()

	store.Create(ctx, catalog.API{ID: "a1", OwnerID: "o1", Name: "one", PricePerRequest: big.NewInt(100), CreatedAt: now})
	store.Create(ctx, catalog.API{ID: "a2", OwnerID: "o2", Name: "two", PricePerRequest: big.NewInt(5), CreatedAt: now.Add(time.Second)})

	if err := store.UpdatePrice(ctx, "a1", big.NewInt(200), now); err != nil {
		t.Fatalf("UpdatePrice failed: %v", err)
	}
	a, _ := store.Get(ctx, "a1")
	if a.PricePerRequest.Int64() != 200 {
		t.Errorf("price = %s, want 200", a.PricePerRequest)
	}

	a.PricePerRequest.SetInt64(1)
	again, _ := store.Get(ctx, "a1")
	if again.PricePerRequest.Int64() != 200 {
		t.Error("store must not share price values with callers")
	}

	owned, _ := store.ListByOwner(ctx, "o2")
	if len(owned) != 1 || owned[0].ID != "a2" {
		t.Errorf("ListByOwner = %+v", owned)
	}
	all, _ := store.List(ctx)
	if len(all) != 2 || all[0].ID != "a1" {
		t.Errorf("List = %+v", all)
	}
}

// UsageStore tests

func TestUsageStore_ConcurrentIncrement(t *testing.T) {
	store := memory.NewUsageStore(4)
	ctx := context.Background()

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := store.Increment(ctx, "u1", "a1", fmt.Sprintf("p%d", i), big.NewInt(100), now); err != nil {
				t.Errorf("Increment failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	p, err := store.GetOpen(ctx, "u1", "a1")
	if err != nil {
		t.Fatalf("GetOpen failed: %v", err)
	}
	if p.RequestCount != n {
		t.Errorf("RequestCount = %d, want %d", p.RequestCount, n)
	}
	if p.PendingPayment.Int64() != n*100 {
		t.Errorf("PendingPayment = %s, want %d", p.PendingPayment, n*100)
	}
}

func TestUsageStore_CloseDuringIncrements(t *testing.T) {
	store := memory.NewUsageStore(4)
	ctx := context.Background()

	const n, closes = 200, 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := store.Increment(ctx, "u1", "a1", fmt.Sprintf("p%d", i), big.NewInt(100), now); err != nil {
				t.Errorf("Increment failed: %v", err)
			}
		}(i)
		if i%(n/closes) == n/closes/2 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := store.CloseOpen(ctx, "u1", "a1", fmt.Sprintf("%064x", i), now)
				if err != nil && !errors.Is(err, ports.ErrNotFound) && !errors.Is(err, usage.ErrEmptyPeriod) {
					t.Errorf("CloseOpen failed: %v", err)
				}
			}(i)
		}
	}
	wg.Wait()

	periods, err := store.List(ctx, usage.Filter{UserID: "u1", APIID: "a1", Limit: 1000})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var requests int64
	paid := new(big.Int)
	open := 0
	for _, p := range periods {
		requests += p.RequestCount
		paid.Add(paid, p.PendingPayment)
		if p.State == usage.StateOpen {
			open++
		}
	}
	if requests != n {
		t.Errorf("total requests = %d, want %d", requests, n)
	}
	if paid.Int64() != n*100 {
		t.Errorf("total pending payment = %s, want %d", paid, n*100)
	}
	if open > 1 {
		t.Errorf("open periods = %d, want at most 1", open)
	}
}

func TestUsageStore_CloseAndSettle(t *testing.T) {
	store := memory.NewUsageStore(0)
	ctx := context.Background()

	if _, err := store.CloseOpen(ctx, "u1", "a1", "b1", now); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("CloseOpen(no period) = %v, want ErrNotFound", err)
	}

	store.Increment(ctx, "u1", "a1", "p1", big.NewInt(100), now)
	closed, err := store.CloseOpen(ctx, "u1", "a1", "b1", now)
	if err != nil {
		t.Fatalf("CloseOpen failed: %v", err)
	}
	if closed.State != usage.StateClosed || closed.BatchID != "b1" {
		t.Errorf("closed = %+v", closed)
	}

	// new usage after close opens a fresh period
	fresh, _ := store.Increment(ctx, "u1", "a1", "p2", big.NewInt(100), now)
	if fresh.ID != "p2" || fresh.RequestCount != 1 {
		t.Errorf("fresh period = %+v", fresh)
	}

	if _, err := store.MarkSettled(ctx, "b1", "0xtx1", now); err != nil {
		t.Fatalf("MarkSettled failed: %v", err)
	}
	if _, err := store.MarkSettled(ctx, "b1", "0xtx1", now); !errors.Is(err, ports.ErrStateChanged) {
		t.Errorf("second MarkSettled = %v, want ErrStateChanged", err)
	}

	store.CloseOpen(ctx, "u1", "a1", "b2", now)
	if _, err := store.MarkSettled(ctx, "b2", "0xtx1", now); !errors.Is(err, ports.ErrDuplicate) {
		t.Errorf("reused tx MarkSettled = %v, want ErrDuplicate", err)
	}

	got, _ := store.GetByBatch(ctx, "b2")
	if got.State != usage.StateClosed {
		t.Errorf("b2 state = %s, want closed", got.State)
	}

	settled, _ := store.List(ctx, usage.Filter{UserID: "u1", State: usage.StateSettled})
	if len(settled) != 1 || settled[0].BatchID != "b1" {
		t.Errorf("List(settled) = %+v", settled)
	}
}

func TestUsageStore_CloseEmpty(t *testing.T) {
	store := memory.NewUsageStore(0)
	ctx := context.Background()

	store.Increment(ctx, "u1", "a1", "p1", big.NewInt(0), now)
	if _, err := store.CloseOpen(ctx, "u1", "a1", "b1", now); err != nil {
		t.Errorf("closing a free but used period should succeed: %v", err)
	}
}
