package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/artpar/trustmeter/adapters/postgres"
	"github.com/artpar/trustmeter/domain/catalog"
	"github.com/artpar/trustmeter/domain/identity"
	"github.com/artpar/trustmeter/domain/usage"
	"github.com/artpar/trustmeter/ports"
	"github.com/google/uuid"
)

// setupTestDB connects to TRUSTMETER_TEST_POSTGRES_DSN and seeds a user and an API
// under fresh IDs. Tests are skipped when the variable is unset.
func setupTestDB(t *testing.T) (*postgres.DB, string, string) {
	t.Helper()

	dsn := os.Getenv("TRUSTMETER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TRUSTMETER_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	now := time.Now().UTC()
	userID := uuid.NewString()
	addr := "0x" + fmt.Sprintf("%040x", uuid.New().ID())
	if err := postgres.NewUserStore(db).Create(ctx, identity.User{
		ID: userID, Address: addr, Nonce: "n1", NonceIssuedAt: now, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	apiID := uuid.NewString()
	if err := postgres.NewAPIStore(db).Create(ctx, catalog.API{
		ID: apiID, Name: "weather", OwnerID: userID, PricePerRequest: big.NewInt(100), CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("create api: %v", err)
	}
	return db, userID, apiID
}

func TestUserStore_SwapNonce(t *testing.T) {
	db, userID, _ := setupTestDB(t)
	store := postgres.NewUserStore(db)
	ctx := context.Background()

	if err := store.SwapNonce(ctx, userID, "n1", "n2", time.Now()); err != nil {
		t.Fatalf("SwapNonce failed: %v", err)
	}
	if err := store.SwapNonce(ctx, userID, "n1", "n3", time.Now()); !errors.Is(err, ports.ErrStateChanged) {
		t.Errorf("stale SwapNonce = %v, want ErrStateChanged", err)
	}
}

func TestUsageStore_ConcurrentIncrement(t *testing.T) {
	db, userID, apiID := setupTestDB(t)
	store := postgres.NewUsageStore(db)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Increment(ctx, userID, apiID, uuid.NewString(), big.NewInt(100), time.Now()); err != nil {
				t.Errorf("Increment failed: %v", err)
			}
		}()
	}
	wg.Wait()

	p, err := store.GetOpen(ctx, userID, apiID)
	if err != nil {
		t.Fatalf("GetOpen failed: %v", err)
	}
	if p.RequestCount != n || p.PendingPayment.Int64() != n*100 {
		t.Errorf("period = %d requests, %s wei, want %d, %d", p.RequestCount, p.PendingPayment, n, n*100)
	}
}

func TestUsageStore_Lifecycle(t *testing.T) {
	db, userID, apiID := setupTestDB(t)
	store := postgres.NewUsageStore(db)
	ctx := context.Background()
	batchID := uuid.NewString()
	txHash := "0x" + uuid.NewString()

	store.Increment(ctx, userID, apiID, uuid.NewString(), big.NewInt(100), time.Now())
	closed, err := store.CloseOpen(ctx, userID, apiID, batchID, time.Now())
	if err != nil {
		t.Fatalf("CloseOpen failed: %v", err)
	}
	if closed.State != usage.StateClosed || closed.ClosedAt == nil {
		t.Errorf("closed = %+v", closed)
	}
	if _, err := store.CloseOpen(ctx, userID, apiID, uuid.NewString(), time.Now()); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("CloseOpen(no period) = %v, want ErrNotFound", err)
	}

	settled, err := store.MarkSettled(ctx, batchID, txHash, time.Now())
	if err != nil {
		t.Fatalf("MarkSettled failed: %v", err)
	}
	if settled.SettleTxHash != txHash {
		t.Errorf("SettleTxHash = %s, want %s", settled.SettleTxHash, txHash)
	}
	if _, err := store.MarkSettled(ctx, batchID, txHash, time.Now()); !errors.Is(err, ports.ErrStateChanged) {
		t.Errorf("second MarkSettled = %v, want ErrStateChanged", err)
	}
}
