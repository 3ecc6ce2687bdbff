package cache_test

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/artpar/trustmeter/adapters/cache"
	"github.com/artpar/trustmeter/adapters/memory"
	"github.com/artpar/trustmeter/domain/catalog"
	"github.com/artpar/trustmeter/ports"
	"github.com/rs/zerolog"
)

// countingStore counts Get calls that reach the underlying store.
type countingStore struct {
	*memory.APIStore
	gets atomic.Int32
}

func (s *countingStore) Get(ctx context.Context, id string) (catalog.API, error) {
	s.gets.Add(1)
	return s.APIStore.Get(ctx, id)
}

func newCached(t *testing.T) (*cache.APIStore, *countingStore) {
	t.Helper()
	inner := &countingStore{APIStore: memory.NewAPIStore()}
	c, err := cache.NewAPIStore(context.Background(), inner, cache.Config{TTL: time.Minute}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAPIStore: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, inner
}

func TestAPIStore_CachesGet(t *testing.T) {
	c, inner := newCached(t)
	ctx := context.Background()

	c.Create(ctx, catalog.API{ID: "a1", Name: "weather", OwnerID: "o1", PricePerRequest: big.NewInt(100)})

	for i := 0; i < 3; i++ {
		a, err := c.Get(ctx, "a1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if a.PricePerRequest.Int64() != 100 || a.Name != "weather" {
			t.Errorf("api = %+v", a)
		}
	}
	if got := inner.gets.Load(); got != 1 {
		t.Errorf("underlying Get calls = %d, want 1", got)
	}
}

func TestAPIStore_UpdateInvalidates(t *testing.T) {
	c, inner := newCached(t)
	ctx := context.Background()

	c.Create(ctx, catalog.API{ID: "a1", Name: "weather", OwnerID: "o1", PricePerRequest: big.NewInt(100)})
	c.Get(ctx, "a1")

	if err := c.UpdatePrice(ctx, "a1", big.NewInt(250), time.Now()); err != nil {
		t.Fatalf("UpdatePrice: %v", err)
	}
	a, _ := c.Get(ctx, "a1")
	if a.PricePerRequest.Int64() != 250 {
		t.Errorf("price after update = %s, want 250", a.PricePerRequest)
	}

	c.SetMirrored(ctx, "a1", true)
	a, _ = c.Get(ctx, "a1")
	if !a.ChainMirrored {
		t.Error("mirrored flag should be visible after SetMirrored")
	}
	if got := inner.gets.Load(); got != 3 {
		t.Errorf("underlying Get calls = %d, want 3", got)
	}
}

func TestAPIStore_MissNotCached(t *testing.T) {
	c, inner := newCached(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := c.Get(ctx, "missing"); !errors.Is(err, ports.ErrNotFound) {
			t.Errorf("Get(missing) = %v, want ErrNotFound", err)
		}
	}
	if got := inner.gets.Load(); got != 2 {
		t.Errorf("underlying Get calls = %d, want 2", got)
	}
}
