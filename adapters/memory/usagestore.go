package memory

import (
	"context"
	"hash/fnv"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/artpar/trustmeter/domain/usage"
	"github.com/artpar/trustmeter/domain/wei"
	"github.com/artpar/trustmeter/ports"
)

const defaultUsageShards = 32

// usageShard owns the open periods whose key hashes to it.
type usageShard struct {
	mu   sync.Mutex
	open map[string]usage.Period // userID/apiID -> open period
}

// UsageStore is an in-memory implementation of ports.UsageStore.
// Open periods are sharded by (user, api) so increments on different keys
// don't contend; closed and settled periods live in a shared history.
type UsageStore struct {
	shards []*usageShard

	mu      sync.RWMutex
	history map[string]usage.Period // batchID -> closed/settled period
	txUsed  map[string]string       // settle tx hash -> batchID
}

// NewUsageStore creates a usage store with numShards shards (default 32).
func NewUsageStore(numShards int) *UsageStore {
	if numShards <= 0 {
		numShards = defaultUsageShards
	}
	s := &UsageStore{
		shards:  make([]*usageShard, numShards),
		history: make(map[string]usage.Period),
		txUsed:  make(map[string]string),
	}
	for i := range s.shards {
		s.shards[i] = &usageShard{open: make(map[string]usage.Period)}
	}
	return s
}

func periodKey(userID, apiID string) string {
	return userID + "/" + apiID
}

func (s *UsageStore) shard(key string) *usageShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Increment records one request on the open period, creating it if needed.
func (s *UsageStore) Increment(ctx context.Context, userID, apiID, newID string, price *big.Int, at time.Time) (usage.Period, error) {
	key := periodKey(userID, apiID)
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	p, ok := sh.open[key]
	if !ok {
		p = usage.Open(newID, userID, apiID, at)
	}
	p, err := usage.Record(p, price, at)
	if err != nil {
		return usage.Period{}, err
	}
	sh.open[key] = p
	return clonePeriod(p), nil
}

// GetOpen returns the open period for (userID, apiID).
func (s *UsageStore) GetOpen(ctx context.Context, userID, apiID string) (usage.Period, error) {
	key := periodKey(userID, apiID)
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	p, ok := sh.open[key]
	if !ok {
		return usage.Period{}, ports.ErrNotFound
	}
	return clonePeriod(p), nil
}

// CloseOpen freezes the open period under batchID and moves it to history.
func (s *UsageStore) CloseOpen(ctx context.Context, userID, apiID, batchID string, at time.Time) (usage.Period, error) {
	key := periodKey(userID, apiID)
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	p, ok := sh.open[key]
	if !ok {
		return usage.Period{}, ports.ErrNotFound
	}
	closed, err := usage.Close(p, batchID, at)
	if err != nil {
		return usage.Period{}, err
	}

	s.mu.Lock()
	if _, exists := s.history[batchID]; exists {
		s.mu.Unlock()
		return usage.Period{}, ports.ErrDuplicate
	}
	s.history[batchID] = closed
	s.mu.Unlock()

	delete(sh.open, key)
	return clonePeriod(closed), nil
}

// GetByBatch returns the period frozen under batchID.
func (s *UsageStore) GetByBatch(ctx context.Context, batchID string) (usage.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.history[batchID]
	if !ok {
		return usage.Period{}, ports.ErrNotFound
	}
	return clonePeriod(p), nil
}

// MarkSettled moves a closed period to settled.
func (s *UsageStore) MarkSettled(ctx context.Context, batchID, txHash string, at time.Time) (usage.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.history[batchID]
	if !ok {
		return usage.Period{}, ports.ErrNotFound
	}
	if p.State != usage.StateClosed {
		return usage.Period{}, ports.ErrStateChanged
	}
	if other, used := s.txUsed[txHash]; used && other != batchID {
		return usage.Period{}, ports.ErrDuplicate
	}

	settled, err := usage.Settle(p, txHash, at)
	if err != nil {
		return usage.Period{}, ports.ErrStateChanged
	}
	s.history[batchID] = settled
	s.txUsed[txHash] = batchID
	return clonePeriod(settled), nil
}

// List returns periods matching f, newest first.
func (s *UsageStore) List(ctx context.Context, f usage.Filter) ([]usage.Period, error) {
	var out []usage.Period

	if f.State == "" || f.State == usage.StateOpen {
		for _, sh := range s.shards {
			sh.mu.Lock()
			for _, p := range sh.open {
				if f.Matches(p) {
					out = append(out, clonePeriod(p))
				}
			}
			sh.mu.Unlock()
		}
	}

	if f.State != usage.StateOpen {
		s.mu.RLock()
		for _, p := range s.history {
			if f.Matches(p) {
				out = append(out, clonePeriod(p))
			}
		}
		s.mu.RUnlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].OpenedAt.After(out[j].OpenedAt)
	})
	if limit := f.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func clonePeriod(p usage.Period) usage.Period {
	p.PendingPayment = wei.Copy(p.PendingPayment)
	return p
}

var _ ports.UsageStore = (*UsageStore)(nil)
