package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/trustmeter/domain/usage"
	"github.com/artpar/trustmeter/ports"
	"github.com/rs/zerolog"
)

// UsageConfig bounds retries on storage contention.
type UsageConfig struct {
	MaxRetries   int           // retries after the first attempt
	RetryBackoff time.Duration // base delay, multiplied by the attempt number
}

// DefaultUsageConfig returns the default retry policy.
func DefaultUsageConfig() UsageConfig {
	return UsageConfig{MaxRetries: 5, RetryBackoff: 10 * time.Millisecond}
}

// UsageMeter accumulates metered requests into open usage periods.
type UsageMeter struct {
	usage    ports.UsageStore
	apis     ports.APIStore
	ids      ports.IDGenerator
	clock    ports.Clock
	observer ports.Observer
	cfg      UsageConfig
	logger   zerolog.Logger
}

// NewUsageMeter creates a usage meter.
func NewUsageMeter(store ports.UsageStore, apis ports.APIStore, ids ports.IDGenerator, clock ports.Clock, observer ports.Observer, cfg UsageConfig, logger zerolog.Logger) *UsageMeter {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &UsageMeter{
		usage:    store,
		apis:     apis,
		ids:      ids,
		clock:    clock,
		observer: observerOrNop(observer),
		cfg:      cfg,
		logger:   logger,
	}
}

// RecordUsage charges one request to the caller's open period for apiID at
// the API's current price, opening a period if none is open.
func (m *UsageMeter) RecordUsage(ctx context.Context, userID, apiID string) (usage.Snapshot, error) {
	api, err := m.apis.Get(ctx, apiID)
	if errors.Is(err, ports.ErrNotFound) {
		return usage.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return usage.Snapshot{}, fmt.Errorf("get api: %w", err)
	}

	for attempt := 0; ; attempt++ {
		p, err := m.usage.Increment(ctx, userID, apiID, m.ids.New(), api.PricePerRequest, m.clock.Now())
		if err == nil {
			m.observer.UsageRecorded(apiID, api.PricePerRequest)
			return p.Snapshot(), nil
		}
		if !errors.Is(err, ports.ErrConflict) {
			return usage.Snapshot{}, fmt.Errorf("record usage: %w", err)
		}

		m.observer.StoreConflict("increment")
		if attempt >= m.cfg.MaxRetries {
			m.logger.Warn().
				Str("user_id", userID).
				Str("api_id", apiID).
				Int("attempts", attempt+1).
				Msg("usage increment kept conflicting")
			return usage.Snapshot{}, ErrConflict
		}
		if err := sleep(ctx, m.cfg.RetryBackoff*time.Duration(attempt+1)); err != nil {
			return usage.Snapshot{}, err
		}
	}
}

// GetOpenUsage returns the counters of the open period, or a zero snapshot.
func (m *UsageMeter) GetOpenUsage(ctx context.Context, userID, apiID string) (usage.Snapshot, error) {
	if _, err := m.apis.Get(ctx, apiID); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return usage.Snapshot{}, ErrNotFound
		}
		return usage.Snapshot{}, fmt.Errorf("get api: %w", err)
	}

	p, err := m.usage.GetOpen(ctx, userID, apiID)
	if errors.Is(err, ports.ErrNotFound) {
		return usage.EmptySnapshot(), nil
	}
	if err != nil {
		return usage.Snapshot{}, fmt.Errorf("get open usage: %w", err)
	}
	return p.Snapshot(), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
