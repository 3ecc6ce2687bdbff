package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/artpar/trustmeter/bootstrap"
	"github.com/artpar/trustmeter/config"
	"github.com/artpar/trustmeter/domain/identity"
	"github.com/artpar/trustmeter/ports"
	"github.com/rs/zerolog"
)

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)

// openStores loads the config and opens its database for inspection.
func openStores(ctx context.Context) (*bootstrap.Stores, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.Driver == "memory" {
		return nil, errors.New("database.driver is 'memory'; there is no stored data to inspect")
	}
	stores, err := bootstrap.OpenStores(ctx, cfg.Database, zerolog.Nop())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return stores, nil
}

// lookupWallet resolves a wallet address to its user.
func lookupWallet(ctx context.Context, users ports.UserStore, wallet string) (identity.User, error) {
	addr, err := identity.NormalizeAddress(wallet)
	if err != nil {
		return identity.User{}, fmt.Errorf("invalid --wallet: %w", err)
	}
	u, err := users.GetByAddress(ctx, addr)
	if errors.Is(err, ports.ErrNotFound) {
		return identity.User{}, fmt.Errorf("wallet not found: %s", addr)
	}
	return u, err
}

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}
