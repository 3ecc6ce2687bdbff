package bootstrap

import (
	"context"
	"fmt"

	"github.com/artpar/trustmeter/adapters/memory"
	"github.com/artpar/trustmeter/adapters/postgres"
	"github.com/artpar/trustmeter/adapters/sqlite"
	"github.com/artpar/trustmeter/config"
	"github.com/artpar/trustmeter/ports"
	"github.com/rs/zerolog"
)

// Stores holds the persistence adapters selected by database.driver.
type Stores struct {
	Users ports.UserStore
	APIs  ports.APIStore
	Usage ports.UsageStore

	// Pinger reports database health; nil for the memory driver.
	Pinger ports.Pinger

	closers []func() error
}

// Close releases the database connection.
func (s *Stores) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

// OpenStores connects to the configured database and runs migrations.
func OpenStores(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*Stores, error) {
	switch cfg.Driver {
	case "memory":
		logger.Warn().Msg("using in-memory storage; data is lost on restart")
		return &Stores{
			Users: memory.NewUserStore(),
			APIs:  memory.NewAPIStore(),
			Usage: memory.NewUsageStore(0),
		}, nil

	case "postgres":
		db, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Str("driver", cfg.Driver).Msg("database initialized")
		return &Stores{
			Users:   postgres.NewUserStore(db),
			APIs:    postgres.NewAPIStore(db),
			Usage:   postgres.NewUsageStore(db),
			Pinger:  db,
			closers: []func() error{db.Close},
		}, nil

	case "sqlite", "":
		db, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Str("driver", "sqlite").Str("dsn", cfg.DSN).Msg("database initialized")
		return &Stores{
			Users:   sqlite.NewUserStore(db),
			APIs:    sqlite.NewAPIStore(db),
			Usage:   sqlite.NewUsageStore(db),
			Pinger:  db,
			closers: []func() error{db.Close},
		}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
