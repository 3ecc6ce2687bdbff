// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artpar/trustmeter/adapters/auth"
	"github.com/artpar/trustmeter/adapters/cache"
	"github.com/artpar/trustmeter/adapters/clock"
	"github.com/artpar/trustmeter/adapters/ethereum"
	apihttp "github.com/artpar/trustmeter/adapters/http"
	"github.com/artpar/trustmeter/adapters/idgen"
	"github.com/artpar/trustmeter/adapters/metrics"
	"github.com/artpar/trustmeter/adapters/random"
	"github.com/artpar/trustmeter/app"
	"github.com/artpar/trustmeter/config"
	"github.com/artpar/trustmeter/domain/identity"
	"github.com/artpar/trustmeter/domain/settlement"
	"github.com/artpar/trustmeter/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Version is the build version reported by /version. Set with -ldflags.
var Version = "dev"

// App represents the running application.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	HTTPServer *http.Server
	Metrics    *metrics.Collector
	Registry   *prometheus.Registry

	// Services
	Identities *app.IdentityService
	Auth       *app.Authenticator
	Catalog    *app.CatalogService
	Usage      *app.UsageMeter
	Settlement *app.SettlementCoordinator

	Stores *Stores
	Chain  *Chain

	apiCache *cache.APIStore
	holder   *config.Holder
}

// Options configures application initialization.
type Options struct {
	// Config is used as-is when set. Otherwise ConfigPath is loaded, falling
	// back to environment variables when the file does not exist.
	Config     *config.Config
	ConfigPath string

	// Watch enables hot reload of ConfigPath (file watch and SIGHUP).
	Watch bool

	// LogOutput defaults to stdout.
	LogOutput io.Writer
}

// New creates and initializes the application.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.LoadWithFallback(opts.ConfigPath); err != nil {
			return nil, err
		}
	}

	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	logger := NewLogger(cfg.Logging, out)
	logger.Info().Str("version", Version).Msg("initializing trustmeter")

	a := &App{Config: cfg, Logger: logger}
	if err := a.wire(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, opts Options) error {
	cfg := a.Config
	logger := a.Logger

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.NewWithRegistry(a.Registry)

	stores, err := OpenStores(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	a.Stores = stores

	apis := stores.APIs
	if cfg.Cache.Enabled {
		a.apiCache, err = cache.NewAPIStore(ctx, stores.APIs, cache.Config{
			TTL:       cfg.Cache.TTL,
			MaxSizeMB: cfg.Cache.MaxSizeMB,
		}, logger)
		if err != nil {
			return fmt.Errorf("init api cache: %w", err)
		}
		apis = a.apiCache
		logger.Info().Dur("ttl", cfg.Cache.TTL).Msg("api cache enabled")
	}

	chain, err := OpenChain(ctx, cfg.Chain, cfg.Auth.ChainID, logger)
	if err != nil {
		return err
	}
	a.Chain = chain

	sessions, err := auth.NewSessionService(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL, clock.Real{})
	if err != nil {
		return fmt.Errorf("init sessions: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Warn().Msg("auth.jwt_secret not set; sessions will not survive a restart")
	}

	var (
		clk = clock.Real{}
		ids = idgen.UUID{}
		rnd = random.Real{}
	)

	a.Identities = app.NewIdentityService(stores.Users, ids, rnd, clk, logger)
	a.Auth = app.NewAuthenticator(a.Identities, ethereum.Verifier{}, sessions, a.Metrics, clk, app.AuthConfig{
		Challenge: identity.ChallengeParams{
			Domain:   cfg.Auth.Domain,
			URI:      cfg.Auth.URI,
			TermsURL: cfg.Auth.TermsURL,
			ChainID:  cfg.Auth.ChainID,
			TTL:      cfg.Auth.ChallengeTTL,
		},
		EnforceExpiry: cfg.Auth.ExpiryEnforced(),
	}, logger)
	a.Catalog = app.NewCatalogService(apis, stores.Users, chain.Registrar, ids, clk, a.Metrics, logger)
	a.Usage = app.NewUsageMeter(stores.Usage, apis, ids, clk, a.Metrics, app.UsageConfig{
		MaxRetries:   cfg.Usage.MaxRetries,
		RetryBackoff: cfg.Usage.RetryBackoff,
	}, logger)
	a.Settlement = app.NewSettlementCoordinator(stores.Usage, apis, stores.Users, chain.Reader, rnd, clk, a.Metrics, app.SettlementConfig{
		Mode:             settlement.Mode(cfg.Chain.SettlementMode),
		Contract:         cfg.Chain.ContractAddress,
		MinConfirmations: cfg.Chain.MinConfirmations,
		ChainTimeout:     cfg.Chain.Timeout,
	}, logger)

	a.initHTTPServer()

	if opts.Watch && opts.ConfigPath != "" && opts.Config == nil {
		if err := a.watchConfig(opts.ConfigPath); err != nil {
			logger.Warn().Err(err).Msg("config hot reload disabled")
		}
	}
	return nil
}

func (a *App) initHTTPServer() {
	cfg := a.Config

	checks := map[string]ports.Pinger{}
	if a.Stores.Pinger != nil {
		checks["database"] = a.Stores.Pinger
	}
	if a.Chain.Pinger != nil {
		checks["chain"] = a.Chain.Pinger
	}

	handler := apihttp.NewHandler(apihttp.Services{
		Auth:       a.Auth,
		Catalog:    a.Catalog,
		Usage:      a.Usage,
		Settlement: a.Settlement,
		Encoder:    a.Chain.Encoder,
	}, a.Logger)

	routerCfg := apihttp.RouterConfig{
		RequestTimeout: cfg.Server.RequestTimeout,
		Version: apihttp.VersionInfo{
			Version: Version,
			Mode:    cfg.Chain.SettlementMode,
		},
	}
	if cfg.Metrics.Enabled {
		routerCfg.Metrics = a.Metrics
		routerCfg.MetricsPath = cfg.Metrics.Path
		routerCfg.MetricsHandler = promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
		a.Logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	router := apihttp.NewRouter(handler, apihttp.NewHealthHandler(checks), a.Logger, routerCfg)

	a.HTTPServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

func (a *App) watchConfig(path string) error {
	holder, err := config.NewHolder(path, a.Logger)
	if err != nil {
		return err
	}
	onChange, onError := ReloadHooks(a.Metrics, a.Logger)
	holder.OnChange(onChange)
	holder.OnReloadError(onError)
	if err := holder.WatchFile(); err != nil {
		holder.Stop()
		return err
	}
	holder.WatchSignals()
	a.holder = holder
	return nil
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Close()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	if a.HTTPServer != nil {
		if err = a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}
	a.Close()
	a.Logger.Info().Msg("shutdown complete")
	return err
}

// Close releases adapters without touching the HTTP server. It is safe to call more than once.
func (a *App) Close() {
	if a.holder != nil {
		a.holder.Stop()
		a.holder = nil
	}
	if a.apiCache != nil {
		if err := a.apiCache.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("api cache close error")
		}
		a.apiCache = nil
	}
	if a.Chain != nil {
		a.Chain.Close()
	}
	if a.Stores != nil {
		if err := a.Stores.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}
}

// NewLogger builds the process logger and sets the global level.
func NewLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}
