// Package config provides configuration loading and hot reload.
package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Holder owns the live trustmeter configuration loaded from a YAML file.
// Only logging.level takes effect on reload; every field listed by
// NonReloadableFields is read once at startup and a change is reported as
// requiring a restart.
type Holder struct {
	path   string
	logger zerolog.Logger

	mu       sync.RWMutex
	current  *Config
	onChange []func(*Config)
	onError  []func(error)

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// NewHolder loads path and returns a holder serving it.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	return &Holder{
		path:    abs,
		logger:  logger.With().Str("config", abs).Logger(),
		current: cfg,
		done:    make(chan struct{}),
	}, nil
}

// Get returns the configuration in effect. Callers must not modify it.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload re-reads the file. On failure the previous configuration stays in
// effect and the OnReloadError callbacks run.
func (h *Holder) Reload() error {
	next, err := Load(h.path)
	if err != nil {
		h.logger.Error().Err(err).Msg("config reload rejected; previous settings remain in effect")
		for _, fn := range h.errorHooks() {
			fn(err)
		}
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	prev := h.current
	h.current = next
	hooks := append([]func(*Config){}, h.onChange...)
	h.mu.Unlock()

	h.report(prev, next)
	for _, fn := range hooks {
		fn(next)
	}
	return nil
}

// OnChange registers fn to run with every successfully reloaded configuration.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// OnReloadError registers fn to run when a reload is rejected.
func (h *Holder) OnReloadError(fn func(error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onError = append(h.onError, fn)
}

func (h *Holder) errorHooks() []func(error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]func(error){}, h.onError...)
}

// WatchFile reloads whenever the config file is written or replaced.
func (h *Holder) WatchFile() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Editors that save atomically replace the file, so watch the directory.
	if err := w.Add(filepath.Dir(h.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch config directory: %w", err)
	}
	h.watcher = w

	go h.watch(w)
	h.logger.Info().Msg("config hot reload enabled")
	return nil
}

// WatchSignals reloads on SIGHUP until Stop is called.
func (h *Holder) WatchSignals() {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

	go func() {
		defer signal.Stop(hup)
		for {
			select {
			case <-hup:
				h.logger.Info().Msg("SIGHUP received")
				_ = h.Reload()
			case <-h.done:
				return
			}
		}
	}()
}

// Stop ends file and signal watching. It is safe to call more than once.
func (h *Holder) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		if h.watcher != nil {
			h.watcher.Close()
		}
	})
}

func (h *Holder) watch(w *fsnotify.Watcher) {
	name := filepath.Base(h.path)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			h.logger.Debug().Str("op", ev.Op.String()).Msg("config file changed")
			_ = h.Reload()

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.logger.Warn().Err(err).Msg("config watcher error")

		case <-h.done:
			return
		}
	}
}

func (h *Holder) report(prev, next *Config) {
	ev := h.logger.Info()
	if prev.Logging.Level != next.Logging.Level {
		ev = ev.Str("logging.level", prev.Logging.Level+" -> "+next.Logging.Level)
	}
	ev.Msg("configuration reloaded")

	for _, field := range RestartRequired(prev, next) {
		h.logger.Warn().Str("field", field).Msg("setting changed but only takes effect after a restart")
	}
}

// restartField is a setting wired into adapters at startup.
type restartField struct {
	name    string
	changed func(a, b *Config) bool
}

var restartFields = []restartField{
	{"server.host", func(a, b *Config) bool { return a.Server.Host != b.Server.Host }},
	{"server.port", func(a, b *Config) bool { return a.Server.Port != b.Server.Port }},
	{"database.driver", func(a, b *Config) bool { return a.Database.Driver != b.Database.Driver }},
	{"database.dsn", func(a, b *Config) bool { return a.Database.DSN != b.Database.DSN }},
	{"auth.jwt_secret", func(a, b *Config) bool { return a.Auth.JWTSecret != b.Auth.JWTSecret }},
	{"chain.rpc_url", func(a, b *Config) bool { return a.Chain.RPCURL != b.Chain.RPCURL }},
	{"chain.settlement_mode", func(a, b *Config) bool { return a.Chain.SettlementMode != b.Chain.SettlementMode }},
	{"chain.contract_address", func(a, b *Config) bool { return a.Chain.ContractAddress != b.Chain.ContractAddress }},
	{"chain.min_confirmations", func(a, b *Config) bool { return a.Chain.MinConfirmations != b.Chain.MinConfirmations }},
}

// RestartRequired lists the non-reloadable settings that differ between a and b.
func RestartRequired(a, b *Config) []string {
	var out []string
	for _, f := range restartFields {
		if f.changed(a, b) {
			out = append(out, f.name)
		}
	}
	return out
}

// ReloadableFields lists the settings a reload applies to the running service.
func ReloadableFields() []string {
	return []string{"logging.level"}
}

// NonReloadableFields lists the settings that need a restart to take effect.
func NonReloadableFields() []string {
	out := make([]string, len(restartFields))
	for i, f := range restartFields {
		out[i] = f.name
	}
	return out
}
