package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/artpar/trustmeter/config"
	"github.com/rs/zerolog"
)

func TestHolder_Reload(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	if got := h.Get().Logging.Level; got != "info" {
		t.Errorf("initial Level = %s, want info", got)
	}

	var mu sync.Mutex
	var received *config.Config
	h.OnChange(func(cfg *config.Config) {
		mu.Lock()
		received = cfg
		mu.Unlock()
	})

	writeFile(t, path, "logging:\n  level: debug\n")
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}

	if got := h.Get().Logging.Level; got != "debug" {
		t.Errorf("reloaded Level = %s, want debug", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if received == nil || received.Logging.Level != "debug" {
		t.Errorf("OnChange received %+v", received)
	}
}

func TestHolder_ReloadInvalidConfig(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	var reloadErr error
	h.OnReloadError(func(err error) { reloadErr = err })

	writeFile(t, path, "chain:\n  settlement_mode: escrow\n")
	if err := h.Reload(); err == nil {
		t.Error("Reload should fail for invalid config")
	}
	if reloadErr == nil {
		t.Error("OnReloadError callback was not called")
	}

	if got := h.Get().Chain.SettlementMode; got != "direct" {
		t.Errorf("should keep old config, got SettlementMode = %s", got)
	}
}

func TestHolder_WatchFile(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	changed := make(chan struct{}, 1)
	h.OnChange(func(cfg *config.Config) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	if err := h.WatchFile(); err != nil {
		t.Fatalf("WatchFile error: %v", err)
	}

	writeFile(t, path, "logging:\n  level: warn\n")

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("file watcher did not trigger reload")
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.Get().Logging.Level != "warn" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := h.Get().Logging.Level; got != "warn" {
		t.Errorf("after file watch, Level = %s, want warn", got)
	}
}

func TestHolder_ConcurrentAccess(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if h.Get() == nil {
					t.Error("concurrent Get returned nil")
				}
			}
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Reload()
		}()
	}
	wg.Wait()

	h.Stop()
	h.Stop()
}

func TestReloadableFields(t *testing.T) {
	reloadable := config.ReloadableFields()
	nonReloadable := config.NonReloadableFields()

	if len(reloadable) == 0 || len(nonReloadable) == 0 {
		t.Fatal("field lists must not be empty")
	}

	seen := make(map[string]bool)
	for _, f := range reloadable {
		seen[f] = true
	}
	for _, f := range nonReloadable {
		if seen[f] {
			t.Errorf("%s listed as both reloadable and non-reloadable", f)
		}
	}
	if !seen["logging.level"] {
		t.Error("logging.level should be reloadable")
	}
}

func TestRestartRequired(t *testing.T) {
	base := func() *config.Config {
		return &config.Config{
			Server:   config.ServerConfig{Host: "0.0.0.0", Port: 8080},
			Database: config.DatabaseConfig{Driver: "sqlite", DSN: "trustmeter.db"},
			Chain:    config.ChainConfig{SettlementMode: "direct", MinConfirmations: 1},
			Logging:  config.LoggingConfig{Level: "info"},
		}
	}

	tests := []struct {
		name   string
		modify func(*config.Config)
		want   []string
	}{
		{"unchanged", func(*config.Config) {}, nil},
		{"log level only", func(c *config.Config) { c.Logging.Level = "debug" }, nil},
		{"port", func(c *config.Config) { c.Server.Port = 9090 }, []string{"server.port"}},
		{"settlement", func(c *config.Config) {
			c.Chain.SettlementMode = "contract"
			c.Chain.ContractAddress = "0x00000000000000000000000000000000000000aa"
			c.Chain.MinConfirmations = 3
		}, []string{"chain.settlement_mode", "chain.contract_address", "chain.min_confirmations"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := base()
			tt.modify(next)
			got := config.RestartRequired(base(), next)
			if len(got) != len(tt.want) {
				t.Fatalf("RestartRequired = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("RestartRequired[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}

	listed := make(map[string]bool)
	for _, f := range config.NonReloadableFields() {
		listed[f] = true
	}
	if !listed["chain.min_confirmations"] || !listed["database.dsn"] {
		t.Errorf("NonReloadableFields = %v", config.NonReloadableFields())
	}
}

// Helpers

func validConfig() string {
	return `
database:
  driver: memory
logging:
  level: info
`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trustmeter.yaml")
	writeFile(t, path, content)
	return path
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}
