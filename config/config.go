// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TRUSTMETER_"

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Chain    ChainConfig    `yaml:"chain"`
	Usage    UsageConfig    `yaml:"usage"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DatabaseConfig configures storage.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite", "postgres" or "memory"
	DSN    string `yaml:"dsn"`
}

// AuthConfig configures wallet sign-in and sessions.
type AuthConfig struct {
	Domain        string        `yaml:"domain"`
	URI           string        `yaml:"uri"`
	TermsURL      string        `yaml:"tos_url"`
	ChainID       int64         `yaml:"chain_id"`
	ChallengeTTL  time.Duration `yaml:"challenge_ttl"`
	EnforceExpiry *bool         `yaml:"enforce_expiry"` // default true
	JWTSecret     string        `yaml:"jwt_secret,omitempty"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

// ExpiryEnforced reports whether expired challenges are rejected.
func (a AuthConfig) ExpiryEnforced() bool {
	return a.EnforceExpiry == nil || *a.EnforceExpiry
}

// ChainConfig configures the chain node and settlement verification.
type ChainConfig struct {
	RPCURL           string        `yaml:"rpc_url"` // empty runs without a chain
	Timeout          time.Duration `yaml:"timeout"`
	MinConfirmations uint64        `yaml:"min_confirmations"`
	SettlementMode   string        `yaml:"settlement_mode"` // "direct" or "contract"
	ContractAddress  string        `yaml:"contract_address,omitempty"`
	VerifyContract   bool          `yaml:"verify_contract"` // mirror registrations against the contract
}

// UsageConfig configures usage recording.
type UsageConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// CacheConfig configures the API catalog cache.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	TTL       time.Duration `yaml:"ttl"`
	MaxSizeMB int           `yaml:"max_size_mb"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	cfg := Config{Metrics: MetricsConfig{Enabled: true}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return finish(&cfg)
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	TRUSTMETER_SERVER_HOST              - Server host (default: 0.0.0.0)
//	TRUSTMETER_SERVER_PORT              - Server port (default: 8080)
//	TRUSTMETER_DATABASE_DRIVER          - sqlite, postgres or memory (default: sqlite)
//	TRUSTMETER_DATABASE_DSN             - Database path or URL (default: trustmeter.db)
//	TRUSTMETER_AUTH_DOMAIN              - Sign-in domain (default: localhost)
//	TRUSTMETER_AUTH_CHAIN_ID            - Chain ID in the sign-in message (default: 1)
//	TRUSTMETER_AUTH_JWT_SECRET          - Session signing secret (random if unset)
//	TRUSTMETER_CHAIN_RPC_URL            - Ethereum JSON-RPC endpoint
//	TRUSTMETER_CHAIN_SETTLEMENT_MODE    - direct or contract (default: direct)
//	TRUSTMETER_CHAIN_CONTRACT_ADDRESS   - Settlement contract address
//	TRUSTMETER_CHAIN_MIN_CONFIRMATIONS  - Required confirmations (default: 1)
//	TRUSTMETER_LOG_LEVEL                - debug, info, warn, error (default: info)
//	TRUSTMETER_LOG_FORMAT               - json or console (default: json)
//	TRUSTMETER_METRICS_ENABLED          - Enable /metrics endpoint (default: true)
func LoadFromEnv() (*Config, error) {
	cfg := Config{Metrics: MetricsConfig{Enabled: true}}
	return finish(&cfg)
}

// LoadWithFallback loads path if it exists and falls back to environment variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)
	setDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// applyEnvOverrides applies TRUSTMETER_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	envString("SERVER_HOST", &cfg.Server.Host)
	envInt("SERVER_PORT", &cfg.Server.Port)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("SERVER_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)

	envString("DATABASE_DRIVER", &cfg.Database.Driver)
	envString("DATABASE_DSN", &cfg.Database.DSN)

	envString("AUTH_DOMAIN", &cfg.Auth.Domain)
	envString("AUTH_URI", &cfg.Auth.URI)
	envString("AUTH_TOS_URL", &cfg.Auth.TermsURL)
	if v := os.Getenv(EnvPrefix + "AUTH_CHAIN_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Auth.ChainID = n
		}
	}
	envDuration("AUTH_CHALLENGE_TTL", &cfg.Auth.ChallengeTTL)
	if v := os.Getenv(EnvPrefix + "AUTH_ENFORCE_EXPIRY"); v != "" {
		b := parseBool(v)
		cfg.Auth.EnforceExpiry = &b
	}
	envString("AUTH_JWT_SECRET", &cfg.Auth.JWTSecret)
	envDuration("AUTH_SESSION_TTL", &cfg.Auth.SessionTTL)

	envString("CHAIN_RPC_URL", &cfg.Chain.RPCURL)
	envDuration("CHAIN_TIMEOUT", &cfg.Chain.Timeout)
	if v := os.Getenv(EnvPrefix + "CHAIN_MIN_CONFIRMATIONS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Chain.MinConfirmations = n
		}
	}
	envString("CHAIN_SETTLEMENT_MODE", &cfg.Chain.SettlementMode)
	envString("CHAIN_CONTRACT_ADDRESS", &cfg.Chain.ContractAddress)
	envBool("CHAIN_VERIFY_CONTRACT", &cfg.Chain.VerifyContract)

	envInt("USAGE_MAX_RETRIES", &cfg.Usage.MaxRetries)
	envDuration("USAGE_RETRY_BACKOFF", &cfg.Usage.RetryBackoff)

	envBool("CACHE_ENABLED", &cfg.Cache.Enabled)
	envDuration("CACHE_TTL", &cfg.Cache.TTL)
	envInt("CACHE_MAX_SIZE_MB", &cfg.Cache.MaxSizeMB)

	envString("LOG_LEVEL", &cfg.Logging.Level)
	envString("LOG_FORMAT", &cfg.Logging.Format)

	envBool("METRICS_ENABLED", &cfg.Metrics.Enabled)
	envString("METRICS_PATH", &cfg.Metrics.Path)
}

func envString(key string, dst *string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = parseBool(v)
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 30 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "trustmeter.db"
	}

	if cfg.Auth.Domain == "" {
		cfg.Auth.Domain = "localhost"
	}
	if cfg.Auth.URI == "" {
		cfg.Auth.URI = "http://" + cfg.Auth.Domain
	}
	if cfg.Auth.TermsURL == "" {
		cfg.Auth.TermsURL = strings.TrimRight(cfg.Auth.URI, "/") + "/tos"
	}
	if cfg.Auth.ChainID == 0 {
		cfg.Auth.ChainID = 1
	}
	if cfg.Auth.ChallengeTTL == 0 {
		cfg.Auth.ChallengeTTL = 24 * time.Hour
	}
	if cfg.Auth.SessionTTL == 0 {
		cfg.Auth.SessionTTL = time.Hour
	}

	if cfg.Chain.Timeout == 0 {
		cfg.Chain.Timeout = 15 * time.Second
	}
	if cfg.Chain.MinConfirmations == 0 {
		cfg.Chain.MinConfirmations = 1
	}
	if cfg.Chain.SettlementMode == "" {
		cfg.Chain.SettlementMode = "direct"
	}

	if cfg.Usage.MaxRetries == 0 {
		cfg.Usage.MaxRetries = 5
	}
	if cfg.Usage.RetryBackoff == 0 {
		cfg.Usage.RetryBackoff = 10 * time.Millisecond
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 30 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	switch cfg.Database.Driver {
	case "sqlite", "memory":
	case "postgres":
		if cfg.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required when database.driver is 'postgres'")
		}
	default:
		return fmt.Errorf("database.driver must be 'sqlite', 'postgres' or 'memory', got %q", cfg.Database.Driver)
	}

	if cfg.Auth.ChallengeTTL < 0 {
		return fmt.Errorf("auth.challenge_ttl must not be negative")
	}

	switch cfg.Chain.SettlementMode {
	case "direct":
	case "contract":
		if cfg.Chain.ContractAddress == "" {
			return fmt.Errorf("chain.contract_address is required when chain.settlement_mode is 'contract'")
		}
	default:
		return fmt.Errorf("chain.settlement_mode must be 'direct' or 'contract', got %q", cfg.Chain.SettlementMode)
	}
	if cfg.Chain.ContractAddress != "" && !common.IsHexAddress(cfg.Chain.ContractAddress) {
		return fmt.Errorf("chain.contract_address is not a valid address: %q", cfg.Chain.ContractAddress)
	}
	if cfg.Chain.VerifyContract && cfg.Chain.ContractAddress == "" {
		return fmt.Errorf("chain.contract_address is required when chain.verify_contract is set")
	}

	if cfg.Usage.MaxRetries < 0 {
		return fmt.Errorf("usage.max_retries must not be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	return nil
}
