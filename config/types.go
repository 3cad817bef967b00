package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"anchorplatform/core/assets"
)

// Duration decodes human strings such as "30s" or "5m" from YAML and TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler, which TOML uses.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML accepts a duration string or a bare number of seconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar, got %v", node.Tag)
	}
	if node.Tag == "!!int" {
		var seconds int64
		if err := node.Decode(&seconds); err != nil {
			return err
		}
		d.Duration = time.Duration(seconds) * time.Second
		return nil
	}
	return d.UnmarshalText([]byte(node.Value))
}

// ServerConfig configures the JSON-RPC listener.
type ServerConfig struct {
	Listen         string   `yaml:"listen" toml:"listen"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes" toml:"max_body_bytes"`
	RequestTimeout Duration `yaml:"request_timeout" toml:"request_timeout"`
	ShutdownGrace  Duration `yaml:"shutdown_grace" toml:"shutdown_grace"`
}

// AuthConfig configures bearer token authentication of the platform API.
type AuthConfig struct {
	Enabled    bool     `yaml:"enabled" toml:"enabled"`
	HMACSecret string   `yaml:"jwt_secret" toml:"jwt_secret"`
	Issuer     string   `yaml:"issuer" toml:"issuer"`
	Audience   string   `yaml:"audience" toml:"audience"`
	ClockSkew  Duration `yaml:"clock_skew" toml:"clock_skew"`
}

// RateLimitConfig caps requests per client address.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute" toml:"requests_per_minute"`
	Burst             int     `yaml:"burst" toml:"burst"`
}

// DatabaseConfig selects the transaction store backend.
type DatabaseConfig struct {
	Driver          string   `yaml:"driver" toml:"driver"`
	DSN             string   `yaml:"dsn" toml:"dsn"`
	MaxOpenConns    int      `yaml:"max_open_conns" toml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns" toml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime" toml:"conn_max_lifetime"`
	SlowThreshold   Duration `yaml:"slow_threshold" toml:"slow_threshold"`
}

// AssetsConfig declares the asset catalog inline or by file.
type AssetsConfig struct {
	File string         `yaml:"file" toml:"file"`
	List []assets.Asset `yaml:"list" toml:"list"`
}

// CustodyConfig configures the optional custody integration.
type CustodyConfig struct {
	Enabled    bool     `yaml:"enabled" toml:"enabled"`
	Type       string   `yaml:"type" toml:"type"`
	BaseURL    string   `yaml:"base_url" toml:"base_url"`
	AuthToken  string   `yaml:"auth_token" toml:"auth_token"`
	CACertFile string   `yaml:"ca_cert_file" toml:"ca_cert_file"`
	CertFile   string   `yaml:"cert_file" toml:"cert_file"`
	KeyFile    string   `yaml:"key_file" toml:"key_file"`
	Timeout    Duration `yaml:"timeout" toml:"timeout"`
}

// HorizonConfig configures the ledger reconciler.
type HorizonConfig struct {
	URL               string   `yaml:"url" toml:"url"`
	Timeout           Duration `yaml:"timeout" toml:"timeout"`
	RequestsPerSecond float64  `yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int      `yaml:"burst" toml:"burst"`
}

// CustomersConfig points at the business server that owns KYC state.
type CustomersConfig struct {
	BaseURL string   `yaml:"base_url" toml:"base_url"`
	APIKey  string   `yaml:"api_key" toml:"api_key"`
	Timeout Duration `yaml:"timeout" toml:"timeout"`
}

// WebhookConfig is one lifecycle event subscriber.
type WebhookConfig struct {
	URL    string   `yaml:"url" toml:"url"`
	Secret string   `yaml:"secret" toml:"secret"`
	Types  []string `yaml:"types" toml:"types"`
}

// EventsConfig sizes the in-process event queue and its webhook fan-out.
type EventsConfig struct {
	QueueCapacity   int             `yaml:"queue_capacity" toml:"queue_capacity"`
	HistoryCapacity int             `yaml:"history_capacity" toml:"history_capacity"`
	TTL             Duration        `yaml:"ttl" toml:"ttl"`
	MaxAttempts     int             `yaml:"max_attempts" toml:"max_attempts"`
	BaseBackoff     Duration        `yaml:"base_backoff" toml:"base_backoff"`
	Webhooks        []WebhookConfig `yaml:"webhooks" toml:"webhooks"`
}

// DepositInfoConfig selects the deposit info generator of each family.
type DepositInfoConfig struct {
	SEP6  string `yaml:"sep6" toml:"sep6"`
	SEP24 string `yaml:"sep24" toml:"sep24"`
	SEP31 string `yaml:"sep31" toml:"sep31"`
}

// ReconConfig schedules the nightly ledger reconciliation.
type ReconConfig struct {
	Enabled   bool     `yaml:"enabled" toml:"enabled"`
	OutputDir string   `yaml:"output_dir" toml:"output_dir"`
	IndexPath string   `yaml:"index_path" toml:"index_path"`
	RunHour   int      `yaml:"run_hour" toml:"run_hour"`
	RunMinute int      `yaml:"run_minute" toml:"run_minute"`
	Window    Duration `yaml:"window" toml:"window"`
	DryRun    bool     `yaml:"dry_run" toml:"dry_run"`
}

// TelemetryConfig configures OTLP export.
type TelemetryConfig struct {
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
	Insecure bool   `yaml:"insecure" toml:"insecure"`
	Headers  string `yaml:"headers" toml:"headers"`
	Traces   bool   `yaml:"traces" toml:"traces"`
	Metrics  bool   `yaml:"metrics" toml:"metrics"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level"`
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
	Compress   bool   `yaml:"compress" toml:"compress"`
}
