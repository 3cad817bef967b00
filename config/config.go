// Package config loads the anchor platform configuration from YAML or TOML
// with ANCHOR_* environment overrides.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Service     string            `yaml:"service" toml:"service"`
	Environment string            `yaml:"env" toml:"env"`
	Server      ServerConfig      `yaml:"server" toml:"server"`
	Auth        AuthConfig        `yaml:"auth" toml:"auth"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit" toml:"rate_limit"`
	Database    DatabaseConfig    `yaml:"database" toml:"database"`
	Assets      AssetsConfig      `yaml:"assets" toml:"assets"`
	Custody     CustodyConfig     `yaml:"custody" toml:"custody"`
	Horizon     HorizonConfig     `yaml:"horizon" toml:"horizon"`
	Customers   CustomersConfig   `yaml:"customers" toml:"customers"`
	Events      EventsConfig      `yaml:"events" toml:"events"`
	DepositInfo DepositInfoConfig `yaml:"deposit_info_generator" toml:"deposit_info_generator"`
	Recon       ReconConfig       `yaml:"recon" toml:"recon"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" toml:"telemetry"`
	Logging     LoggingConfig     `yaml:"logging" toml:"logging"`
}

// Default returns the configuration used when a field is left unset.
func Default() Config {
	return Config{
		Service:     "anchor-platform",
		Environment: "dev",
		Server: ServerConfig{
			Listen:         ":8085",
			MaxBodyBytes:   1 << 20,
			RequestTimeout: Duration{30 * time.Second},
			ShutdownGrace:  Duration{10 * time.Second},
		},
		Auth: AuthConfig{ClockSkew: Duration{2 * time.Minute}},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "file:anchor.db?_pragma=busy_timeout(5000)",
		},
		Custody: CustodyConfig{Timeout: Duration{10 * time.Second}},
		Horizon: HorizonConfig{
			URL:               "https://horizon-testnet.stellar.org",
			Timeout:           Duration{10 * time.Second},
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Events: EventsConfig{
			QueueCapacity:   1024,
			HistoryCapacity: 512,
			TTL:             Duration{time.Hour},
			MaxAttempts:     5,
			BaseBackoff:     Duration{time.Second},
		},
		DepositInfo: DepositInfoConfig{SEP6: "self", SEP24: "self", SEP31: "self"},
		Recon: ReconConfig{
			OutputDir: filepath.Join("anchor-data", "recon"),
			IndexPath: filepath.Join("anchor-data", "recon", "index.db"),
			RunHour:   1,
			Window:    Duration{24 * time.Hour},
		},
		Logging: LoggingConfig{Level: "info", MaxSizeMB: 100, MaxBackups: 7, MaxAgeDays: 28},
	}
}

// Load reads path (YAML unless the extension is .toml), then applies
// ANCHOR_* environment overrides and validates the result. An empty path
// loads defaults plus environment.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		if err := decode(path, data, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		meta, err := toml.Decode(string(data), cfg)
		if err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("decode config: unknown key %s", undecoded[0])
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	}
	return nil
}
