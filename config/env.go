package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ANCHOR_"

type envBinding struct {
	key string
	set func(cfg *Config, value string) error
}

func str(ptr func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		*ptr(cfg) = value
		return nil
	}
}

func boolean(ptr func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		*ptr(cfg) = parsed
		return nil
	}
}

func integer(ptr func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		*ptr(cfg) = parsed
		return nil
	}
}

func duration(ptr func(*Config) *Duration) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		ptr(cfg).Duration = parsed
		return nil
	}
}

var envBindings = []envBinding{
	{"ENV", str(func(c *Config) *string { return &c.Environment })},
	{"LISTEN", str(func(c *Config) *string { return &c.Server.Listen })},
	{"REQUEST_TIMEOUT", duration(func(c *Config) *Duration { return &c.Server.RequestTimeout })},
	{"AUTH_ENABLED", boolean(func(c *Config) *bool { return &c.Auth.Enabled })},
	{"JWT_SECRET", str(func(c *Config) *string { return &c.Auth.HMACSecret })},
	{"DB_DRIVER", str(func(c *Config) *string { return &c.Database.Driver })},
	{"DB_DSN", str(func(c *Config) *string { return &c.Database.DSN })},
	{"ASSETS_FILE", str(func(c *Config) *string { return &c.Assets.File })},
	{"CUSTODY_ENABLED", boolean(func(c *Config) *bool { return &c.Custody.Enabled })},
	{"CUSTODY_BASE_URL", str(func(c *Config) *string { return &c.Custody.BaseURL })},
	{"CUSTODY_AUTH_TOKEN", str(func(c *Config) *string { return &c.Custody.AuthToken })},
	{"HORIZON_URL", str(func(c *Config) *string { return &c.Horizon.URL })},
	{"CUSTOMERS_BASE_URL", str(func(c *Config) *string { return &c.Customers.BaseURL })},
	{"CUSTOMERS_API_KEY", str(func(c *Config) *string { return &c.Customers.APIKey })},
	{"RECON_ENABLED", boolean(func(c *Config) *bool { return &c.Recon.Enabled })},
	{"RECON_OUTPUT_DIR", str(func(c *Config) *string { return &c.Recon.OutputDir })},
	{"RECON_RUN_HOUR", integer(func(c *Config) *int { return &c.Recon.RunHour })},
	{"OTEL_ENDPOINT", str(func(c *Config) *string { return &c.Telemetry.Endpoint })},
	{"OTEL_HEADERS", str(func(c *Config) *string { return &c.Telemetry.Headers })},
	{"LOG_LEVEL", str(func(c *Config) *string { return &c.Logging.Level })},
	{"LOG_FILE", str(func(c *Config) *string { return &c.Logging.File })},
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, binding := range envBindings {
		value, ok := lookup(EnvPrefix + binding.key)
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if err := binding.set(cfg, value); err != nil {
			return fmt.Errorf("env %s%s: %w", EnvPrefix, binding.key, err)
		}
	}
	return nil
}
