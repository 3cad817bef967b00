package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"anchorplatform/core/events"
)

var depositInfoKinds = map[string]bool{"self": true, "custody": true, "none": true}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.Server.Listen) == "" {
		add("server: listen address required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		add("server: max_body_bytes must be positive")
	}
	if c.Auth.Enabled && strings.TrimSpace(c.Auth.HMACSecret) == "" {
		add("auth: jwt_secret required when auth is enabled")
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		add("rate_limit: values must not be negative")
	}

	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "postgres":
	default:
		add("database: unsupported driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		add("database: dsn required")
	}

	if c.Custody.Enabled {
		if c.Custody.Type != "fireblocks" {
			add("custody: unsupported type %q", c.Custody.Type)
		}
		if err := checkURL(c.Custody.BaseURL); err != nil {
			add("custody: base_url: %v", err)
		}
		if (c.Custody.CertFile == "") != (c.Custody.KeyFile == "") {
			add("custody: cert_file and key_file must be set together")
		}
	}
	if c.Recon.Enabled {
		if err := checkURL(c.Horizon.URL); err != nil {
			add("horizon: url: %v", err)
		}
	}
	if c.Customers.BaseURL != "" {
		if err := checkURL(c.Customers.BaseURL); err != nil {
			add("customers: base_url: %v", err)
		}
	}

	for family, kind := range map[string]string{"sep6": c.DepositInfo.SEP6, "sep24": c.DepositInfo.SEP24, "sep31": c.DepositInfo.SEP31} {
		kind = strings.ToLower(strings.TrimSpace(kind))
		if kind == "" {
			continue
		}
		if !depositInfoKinds[kind] {
			add("deposit_info_generator: %s: unknown generator %q", family, kind)
			continue
		}
		if kind == "custody" && !c.Custody.Enabled {
			add("deposit_info_generator: %s: custody generator requires custody.enabled", family)
		}
	}

	if c.Events.QueueCapacity <= 0 {
		add("events: queue_capacity must be positive")
	}
	for i, hook := range c.Events.Webhooks {
		if err := checkURL(hook.URL); err != nil {
			add("events: webhooks[%d]: url: %v", i, err)
		}
		for _, t := range hook.Types {
			if !events.Type(t).Valid() {
				add("events: webhooks[%d]: unknown event type %q", i, t)
			}
		}
	}

	if c.Recon.Enabled {
		if strings.TrimSpace(c.Recon.OutputDir) == "" {
			add("recon: output_dir required")
		}
		if c.Recon.RunHour < 0 || c.Recon.RunHour > 23 {
			add("recon: run_hour must be within 0-23")
		}
		if c.Recon.RunMinute < 0 || c.Recon.RunMinute > 59 {
			add("recon: run_minute must be within 0-59")
		}
		if c.Recon.Window.Duration <= 0 {
			add("recon: window must be positive")
		}
	}
	return errors.Join(errs...)
}

func checkURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("host required")
	}
	return nil
}
