// Package assets resolves asset identifiers against the anchor's catalog and
// validates amounts expressed in those assets.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"anchorplatform/core/types"
)

const (
	stellarPrefix  = "stellar:"
	iso4217Prefix  = "iso4217:"
	defaultCatalog = "assets"
)

// Asset describes a single catalog entry.
type Asset struct {
	// Name is the full asset identifier, e.g. "stellar:USDC:G..." or "iso4217:USD".
	Name                string `yaml:"name" toml:"name"`
	SignificantDecimals *int32 `yaml:"significant_decimals" toml:"significant_decimals"`
	Disabled            bool   `yaml:"disabled" toml:"disabled"`
	DistributionAccount string `yaml:"distribution_account" toml:"distribution_account"`
}

// Catalog is an immutable set of assets keyed by identifier.
type Catalog struct {
	assets map[string]Asset
}

// NewCatalog indexes the provided assets. Duplicate names are rejected.
func NewCatalog(list []Asset) (*Catalog, error) {
	c := &Catalog{assets: make(map[string]Asset, len(list))}
	for _, a := range list {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			return nil, errors.New("assets: asset name required")
		}
		if _, ok := c.assets[name]; ok {
			return nil, fmt.Errorf("assets: duplicate asset %q", name)
		}
		a.Name = name
		c.assets[name] = a
	}
	return c, nil
}

type catalogFile struct {
	Assets []Asset `yaml:"assets" toml:"assets"`
}

// LoadFile reads a catalog from a YAML or TOML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("assets: read catalog: %w", err)
	}
	var file catalogFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &file); err != nil {
			return nil, fmt.Errorf("assets: decode %s: %w", defaultCatalog, err)
		}
	default:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("assets: decode %s: %w", defaultCatalog, err)
		}
	}
	return NewCatalog(file.Assets)
}

// IsStellar reports whether the identifier names an on-ledger asset.
func IsStellar(asset string) bool {
	return strings.HasPrefix(asset, stellarPrefix)
}

// IsFiat reports whether the identifier names an ISO 4217 currency.
func IsFiat(asset string) bool {
	return strings.HasPrefix(asset, iso4217Prefix)
}

// IsStellar reports whether the identifier names an on-ledger asset.
func (c *Catalog) IsStellar(asset string) bool { return IsStellar(asset) }

// Find returns the enabled asset registered under name.
func (c *Catalog) Find(name string) (Asset, bool) {
	if c == nil {
		return Asset{}, false
	}
	a, ok := c.assets[name]
	if !ok || a.Disabled {
		return Asset{}, false
	}
	return a, true
}

// List returns every enabled asset.
func (c *Catalog) List() []Asset {
	if c == nil {
		return nil
	}
	out := make([]Asset, 0, len(c.assets))
	for _, a := range c.assets {
		if !a.Disabled {
			out = append(out, a)
		}
	}
	return out
}

// ValidateAmount checks that amount is a well formed, correctly signed
// decimal in a supported asset. field prefixes every message.
func (c *Catalog) ValidateAmount(field string, amount types.Amount, allowZero bool) error {
	if err := ValidateDecimal(field+".amount", amount.Amount, allowZero); err != nil {
		return err
	}
	if strings.TrimSpace(amount.Asset) == "" {
		return fmt.Errorf("%s.asset cannot be empty", field)
	}
	asset, ok := c.Find(amount.Asset)
	if !ok {
		return fmt.Errorf("'%s' is not a supported asset.", amount.Asset)
	}
	if asset.SignificantDecimals != nil {
		value := decimal.RequireFromString(strings.TrimSpace(amount.Amount))
		if !value.Round(*asset.SignificantDecimals).Equal(value) {
			return fmt.Errorf("'%s' has invalid significant decimals. Expected: '%d'", amount.Amount, *asset.SignificantDecimals)
		}
	}
	return nil
}

// ValidateDecimal checks that raw is a non-empty decimal that is positive,
// or non-negative when allowZero is set.
func ValidateDecimal(field, raw string, allowZero bool) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s is invalid", field)
	}
	if allowZero {
		if value.IsNegative() {
			return fmt.Errorf("%s should be non-negative", field)
		}
		return nil
	}
	if !value.IsPositive() {
		return fmt.Errorf("%s should be positive", field)
	}
	return nil
}
