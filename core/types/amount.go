package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Amount pairs a decimal string with an asset identifier. The zero value
// means the field is unset.
type Amount struct {
	Amount string `json:"amount"`
	Asset  string `json:"asset"`
}

// IsZero reports whether neither the amount nor the asset is populated.
func (a Amount) IsZero() bool { return a.Amount == "" && a.Asset == "" }

// Decimal parses the amount; empty amounts parse as zero.
func (a Amount) Decimal() (decimal.Decimal, error) {
	return ParseDecimal(a.Amount)
}

// FeeDescription is a single named component of a fee.
type FeeDescription struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Amount      string `json:"amount"`
}

// FeeDetails decomposes a fee into components that must sum to Total.
type FeeDetails struct {
	Total   string           `json:"total"`
	Asset   string           `json:"asset"`
	Details []FeeDescription `json:"details,omitempty"`
}

// ParseDecimal parses a trimmed decimal string, treating "" as zero.
func ParseDecimal(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

// MustDecimal parses raw and falls back to zero on malformed input. It is
// only used on values that were validated before they were stored.
func MustDecimal(raw string) decimal.Decimal {
	d, err := ParseDecimal(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// SumFeeDetails adds up the amounts of every fee component.
func SumFeeDetails(details []FeeDescription) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, d := range details {
		v, err := ParseDecimal(d.Amount)
		if err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(v)
	}
	return sum, nil
}
