package methods

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"anchorplatform/core/assets"
	"anchorplatform/core/types"
)

// Deposit info generator types accepted in configuration.
const (
	GeneratorSelf    = "self"
	GeneratorCustody = "custody"
	GeneratorNone    = "none"
)

// AssetCatalog resolves catalog entries by asset id.
type AssetCatalog interface {
	Find(name string) (assets.Asset, bool)
}

// SelfDepositInfoGenerator instructs users to pay the asset's distribution
// account with a hash memo derived from the transaction id.
type SelfDepositInfoGenerator struct {
	Catalog AssetCatalog
}

// Generate implements DepositInfoGenerator.
func (g SelfDepositInfoGenerator) Generate(_ context.Context, tx *types.Transaction) (DepositInfo, error) {
	asset, ok := g.Catalog.Find(tx.AmountIn.Asset)
	if !ok || asset.DistributionAccount == "" {
		return DepositInfo{}, fmt.Errorf("no distribution account for asset %s", tx.AmountIn.Asset)
	}
	return DepositInfo{
		StellarAddress: asset.DistributionAccount,
		Memo:           hashMemoFromID(tx.ID),
		MemoType:       types.MemoTypeHash,
	}, nil
}

func hashMemoFromID(id string) string {
	memo := strings.ReplaceAll(id, "-", "")
	if len(memo) > 32 {
		memo = memo[:32]
	}
	memo = strings.Repeat("0", 32-len(memo)) + memo
	return base64.StdEncoding.EncodeToString([]byte(memo))
}

// DepositAddressSource hands out custodial deposit addresses.
type DepositAddressSource interface {
	GenerateDepositAddress(ctx context.Context, asset string) (DepositInfo, error)
}

// CustodyDepositInfoGenerator asks the custodian for a deposit address.
type CustodyDepositInfoGenerator struct {
	Source DepositAddressSource
}

// Generate implements DepositInfoGenerator.
func (g CustodyDepositInfoGenerator) Generate(ctx context.Context, tx *types.Transaction) (DepositInfo, error) {
	info, err := g.Source.GenerateDepositAddress(ctx, tx.AmountIn.Asset)
	if err != nil {
		return DepositInfo{}, fmt.Errorf("custody deposit address: %w", err)
	}
	return info, nil
}

// NewDepositInfoGenerator builds the generator for a configured type. The
// "none" type yields nil, which makes callers supply memo and destination.
func NewDepositInfoGenerator(kind string, catalog AssetCatalog, source DepositAddressSource) (DepositInfoGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case GeneratorSelf, "":
		if catalog == nil {
			return nil, fmt.Errorf("self deposit info generator requires an asset catalog")
		}
		return SelfDepositInfoGenerator{Catalog: catalog}, nil
	case GeneratorCustody:
		if source == nil {
			return nil, fmt.Errorf("custody deposit info generator requires custody integration")
		}
		return CustodyDepositInfoGenerator{Source: source}, nil
	case GeneratorNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown deposit info generator type %q", kind)
	}
}
