package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"anchorplatform/core/types"
)

const usdc = "stellar:USDC:GDQOE23CFSUMSVQK4Y5JHPPYK73VYCNHZHA7ENKCV37P6SUEO6XQBKPP"

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	two := int32(2)
	seven := int32(7)
	catalog, err := NewCatalog([]Asset{
		{Name: usdc, SignificantDecimals: &seven},
		{Name: "iso4217:USD", SignificantDecimals: &two},
		{Name: "iso4217:EUR", Disabled: true},
	})
	require.NoError(t, err)
	return catalog
}

func TestValidateAmount(t *testing.T) {
	catalog := testCatalog(t)
	tests := []struct {
		name      string
		amount    types.Amount
		allowZero bool
		wantErr   string
	}{
		{name: "ok", amount: types.Amount{Amount: "1.5", Asset: usdc}},
		{name: "zero allowed", amount: types.Amount{Amount: "0", Asset: usdc}, allowZero: true},
		{name: "empty", amount: types.Amount{Asset: usdc}, wantErr: "amount_in.amount cannot be empty"},
		{name: "invalid", amount: types.Amount{Amount: "abc", Asset: usdc}, wantErr: "amount_in.amount is invalid"},
		{name: "zero", amount: types.Amount{Amount: "0", Asset: usdc}, wantErr: "amount_in.amount should be positive"},
		{name: "negative fee", amount: types.Amount{Amount: "-1", Asset: usdc}, allowZero: true, wantErr: "amount_in.amount should be non-negative"},
		{name: "no asset", amount: types.Amount{Amount: "1"}, wantErr: "amount_in.asset cannot be empty"},
		{name: "unknown", amount: types.Amount{Amount: "1", Asset: "iso4217:JPY"}, wantErr: "'iso4217:JPY' is not a supported asset."},
		{name: "disabled", amount: types.Amount{Amount: "1", Asset: "iso4217:EUR"}, wantErr: "'iso4217:EUR' is not a supported asset."},
		{name: "decimals", amount: types.Amount{Amount: "1.001", Asset: "iso4217:USD"}, wantErr: "'1.001' has invalid significant decimals. Expected: '2'"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := catalog.ValidateAmount("amount_in", tc.amount, tc.allowZero)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, tc.wantErr)
		})
	}
}

func TestLoadFileYAMLAndTOML(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "assets.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("assets:\n  - name: iso4217:USD\n    significant_decimals: 2\n"), 0o600))
	tomlPath := filepath.Join(dir, "assets.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("[[assets]]\nname = \"iso4217:USD\"\nsignificant_decimals = 2\n"), 0o600))

	for _, path := range []string{yamlPath, tomlPath} {
		catalog, err := LoadFile(path)
		require.NoError(t, err)
		asset, ok := catalog.Find("iso4217:USD")
		require.True(t, ok)
		require.EqualValues(t, 2, *asset.SignificantDecimals)
	}
}

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	_, err := NewCatalog([]Asset{{Name: "iso4217:USD"}, {Name: "iso4217:USD"}})
	require.Error(t, err)
}

func TestAssetDomains(t *testing.T) {
	require.True(t, IsStellar(usdc))
	require.False(t, IsStellar("iso4217:USD"))
	require.True(t, IsFiat("iso4217:USD"))
}
