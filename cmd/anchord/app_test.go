package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"anchorplatform/config"
	"anchorplatform/core/assets"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database.DSN = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	cfg.Assets.List = []assets.Asset{
		{Name: "stellar:USDC:GISSUER", DistributionAccount: "GDISTRIBUTION"},
		{Name: "iso4217:USD"},
	}
	cfg.Recon.Enabled = true
	cfg.Recon.OutputDir = filepath.Join(dir, "recon")
	cfg.Recon.IndexPath = filepath.Join(dir, "recon", "index.db")
	cfg.Events.Webhooks = []config.WebhookConfig{{URL: "https://hooks.example.com/anchor"}}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNewAppServesRPC(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	a, err := newApp(testConfig(t), logger)
	require.NoError(t, err)
	defer a.close()
	require.NotNil(t, a.deliverer)
	require.NotNil(t, a.reconciler)
	require.Equal(t, 24*time.Hour, a.schedule.Window)

	handler := a.server.Handler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"get_transactions","params":{"sep":"24"}}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Result struct {
			Records []json.RawMessage `json:"records"`
		} `json:"result"`
		Error *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Nil(t, resp.Error)
	require.Empty(t, resp.Result.Records)

	metrics := httptest.NewRecorder()
	handler.ServeHTTP(metrics, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, metrics.Code)
}

func TestNewAppRejectsCustodyGeneratorWithoutCustody(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recon.Enabled = false
	cfg.DepositInfo.SEP6 = "custody"
	_, err := newApp(cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	require.ErrorContains(t, err, "sep6")
}
