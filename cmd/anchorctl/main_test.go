package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"anchorplatform/services/recon"
)

func TestCall(t *testing.T) {
	var got rpcEnvelope
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		if got.Method == "get_transaction" {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":"1","result":{"id":"tx-1","status":"completed"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":"1","error":{"code":-32601,"message":"method x not found"}}`))
	}))
	defer srv.Close()

	result, err := call(context.Background(), srv.Client(), srv.URL, "tok", "get_transaction", json.RawMessage(`{"transaction_id":"tx-1"}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"tx-1","status":"completed"}`, string(result))
	require.Equal(t, "Bearer tok", auth)
	require.Equal(t, "2.0", got.JSONRPC)
	require.JSONEq(t, `{"transaction_id":"tx-1"}`, string(got.Params))

	_, err = call(context.Background(), srv.Client(), srv.URL, "", "x", json.RawMessage(`{}`))
	require.ErrorContains(t, err, "-32601")
}

func TestRunCallValidatesArguments(t *testing.T) {
	var out bytes.Buffer
	require.ErrorContains(t, runCall(nil, &out), "method required")
	require.ErrorContains(t, runCall([]string{"get_transaction", "{not json"}, &out), "valid JSON")
}

func TestMintToken(t *testing.T) {
	now := time.Now()
	raw, err := mintToken("secret", "ops", "anchor", "platform", time.Hour, now)
	require.NoError(t, err)

	token, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) { return []byte("secret"), nil },
		jwt.WithIssuer("anchor"), jwt.WithAudience("platform"))
	require.NoError(t, err)
	subject, err := token.Claims.GetSubject()
	require.NoError(t, err)
	require.Equal(t, "ops", subject)

	_, err = mintToken("", "ops", "", "", time.Hour, now)
	require.Error(t, err)
}

func TestReconRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	index, err := recon.OpenIndex(path)
	require.NoError(t, err)
	end := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, index.Record(context.Background(), recon.RunRecord{
		ID:          "run-1",
		WindowStart: end.Add(-24 * time.Hour),
		WindowEnd:   end,
		FinishedAt:  end.Add(time.Minute),
		Rows:        4,
		Anomalies:   1,
		CSVPath:     "/tmp/ledger_recon.csv",
	}))
	require.NoError(t, index.Close())

	var out bytes.Buffer
	require.NoError(t, runReconRuns([]string{"-index", path}, &out))
	require.Contains(t, out.String(), "run-1")
	require.Contains(t, out.String(), "2024-03-02T00:00:00Z")

	require.Error(t, runReconRuns([]string{"-index", filepath.Join(t.TempDir(), "missing.db")}, &out))
}
