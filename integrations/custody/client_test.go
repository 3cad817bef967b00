package custody

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"anchorplatform/core/types"
)

type recordedCall struct {
	Path string
	Body map[string]any
	Auth string
}

func newCustodyServer(t *testing.T, calls *[]recordedCall) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		call := recordedCall{Path: r.URL.Path, Auth: r.Header.Get("Authorization")}
		if r.ContentLength > 0 {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&call.Body))
		}
		*calls = append(*calls, call)
		switch r.URL.Path {
		case "/transactions/payments/assets/stellar:USDC:GISSUER/address":
			_ = json.NewEncoder(w).Encode(map[string]string{"address": "GCUSTODY", "memo": "777", "memoType": "ID"})
		case "/transactions/broken/payments":
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"rawErrorMessage":"vault offline"}`))
		default:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{}`))
		}
	}))
}

func TestClientCalls(t *testing.T) {
	var calls []recordedCall
	srv := newCustodyServer(t, &calls)
	defer srv.Close()

	client, err := NewClient(Config{Type: "Fireblocks", BaseURL: srv.URL + "/", AuthToken: "secret"})
	require.NoError(t, err)
	require.Equal(t, TypeFireblocks, client.Type())

	ctx := context.Background()
	tx := &types.Transaction{
		ID:                    "tx-1",
		Protocol:              types.ProtocolSEP24,
		Kind:                  types.KindWithdrawal,
		AmountIn:              types.Amount{Amount: "10", Asset: "stellar:USDC:GISSUER"},
		AmountExpected:        "10",
		Memo:                  "123",
		MemoType:              types.MemoTypeID,
		WithdrawAnchorAccount: "GANCHOR",
		RefundMemo:            "r-1",
		RefundMemoType:        types.MemoTypeText,
	}
	require.NoError(t, client.CreateTransaction(ctx, tx))
	require.NoError(t, client.CreateTransactionPayment(ctx, "tx-1"))
	require.NoError(t, client.CreateTransactionRefund(ctx, tx, types.RefundPayment{
		ID:     "refund-1",
		Amount: types.Amount{Amount: "5", Asset: "stellar:USDC:GISSUER"},
		Fee:    types.Amount{Amount: "0.1", Asset: "stellar:USDC:GISSUER"},
	}))

	require.Len(t, calls, 3)
	require.Equal(t, "/transactions", calls[0].Path)
	require.Equal(t, "Bearer secret", calls[0].Auth)
	require.Equal(t, "GANCHOR", calls[0].Body["toAccount"])
	require.Equal(t, "10", calls[0].Body["amount"])
	require.Equal(t, "/transactions/tx-1/payments", calls[1].Path)
	require.Equal(t, "/transactions/tx-1/refunds", calls[2].Path)
	require.Equal(t, "5", calls[2].Body["amount"])
	require.Equal(t, "0.1", calls[2].Body["amountFee"])
	require.Equal(t, "r-1", calls[2].Body["memo"])
}

func TestGenerateDepositAddress(t *testing.T) {
	var calls []recordedCall
	srv := newCustodyServer(t, &calls)
	defer srv.Close()

	client, err := NewClient(Config{Type: "generic", BaseURL: srv.URL})
	require.NoError(t, err)

	info, err := client.GenerateDepositAddress(context.Background(), "stellar:USDC:GISSUER")
	require.NoError(t, err)
	require.Equal(t, "GCUSTODY", info.StellarAddress)
	require.Equal(t, "777", info.Memo)
	require.Equal(t, types.MemoTypeID, info.MemoType)
}

func TestClientStatusError(t *testing.T) {
	var calls []recordedCall
	srv := newCustodyServer(t, &calls)
	defer srv.Close()

	client, err := NewClient(Config{Type: "generic", BaseURL: srv.URL})
	require.NoError(t, err)

	err = client.CreateTransactionPayment(context.Background(), "broken")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	require.Equal(t, "vault offline", statusErr.Message)
}

func TestSupportsMemoType(t *testing.T) {
	fireblocks, err := NewClient(Config{Type: TypeFireblocks, BaseURL: "http://custody.local"})
	require.NoError(t, err)
	require.True(t, fireblocks.SupportsMemoType(types.MemoTypeID))
	require.True(t, fireblocks.SupportsMemoType(types.MemoTypeText))
	require.False(t, fireblocks.SupportsMemoType(types.MemoTypeHash))
	require.True(t, fireblocks.SupportsMemoType(""))

	generic, err := NewClient(Config{Type: "generic", BaseURL: "http://custody.local"})
	require.NoError(t, err)
	require.True(t, generic.SupportsMemoType(types.MemoTypeHash))

	var disabled *Client
	require.Equal(t, "none", disabled.Type())
	require.ErrorIs(t, disabled.CreateTransactionPayment(context.Background(), "x"), ErrNotConfigured)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{Type: "generic"})
	require.Error(t, err)
	_, err = NewClient(Config{BaseURL: "http://custody.local"})
	require.Error(t, err)
	_, err = NewClient(Config{Type: "generic", BaseURL: "http://custody.local", CACertPath: "/does/not/exist.pem"})
	require.Error(t, err)
}
