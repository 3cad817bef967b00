package customers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCustomerStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/customer", r.URL.Path)
		require.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		switch r.URL.Query().Get("id") {
		case "cust-1":
			require.Equal(t, "sep31-receiver", r.URL.Query().Get("type"))
			require.Equal(t, "tx-1", r.URL.Query().Get("transaction_id"))
			_, _ = w.Write([]byte(`{"id":"cust-1","status":"accepted"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "key"})
	require.NoError(t, err)

	status, err := client.CustomerStatus(context.Background(), "tx-1", "cust-1", "sep31-receiver")
	require.NoError(t, err)
	require.Equal(t, "ACCEPTED", status)

	_, err = client.CustomerStatus(context.Background(), "tx-1", "missing", "")
	require.Error(t, err)

	_, err = NewClient(Config{})
	require.Error(t, err)
}
