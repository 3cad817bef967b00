package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"anchorplatform/core/assets"
	"anchorplatform/core/events"
	"anchorplatform/core/types"
	"anchorplatform/rpc/methods"
)

type memStore struct {
	mu       sync.Mutex
	protocol types.Protocol
	txs      map[string]*types.Transaction
}

func (s *memStore) Protocol() types.Protocol { return s.protocol }

func (s *memStore) FindByID(_ context.Context, id string) (*types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return nil, nil
	}
	return tx.Clone(), nil
}

func (s *memStore) Save(_ context.Context, tx *types.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[tx.ID] = tx.Clone()
	return nil
}

func (s *memStore) List(context.Context, types.TransactionFilter) ([]*types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		out = append(out, tx.Clone())
	}
	return out, nil
}

type recordingObserver struct {
	mu        sync.Mutex
	codes     map[string]int
	throttled int
}

func (o *recordingObserver) ObserveRPC(method string, code int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.codes == nil {
		o.codes = map[string]int{}
	}
	o.codes[method] = code
}

func (o *recordingObserver) RecordThrottle(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.throttled++
}

func newTestServer(t *testing.T, cfg Config, publisher events.Publisher) *Server {
	t.Helper()
	store := &memStore{protocol: types.ProtocolSEP24, txs: map[string]*types.Transaction{
		"tx-1": {
			ID:        "tx-1",
			Protocol:  types.ProtocolSEP24,
			Kind:      types.KindDeposit,
			Status:    types.StatusIncomplete,
			StartedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		},
	}}
	catalog, err := assets.NewCatalog([]assets.Asset{{Name: "stellar:native"}, {Name: "iso4217:USD"}})
	require.NoError(t, err)
	registry, err := methods.NewRegistry(methods.Deps{
		Stores: []methods.TransactionStore{store},
		Assets: catalog,
		Events: publisher,
	})
	require.NoError(t, err)
	server, err := NewServer(registry, cfg)
	require.NoError(t, err)
	return server
}

func post(t *testing.T, handler http.Handler, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) RPCResponse {
	t.Helper()
	var resp RPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestSingleRequest(t *testing.T) {
	observer := &recordingObserver{}
	handler := newTestServer(t, Config{Observer: observer}, nil).Handler()

	rec := post(t, handler, `{"jsonrpc":"2.0","id":7,"method":"get_transaction","params":{"transaction_id":"tx-1"}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	require.Nil(t, resp.Error)
	require.JSONEq(t, "7", string(resp.ID))

	result, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var view types.TransactionView
	require.NoError(t, json.Unmarshal(result, &view))
	require.Equal(t, "tx-1", view.ID)
	require.Equal(t, types.StatusIncomplete, view.Status)
	require.Equal(t, 0, observer.codes[methods.MethodGetTransaction])
}

func TestErrorCodes(t *testing.T) {
	handler := newTestServer(t, Config{}, nil).Handler()

	cases := []struct {
		name string
		body string
		code int
	}{
		{"parse error", `{"jsonrpc":`, codeParseError},
		{"missing method", `{"jsonrpc":"2.0","id":1}`, codeInvalidRequest},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"get_transaction"}`, codeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"mint"}`, codeMethodNotFound},
		{"not found", `{"jsonrpc":"2.0","id":1,"method":"get_transaction","params":{"transaction_id":"nope"}}`, methods.KindNotFound.Code()},
		{"invalid params", `{"jsonrpc":"2.0","id":1,"method":"get_transaction","params":{}}`, methods.KindInvalidParams.Code()},
		{"status guard", `{"jsonrpc":"2.0","id":1,"method":"notify_refund_sent","params":{"transaction_id":"tx-1"}}`, methods.KindInvalidRequest.Code()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := decodeResponse(t, post(t, handler, tc.body, nil))
			require.NotNil(t, resp.Error)
			require.Equal(t, tc.code, resp.Error.Code)
		})
	}
}

func TestBatch(t *testing.T) {
	handler := newTestServer(t, Config{}, nil).Handler()

	rec := post(t, handler, `[
		{"jsonrpc":"2.0","id":1,"method":"get_transaction","params":{"transaction_id":"tx-1"}},
		{"jsonrpc":"2.0","id":2,"method":"unknown"},
		{"jsonrpc":"2.0","id":3,"method":"notify_transaction_error","params":{"transaction_id":"tx-1","message":"bank rejected"}}
	]`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var responses []RPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &responses))
	require.Len(t, responses, 3)
	require.Nil(t, responses[0].Error)
	require.Equal(t, codeMethodNotFound, responses[1].Error.Code)
	require.Nil(t, responses[2].Error)
	require.JSONEq(t, "3", string(responses[2].ID))

	resp := decodeResponse(t, post(t, handler, `[]`, nil))
	require.Equal(t, codeInvalidRequest, resp.Error.Code)
}

func TestBodyLimits(t *testing.T) {
	handler := newTestServer(t, Config{MaxBodyBytes: 32}, nil).Handler()

	rec := post(t, handler, `{"jsonrpc":"2.0","id":1,"method":"get_transaction","params":{"transaction_id":"tx-1"}}`, nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = post(t, handler, "   ", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthentication(t *testing.T) {
	secret := "test-secret"
	handler := newTestServer(t, Config{Auth: AuthConfig{Enabled: true, HMACSecret: secret, Issuer: "anchor"}}, nil).Handler()
	body := `{"jsonrpc":"2.0","id":1,"method":"get_transaction","params":{"transaction_id":"tx-1"}}`

	rec := post(t, handler, body, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	sign := func(claims jwt.MapClaims, key string) http.Header {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
		require.NoError(t, err)
		return http.Header{"Authorization": []string{"Bearer " + token}}
	}
	valid := jwt.MapClaims{"sub": "ops", "iss": "anchor", "exp": time.Now().Add(time.Hour).Unix()}

	rec = post(t, handler, body, sign(valid, "other-secret"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	wrongIssuer := jwt.MapClaims{"sub": "ops", "iss": "someone", "exp": time.Now().Add(time.Hour).Unix()}
	rec = post(t, handler, body, sign(wrongIssuer, secret))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(t, handler, body, sign(valid, secret))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, decodeResponse(t, rec).Error)

	_, err := NewServer(&methods.Registry{}, Config{Auth: AuthConfig{Enabled: true}})
	require.Error(t, err)
}

func TestRateLimit(t *testing.T) {
	observer := &recordingObserver{}
	handler := newTestServer(t, Config{RateLimit: RateLimit{RequestsPerMinute: 1, Burst: 1}, Observer: observer}, nil).Handler()
	body := `{"jsonrpc":"2.0","id":1,"method":"get_transaction","params":{"transaction_id":"tx-1"}}`

	require.Equal(t, http.StatusOK, post(t, handler, body, nil).Code)
	require.Equal(t, http.StatusTooManyRequests, post(t, handler, body, nil).Code)
	require.Equal(t, 1, observer.throttled)
}

func TestHealthz(t *testing.T) {
	handler := newTestServer(t, Config{}, nil).Handler()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestEventStream(t *testing.T) {
	queue := events.NewQueue()
	defer queue.Close()
	server := newTestServer(t, Config{Events: queue}, queue)
	httpServer := httptest.NewServer(server.Handler())
	defer httpServer.Close()

	body := `{"jsonrpc":"2.0","id":1,"method":"notify_transaction_error","params":{"transaction_id":"tx-1","message":"boom"}}`
	resp, err := http.Post(httpServer.URL, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/events/ws?since=0"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var evt events.LifecycleEvent
	require.NoError(t, json.Unmarshal(data, &evt))
	require.Equal(t, events.TypeTransactionStatusChanged, evt.Type)
	require.Equal(t, uint64(1), evt.Sequence)
	require.Equal(t, types.StatusError, evt.Transaction.Status)

	badCursor, err := http.Get(httpServer.URL + "/events/ws?since=abc")
	require.NoError(t, err)
	badCursor.Body.Close()
	require.Equal(t, http.StatusBadRequest, badCursor.StatusCode)
}
