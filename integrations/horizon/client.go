// Package horizon reads ledger transactions and their payment operations
// from a Horizon REST endpoint.
package horizon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"anchorplatform/core/types"
)

const (
	defaultTimeout   = 10 * time.Second
	operationsLimit  = 200
	nativeAssetID    = "stellar:native"
	assetTypeNative  = "native"
	opPayment        = "payment"
	opPathStrictSend = "path_payment_strict_send"
	opPathStrictRecv = "path_payment_strict_receive"
)

// Config configures the Horizon client.
type Config struct {
	URL               string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client implements the ledger reconciler and the trustline check over Horizon.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient builds a client. A zero RequestsPerSecond disables throttling.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.URL)
	if base == "" {
		return nil, fmt.Errorf("horizon: url required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("horizon: parse url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &Client{
		baseURL: strings.TrimRight(base, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return client, nil
}

type transactionResponse struct {
	ID          string    `json:"id"`
	Hash        string    `json:"hash"`
	Memo        string    `json:"memo"`
	MemoType    string    `json:"memo_type"`
	CreatedAt   time.Time `json:"created_at"`
	EnvelopeXDR string    `json:"envelope_xdr"`
	Successful  bool      `json:"successful"`
}

type operationRecord struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	SourceAccount string `json:"source_account"`
	From          string `json:"from"`
	To            string `json:"to"`
	Amount        string `json:"amount"`
	AssetType     string `json:"asset_type"`
	AssetCode     string `json:"asset_code"`
	AssetIssuer   string `json:"asset_issuer"`
}

type operationsResponse struct {
	Embedded struct {
		Records []operationRecord `json:"records"`
	} `json:"_embedded"`
}

// Transaction loads the ledger transaction with hash id and its payment
// operations. Unknown hashes return (nil, nil).
func (c *Client) Transaction(ctx context.Context, id string) (*types.StellarTransaction, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("horizon: transaction id required")
	}
	var tx transactionResponse
	found, err := c.get(ctx, "/transactions/"+url.PathEscape(id), &tx)
	if err != nil || !found {
		return nil, err
	}
	var ops operationsResponse
	opsPath := fmt.Sprintf("/transactions/%s/operations?limit=%d", url.PathEscape(id), operationsLimit)
	if _, err := c.get(ctx, opsPath, &ops); err != nil {
		return nil, err
	}

	stx := &types.StellarTransaction{
		ID:        firstNonEmpty(tx.Hash, tx.ID),
		Memo:      tx.Memo,
		MemoType:  memoType(tx.MemoType),
		CreatedAt: tx.CreatedAt.UTC(),
		Envelope:  tx.EnvelopeXDR,
	}
	for _, op := range ops.Embedded.Records {
		payment, ok := toPayment(op)
		if ok {
			stx.Payments = append(stx.Payments, payment)
		}
	}
	return stx, nil
}

type accountResponse struct {
	Balances []struct {
		AssetType   string `json:"asset_type"`
		AssetCode   string `json:"asset_code"`
		AssetIssuer string `json:"asset_issuer"`
	} `json:"balances"`
}

// TrustlineConfigured reports whether account can receive asset. The native
// asset needs no trustline; unknown accounts have none.
func (c *Client) TrustlineConfigured(ctx context.Context, account, asset string) (bool, error) {
	if asset == nativeAssetID {
		return true, nil
	}
	account = strings.TrimSpace(account)
	if account == "" {
		return false, fmt.Errorf("horizon: account required")
	}
	var acct accountResponse
	found, err := c.get(ctx, "/accounts/"+url.PathEscape(account), &acct)
	if err != nil || !found {
		return false, err
	}
	for _, balance := range acct.Balances {
		if balance.AssetType == assetTypeNative {
			continue
		}
		if fmt.Sprintf("stellar:%s:%s", balance.AssetCode, balance.AssetIssuer) == asset {
			return true, nil
		}
	}
	return false, nil
}

func toPayment(op operationRecord) (types.StellarPayment, bool) {
	var paymentType types.PaymentType
	switch op.Type {
	case opPayment:
		paymentType = types.PaymentTypePayment
	case opPathStrictSend, opPathStrictRecv:
		paymentType = types.PaymentTypePathPayment
	default:
		return types.StellarPayment{}, false
	}
	return types.StellarPayment{
		ID:                 op.ID,
		Amount:             types.Amount{Amount: op.Amount, Asset: assetID(op)},
		PaymentType:        paymentType,
		SourceAccount:      firstNonEmpty(op.From, op.SourceAccount),
		DestinationAccount: op.To,
	}, true
}

func assetID(op operationRecord) string {
	if op.AssetType == assetTypeNative {
		return nativeAssetID
	}
	return fmt.Sprintf("stellar:%s:%s", op.AssetCode, op.AssetIssuer)
}

func memoType(raw string) types.MemoType {
	switch strings.ToLower(raw) {
	case "text":
		return types.MemoTypeText
	case "id":
		return types.MemoTypeID
	case "hash", "return":
		return types.MemoTypeHash
	default:
		return types.MemoTypeNone
	}
}

func (c *Client) get(ctx context.Context, path string, out any) (bool, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return false, fmt.Errorf("horizon: rate limit wait: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("horizon: request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("horizon: call %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("horizon: unexpected status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("horizon: decode %s: %w", path, err)
	}
	return true, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
