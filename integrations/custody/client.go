// Package custody talks to the external custodian that holds the anchor's
// keys and executes ledger payments on its behalf.
package custody

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"anchorplatform/core/types"
	"anchorplatform/rpc/methods"
)

// ErrNotConfigured is returned by a nil client.
var ErrNotConfigured = errors.New("custody: integration not configured")

// Custody backends with known memo restrictions.
const (
	TypeFireblocks = "fireblocks"
)

var memoRestrictions = map[string][]types.MemoType{
	TypeFireblocks: {types.MemoTypeText, types.MemoTypeID},
}

// Config captures the custody endpoint and its optional mTLS material.
type Config struct {
	Type       string
	BaseURL    string
	AuthToken  string
	CACertPath string
	ClientCert string
	ClientKey  string
	Timeout    time.Duration
}

// Client implements the custody gateway over HTTP.
type Client struct {
	kind       string
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// StatusError carries a non-2xx custody response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("custody: status=%d: %s", e.StatusCode, e.Message)
}

// NewClient builds a custody client. Client certificates are optional; when
// set the connection uses mutual TLS.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("custody: base url required")
	}
	kind := strings.ToLower(strings.TrimSpace(cfg.Type))
	if kind == "" {
		return nil, fmt.Errorf("custody: type required")
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ClientCert != "" || cfg.ClientKey != "" || cfg.CACertPath != "" {
		tlsConfig, err := buildTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig = tlsConfig
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		kind:      kind,
		baseURL:   strings.TrimRight(base, "/"),
		authToken: strings.TrimSpace(cfg.AuthToken),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(transport),
		},
	}, nil
}

func buildTLSConfig(cfg Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.ClientCert != "" || cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("custody: load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	if strings.TrimSpace(cfg.CACertPath) != "" {
		pemBytes, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("custody: read ca certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemBytes) {
			return nil, fmt.Errorf("custody: failed to append ca certificate %s", cfg.CACertPath)
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}

// Type returns the configured custody backend.
func (c *Client) Type() string {
	if c == nil {
		return "none"
	}
	return c.kind
}

// SupportsMemoType reports whether the backend accepts memoType.
func (c *Client) SupportsMemoType(memoType types.MemoType) bool {
	if c == nil {
		return true
	}
	allowed, restricted := memoRestrictions[c.kind]
	if !restricted || memoType == "" {
		return true
	}
	for _, candidate := range allowed {
		if candidate == memoType {
			return true
		}
	}
	return false
}

type transactionRequest struct {
	ID          string `json:"id"`
	Memo        string `json:"memo,omitempty"`
	MemoType    string `json:"memoType,omitempty"`
	Protocol    string `json:"protocol"`
	FromAccount string `json:"fromAccount,omitempty"`
	ToAccount   string `json:"toAccount,omitempty"`
	Amount      string `json:"amount,omitempty"`
	AmountAsset string `json:"amountAsset,omitempty"`
	Kind        string `json:"kind"`
}

type refundRequest struct {
	Amount         string `json:"amount"`
	AmountAsset    string `json:"amountAsset"`
	AmountFee      string `json:"amountFee"`
	AmountFeeAsset string `json:"amountFeeAsset"`
	Memo           string `json:"memo,omitempty"`
	MemoType       string `json:"memoType,omitempty"`
}

type depositAddressResponse struct {
	Address  string `json:"address"`
	Memo     string `json:"memo"`
	MemoType string `json:"memoType"`
}

type errorResponse struct {
	RawErrorMessage string `json:"rawErrorMessage"`
}

// CreateTransaction registers a custodial payment mirroring tx.
func (c *Client) CreateTransaction(ctx context.Context, tx *types.Transaction) error {
	if c == nil {
		return ErrNotConfigured
	}
	payload := transactionRequest{
		ID:          tx.ID,
		Memo:        tx.Memo,
		MemoType:    string(tx.MemoType),
		Protocol:    string(tx.Protocol),
		FromAccount: tx.SourceAccount,
		ToAccount:   custodyDestination(tx),
		Amount:      tx.AmountExpected,
		AmountAsset: tx.AmountIn.Asset,
		Kind:        string(tx.Kind),
	}
	return c.post(ctx, "/transactions", payload, nil)
}

// CreateTransactionPayment executes the queued payment of txID.
func (c *Client) CreateTransactionPayment(ctx context.Context, txID string) error {
	if c == nil {
		return ErrNotConfigured
	}
	return c.post(ctx, "/transactions/"+url.PathEscape(txID)+"/payments", struct{}{}, nil)
}

// CreateTransactionRefund sends a refund payment for tx.
func (c *Client) CreateTransactionRefund(ctx context.Context, tx *types.Transaction, refund types.RefundPayment) error {
	if c == nil {
		return ErrNotConfigured
	}
	payload := refundRequest{
		Amount:         refund.Amount.Amount,
		AmountAsset:    refund.Amount.Asset,
		AmountFee:      refund.Fee.Amount,
		AmountFeeAsset: refund.Fee.Asset,
		Memo:           tx.RefundMemo,
		MemoType:       string(tx.RefundMemoType),
	}
	return c.post(ctx, "/transactions/"+url.PathEscape(tx.ID)+"/refunds", payload, nil)
}

// GenerateDepositAddress asks the custodian for an address that receives
// asset.
func (c *Client) GenerateDepositAddress(ctx context.Context, asset string) (methods.DepositInfo, error) {
	if c == nil {
		return methods.DepositInfo{}, ErrNotConfigured
	}
	var resp depositAddressResponse
	path := "/transactions/payments/assets/" + url.PathEscape(asset) + "/address"
	if err := c.post(ctx, path, nil, &resp); err != nil {
		return methods.DepositInfo{}, err
	}
	if strings.TrimSpace(resp.Address) == "" {
		return methods.DepositInfo{}, fmt.Errorf("custody: empty deposit address")
	}
	return methods.DepositInfo{
		StellarAddress: resp.Address,
		Memo:           resp.Memo,
		MemoType:       types.MemoType(strings.ToLower(resp.MemoType)),
	}, nil
}

func custodyDestination(tx *types.Transaction) string {
	if tx.WithdrawAnchorAccount != "" {
		return tx.WithdrawAnchorAccount
	}
	return tx.DestinationAccount
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("custody: encode: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("custody: request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("custody: call %s: %w", path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("custody: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := strings.TrimSpace(string(raw))
		var decoded errorResponse
		if json.Unmarshal(raw, &decoded) == nil && decoded.RawErrorMessage != "" {
			message = decoded.RawErrorMessage
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: message}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("custody: decode response: %w", err)
		}
	}
	return nil
}

var (
	_ methods.CustodyGateway       = (*Client)(nil)
	_ methods.DepositAddressSource = (*Client)(nil)
)
