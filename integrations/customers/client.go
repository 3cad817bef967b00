// Package customers resolves KYC status from the anchor's business server.
package customers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Config defines the HTTP client settings for the customer service.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client looks customers up on the business server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type customerResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// NewClient constructs a client with sane defaults.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("customers: base url required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// CustomerStatus returns the KYC status of customerID in the context of txID.
func (c *Client) CustomerStatus(ctx context.Context, txID, customerID, customerType string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("customers: client not configured")
	}
	query := url.Values{}
	query.Set("id", customerID)
	if customerType != "" {
		query.Set("type", customerType)
	}
	if txID != "" {
		query.Set("transaction_id", txID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/customer?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("customers: request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("customers: call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("customers: unexpected status %d", resp.StatusCode)
	}
	var payload customerResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("customers: decode: %w", err)
	}
	return strings.ToUpper(strings.TrimSpace(payload.Status)), nil
}
