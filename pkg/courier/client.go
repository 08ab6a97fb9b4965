package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/laundrylink/laundrylink-backend/pkg/config"
	pkgerrors "github.com/laundrylink/laundrylink-backend/pkg/errors"
)

const responseBodyReadLimit int64 = 4096

// AccessTokenProvider yields a bearer token for courier API calls.
type AccessTokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client wraps the courier network's delivery API.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	customerID    string
	tokens        AccessTokenProvider
	quoteTimeout  time.Duration
	createTimeout time.Duration
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured courier base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the courier client from configuration.
func NewClient(cfg config.CourierConfig, tokens AccessTokenProvider, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("courier base url is required")
	}
	if strings.TrimSpace(cfg.CustomerID) == "" {
		return nil, fmt.Errorf("courier customer id is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("courier token provider is required")
	}

	client := &Client{
		httpClient:    &http.Client{},
		baseURL:       strings.TrimSpace(cfg.BaseURL),
		customerID:    strings.TrimSpace(cfg.CustomerID),
		tokens:        tokens,
		quoteTimeout:  cfg.QuoteTimeout,
		createTimeout: cfg.CreateTimeout,
	}
	if client.quoteTimeout <= 0 {
		client.quoteTimeout = 10 * time.Second
	}
	if client.createTimeout <= 0 {
		client.createTimeout = 15 * time.Second
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// CreateQuote prices one delivery leg.
func (c *Client) CreateQuote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "courier client not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.quoteTimeout)
	defer cancel()

	var quote QuoteResponse
	if _, err := c.post(ctx, "delivery_quotes", req, "", &quote); err != nil {
		return nil, err
	}
	if quote.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "courier quote response missing id")
	}
	return &quote, nil
}

// CreateDelivery books a delivery. The idempotency key is required and is
// sent both in the payload and as the X-Idempotency-Key header so a retried
// call lands on the same courier delivery.
func (c *Client) CreateDelivery(ctx context.Context, req DeliveryRequest, idempotencyKey string) (*DeliveryResponse, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "courier client not configured")
	}
	if strings.TrimSpace(idempotencyKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is required")
	}
	req.IdempotencyKey = idempotencyKey

	ctx, cancel := context.WithTimeout(ctx, c.createTimeout)
	defer cancel()

	var delivery DeliveryResponse
	raw, err := c.post(ctx, "deliveries", req, idempotencyKey, &delivery)
	if err != nil {
		return nil, err
	}
	if delivery.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "courier delivery response missing id")
	}
	delivery.Raw = raw
	return &delivery, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, idempotencyKey string, out any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal courier request")
	}

	endpoint := fmt.Sprintf("%s/customers/%s/%s",
		strings.TrimRight(c.baseURL, "/"), url.PathEscape(c.customerID), path)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build courier request")
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if idempotencyKey != "" {
		httpReq.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute courier request")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read courier response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := raw
		if int64(len(snippet)) > responseBodyReadLimit {
			snippet = snippet[:responseBodyReadLimit]
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
			fmt.Sprintf("courier %s request failed", path))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode courier response")
	}
	return raw, nil
}
