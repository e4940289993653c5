// Package mercadopago calls the MercadoPago REST API for checkout preferences
// and card payments.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
)

const (
	defaultBaseURL              = "https://api.mercadopago.com"
	defaultTimeout              = 20 * time.Second
	responseBodyReadLimit int64 = 1 << 20
	providerLabel               = "mercadopago"
)

var errAccessTokenRequired = errors.New("mercadopago access token is required")

// Client wraps the MercadoPago endpoints used by checkout.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	metrics     *metrics.CheckoutMetrics
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

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 && c.httpClient != nil {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithMetrics records call latency on the provided metrics.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient builds a client authenticated with the given access token.
func NewClient(accessToken string, opts ...Option) (*Client, error) {
	trimmedToken := strings.TrimSpace(accessToken)
	if trimmedToken == "" {
		return nil, errAccessTokenRequired
	}

	client := &Client{
		accessToken: trimmedToken,
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return client, nil
}

// CreatePreference creates a Checkout Pro preference.
func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest, idempotencyKey string) (*Preference, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeMercadoPagoConfig, "mercadopago client not configured")
	}
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "preference requires at least one item")
	}

	var out Preference
	if err := c.do(ctx, "create_preference", http.MethodPost, "checkout/preferences", req, idempotencyKey, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePayment submits a tokenized card payment.
func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest, idempotencyKey string) (*Payment, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeMercadoPagoConfig, "mercadopago client not configured")
	}
	if !req.TransactionAmount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction amount must be positive")
	}

	var out Payment
	if err := c.do(ctx, "create_payment", http.MethodPost, "v1/payments", req, idempotencyKey, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPayment fetches a payment by its MercadoPago id.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeMercadoPagoConfig, "mercadopago client not configured")
	}
	trimmed := strings.TrimSpace(paymentID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	var out Payment
	if err := c.do(ctx, "get_payment", http.MethodGet, "v1/payments/"+url.PathEscape(trimmed), nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, body any, idempotencyKey string, out any) error {
	start := time.Now()
	defer func() {
		c.metrics.ObserveProvider(providerLabel, operation, time.Since(start))
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal mercadopago request")
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build mercadopago request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		httpReq.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute mercadopago request")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read mercadopago response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseAPIError(resp.StatusCode, raw)
		wrapped := pkgerrors.Wrap(pkgerrors.CodeMercadoPagoAPI, apiErr, apiErr.Message)
		if len(apiErr.Cause) > 0 {
			wrapped.WithDetails(apiErr.Cause)
		}
		return wrapped
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode mercadopago response")
	}
	return nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
