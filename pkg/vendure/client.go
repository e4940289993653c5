// Package vendure is a thin client for the Vendure Shop GraphQL API. Backend
// GraphQL errors are returned in the Result rather than as Go errors so callers
// can classify every failure themselves.
package vendure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
)

const (
	defaultTimeout              = 15 * time.Second
	responseBodyReadLimit int64 = 4 << 20
)

const (
	outcomeOK             = "ok"
	outcomeGraphQLError   = "graphql_error"
	outcomeHTTPError      = "http_error"
	outcomeTransportError = "transport_error"
)

var errEndpointRequired = errors.New("vendure shop api url is required")

// Client posts GraphQL documents to a single Shop API endpoint.
type Client struct {
	httpClient *http.Client
	endpoint   string
	metrics    *metrics.CheckoutMetrics
	logg       *logger.Logger
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

// WithLogger enables a debug line per call.
func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		c.logg = logg
	}
}

// NewClient builds a client for the given Shop API URL.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, errEndpointRequired
	}

	client := &Client{
		endpoint:   trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
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

// Endpoint returns the Shop API URL the client posts to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Execute sends the request with the session cookie attached and absorbs any
// Set-Cookie headers into the session. It never returns a Go error: transport
// and decode failures are reported as a single synthetic GraphQL error.
func (c *Client) Execute(ctx context.Context, req Request, session *Session) Result {
	start := time.Now()
	result, outcome := c.execute(ctx, req, session)
	if outcome == outcomeOK && result.HasErrors() {
		outcome = outcomeGraphQLError
	}

	operation := req.operation()
	c.metrics.ObserveGraphQL(operation, outcome, time.Since(start))
	if c.logg != nil {
		logCtx := c.logg.WithFields(ctx, map[string]any{
			"graphql_operation": operation,
			"graphql_outcome":   outcome,
			"duration_ms":       time.Since(start).Milliseconds(),
		})
		if result.HasErrors() {
			logCtx = c.logg.WithField(logCtx, "graphql_error", result.FirstMessage(""))
		}
		c.logg.Debug(logCtx, "vendure.graphql")
	}

	if session != nil && len(result.SetCookies) > 0 {
		session.Absorb(result.SetCookies)
	}
	return result
}

func (c *Client) execute(ctx context.Context, req Request, session *Session) (Result, string) {
	payload, err := json.Marshal(req)
	if err != nil {
		return errorResult(fmt.Sprintf("encode graphql request: %v", err)), outcomeTransportError
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return errorResult(fmt.Sprintf("build graphql request: %v", err)), outcomeTransportError
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if session != nil {
		if cookie := session.CookieHeader(); cookie != "" {
			httpReq.Header.Set("Cookie", cookie)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return errorResult(err.Error()), outcomeTransportError
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return errorResult(fmt.Sprintf("read graphql response: %v", err)), outcomeTransportError
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpErrorResult(resp.StatusCode, body), outcomeHTTPError
	}

	var decoded struct {
		Data   json.RawMessage `json:"data"`
		Errors []GraphQLError  `json:"errors"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return errorResult(fmt.Sprintf("decode graphql response: %v", err)), outcomeTransportError
	}

	result := Result{
		Data:       decoded.Data,
		Errors:     decoded.Errors,
		SetCookies: resp.Header.Values("Set-Cookie"),
	}
	return result, outcomeOK
}

// Ping issues a trivial query to confirm the Shop API answers.
func (c *Client) Ping(ctx context.Context) error {
	res := c.Execute(ctx, Request{Query: PingQuery, OperationName: "Ping"}, nil)
	if res.HasErrors() {
		return fmt.Errorf("vendure ping: %s", res.FirstMessage("unknown error"))
	}
	return nil
}

func httpErrorResult(status int, body []byte) Result {
	text := strings.TrimSpace(string(body))

	var parsed struct {
		Errors  []GraphQLError `json:"errors"`
		Message string         `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		if text == "" {
			text = "Unknown error"
		}
		return errorResult(fmt.Sprintf("HTTP %d: %s", status, text))
	}
	if len(parsed.Errors) > 0 {
		return Result{Errors: parsed.Errors}
	}

	msg := parsed.Message
	if msg == "" {
		msg = text
	}
	return errorResult(fmt.Sprintf("HTTP %d: %s", status, msg))
}

func errorResult(message string) Result {
	return Result{Errors: []GraphQLError{{Message: message, Extensions: map[string]any{}}}}
}
