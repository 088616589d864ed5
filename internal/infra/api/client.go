// Package api provides the HTTP client for the Poupafin REST backend: JSON
// request/response handling, an ordered request-interceptor chain (bearer
// injection), per-call timeouts, and the 401 session-expiry contract.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/poupafin/poupafin-go/internal/domain"
	"github.com/poupafin/poupafin-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("api")

// Interceptor mutates an outgoing request. The chain is fixed at
// construction time and applied in order before every send.
type Interceptor func(req *http.Request)

// Client wraps HTTP calls to the backend.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	creds          port.CredentialStore
	interceptors   []Interceptor
	onUnauthorized func()
	timeout        time.Duration
	logger         *zap.Logger
}

// Option configures the client at construction.
type Option func(*Client)

// WithTimeout overrides the default 10s per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithInterceptor appends an interceptor after the built-in auth one.
func WithInterceptor(i Interceptor) Option {
	return func(c *Client) { c.interceptors = append(c.interceptors, i) }
}

// WithUnauthorizedHook registers the callback invoked after a 401 has purged
// the stored credentials (the consumer navigates to login).
func WithUnauthorizedHook(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// NewClient creates a backend client. The interceptor chain starts with the
// bearer-token interceptor reading from creds.
func NewClient(httpClient *http.Client, baseURL string, creds port.CredentialStore, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		creds:          creds,
		timeout:        10 * time.Second,
		logger:         logger,
		onUnauthorized: func() {},
	}
	c.interceptors = []Interceptor{c.authInterceptor}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// authInterceptor attaches the stored bearer token, when present.
func (c *Client) authInterceptor(req *http.Request) {
	if token := c.creds.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// RequestOption tweaks a single call.
type RequestOption func(*requestConfig)

type requestConfig struct {
	timeout time.Duration
}

// WithRequestTimeout overrides the client timeout for one call.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(rc *requestConfig) { rc.timeout = d }
}

// Get issues a GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, endpoint string, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodGet, endpoint, nil, out, opts...)
}

// Post issues a POST with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, endpoint string, body, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodPost, endpoint, body, out, opts...)
}

// Patch issues a PATCH with a JSON body and decodes the response into out.
func (c *Client) Patch(ctx context.Context, endpoint string, body, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodPatch, endpoint, body, out, opts...)
}

// Delete issues a DELETE; out may be nil.
func (c *Client) Delete(ctx context.Context, endpoint string, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodDelete, endpoint, nil, out, opts...)
}

// do executes one request against the backend. No retries: callers layer
// their own semantics where they need them.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any, opts ...RequestOption) error {
	rc := requestConfig{timeout: c.timeout}
	for _, opt := range opts {
		opt(&rc)
	}

	ctx, span := tracer.Start(ctx, "api."+method)
	defer span.End()
	span.SetAttributes(attribute.String("endpoint", endpoint))

	ctx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	url := c.baseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		c.logger.Error("api: failed to create request",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	for _, interceptor := range c.interceptors {
		interceptor(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			c.logger.Warn("api: request timed out",
				zap.String("method", method),
				zap.String("endpoint", endpoint),
				zap.Duration("timeout", rc.timeout),
			)
			return &domain.ErrTimeout{Operation: method + " " + endpoint}
		}
		c.logger.Error("api: request failed",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("api: failed to read response body",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Session-expiry contract: purge credentials, send the consumer to
		// login, fail with a fixed error. Never retried.
		c.logger.Warn("api: unauthorized, clearing credentials",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
		)
		c.creds.Clear()
		c.onUnauthorized()
		return domain.ErrSessionExpired
	}

	if resp.StatusCode == http.StatusNotFound {
		return &domain.ErrNotFound{Resource: endpoint}
	}

	if resp.StatusCode >= 400 {
		message := extractErrorMessage(data)
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		c.logger.Warn("api: non-2xx response",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("message", message),
		)
		return &domain.ErrAPIStatus{Status: resp.StatusCode, Message: message}
	}

	c.logger.Debug("api: request OK",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
	)

	if out == nil || resp.StatusCode == http.StatusNoContent || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// extractErrorMessage pulls "message" from a JSON error body, if any.
func extractErrorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return body.Message
}
