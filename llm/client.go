// Package llm provides a provider-agnostic completion client with a bounded
// retry policy and a hard per-request timeout.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxResponseSize limits the response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// defaultTimeout bounds a single completion call end to end.
const defaultTimeout = 60 * time.Second

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`    // "system", "user", or "assistant"
	Content string `json:"content"` // Message content
}

// Request defines a completion request.
type Request struct {
	// Messages is the chat history to send to the provider.
	Messages []Message

	// Temperature controls randomness. nil uses the provider default.
	Temperature *float64

	// MaxTokens limits response length. 0 uses the provider default.
	MaxTokens int
}

// Response contains the completion result.
type Response struct {
	// Content is the generated text.
	Content string

	// Model is the actual model that was used.
	Model string

	// TokensUsed is the total tokens consumed (if reported).
	TokensUsed int

	// FinishReason indicates why generation stopped.
	FinishReason string
}

// Completer is the capability consumed by callers. *Client implements it;
// tests substitute a mock.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Client sends completion requests to a single configured provider.
// Provider selection happens once at configuration time; the client never
// falls back to another vendor mid-request.
type Client struct {
	provider    Provider
	baseURL     string
	httpClient  *http.Client
	retryConfig RetryConfig
	timeout     time.Duration
	logger      *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithTimeout sets the hard per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		if d > 0 {
			client.timeout = d
		}
	}
}

// WithBaseURL overrides the provider's default API base URL.
func WithBaseURL(url string) ClientOption {
	return func(client *Client) {
		client.baseURL = url
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates a completion client bound to one provider.
func NewClient(provider Provider, opts ...ClientOption) *Client {
	c := &Client{
		provider:    provider,
		retryConfig: DefaultRetryConfig(),
		timeout:     defaultTimeout,
		httpClient:  &http.Client{},
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Complete sends a completion request. It makes exactly one network call,
// plus at most one retry on transient network failure. The configured
// timeout unblocks the call deterministically; a hung provider surfaces as
// ErrTimeout rather than a stuck request.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	// A caller bug, not a provider failure; no ProviderError kind applies.
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}
	if c.provider == nil || !c.provider.Available() {
		return nil, NewProviderError(ErrUnavailable, fmt.Errorf("no completion provider configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		resp, err := c.doRequest(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if IsFatal(err) {
			return nil, c.classify(ctx, err)
		}

		if attempt < c.retryConfig.MaxAttempts {
			c.logger.Debug("Completion request failed, retrying",
				"provider", c.provider.Name(),
				"attempt", attempt,
				"error", err)

			select {
			case <-ctx.Done():
				return nil, c.classify(ctx, ctx.Err())
			case <-time.After(c.retryConfig.BackoffBase):
			}
		}
	}

	return nil, c.classify(ctx, lastErr)
}

// classify converts internal transient/fatal wrappers into the ProviderError
// taxonomy callers switch on. Context expiry maps to timeout unless the
// caller's own context was cancelled.
func (c *Client) classify(ctx context.Context, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewProviderError(ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	// Exhausted transient failures mean the provider could not be reached.
	return NewProviderError(ErrUnavailable, err)
}

// doRequest executes a single HTTP request against the provider endpoint.
func (c *Client) doRequest(ctx context.Context, req Request) (*Response, error) {
	url := c.provider.BuildURL(c.baseURL)

	body, err := c.provider.BuildRequestBody(req.Messages, req.Temperature, req.MaxTokens)
	if err != nil {
		return nil, NewFatalError(NewProviderError(ErrMalformedResponse, fmt.Errorf("build request body: %w", err)))
	}

	c.logger.Debug("Sending completion request",
		"provider", c.provider.Name(),
		"model", c.provider.Model(),
		"url", url,
		"messages", len(req.Messages))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	c.provider.SetHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, NewFatalError(err)
		}
		// Network errors are transient.
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	resp, err := c.provider.ParseResponse(respBody)
	if err != nil {
		return nil, NewFatalError(NewProviderError(ErrMalformedResponse, err))
	}
	return resp, nil
}

// classifyHTTPError determines if an HTTP error is transient or fatal and
// attaches the caller-facing error kind. Rate limiting is deliberately not
// retried: a second immediate attempt only burns quota.
func classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}

	err := fmt.Errorf("API error (status %d): %s", statusCode, bodyStr)

	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewFatalError(NewProviderError(ErrRateLimited, err))
	case statusCode == http.StatusUnauthorized,
		statusCode == http.StatusForbidden:
		return NewFatalError(NewProviderError(ErrAuth, err))
	case statusCode >= 500:
		// Server errors are transient.
		return NewTransientError(err)
	default:
		return NewFatalError(NewProviderError(ErrMalformedResponse, err))
	}
}
