package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/logging"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/retry"
)

// Config holds configuration for HTTP retry operations
type Config struct {
	RetryConfig     *retry.Config
	Timeout         time.Duration
	IdleConnTimeout time.Duration
	MaxResponseSize int64 // Maximum response size to read for error messages
}

// DefaultConfig returns default configuration for HTTP retry operations
func DefaultConfig() *Config {
	return &Config{
		RetryConfig:     retry.DefaultConfig(),
		Timeout:         10 * time.Second,
		IdleConnTimeout: 30 * time.Second,
		MaxResponseSize: 4096,
	}
}

// Validate checks the HTTP configuration for reasonable values
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.IdleConnTimeout <= 0 {
		return fmt.Errorf("idleConnTimeout must be positive")
	}
	if c.MaxResponseSize < 0 {
		return fmt.Errorf("maxResponseSize must be >= 0")
	}
	return nil
}

// StatusError represents an HTTP-level error with its status code
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Client is a wrapper around http.Client that includes retry logic.
// 5xx and 429 responses and transport errors are retried; everything else
// is returned to the caller as-is.
type Client struct {
	client *http.Client
	config *Config
	logger logging.Logger
}

// New creates an HTTP client with retry capabilities
func New(config *Config, logger logging.Logger) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid http client config: %w", err)
	}

	if config.RetryConfig.ShouldRetry == nil {
		config.RetryConfig.ShouldRetry = func(err error, attempt int) bool {
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return statusErr.StatusCode >= 500 || statusErr.StatusCode == 429
			}
			// Transport errors are assumed transient.
			return true
		}
	}

	client := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			IdleConnTimeout:   config.IdleConnTimeout,
			DisableKeepAlives: false,
			DialContext: (&net.Dialer{
				Timeout:   config.Timeout / 2,
				KeepAlive: config.IdleConnTimeout,
			}).DialContext,
			TLSHandshakeTimeout:   config.Timeout / 2,
			ResponseHeaderTimeout: config.Timeout / 2,
			ExpectContinueTimeout: config.Timeout / 3,
		},
	}

	return &Client{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

// DoWithRetry performs an HTTP request with retry logic.
// The caller is responsible for closing the response body.
func (c *Client) DoWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	getBody := req.GetBody
	if getBody == nil && req.Body != nil {
		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("error reading request body for retry: %w", err)
		}
		if err := req.Body.Close(); err != nil {
			c.logger.Warnf("Failed to close request body: %v", err)
		}
		getBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(bodyBytes)), nil
		}
	}

	operation := func() (*http.Response, error) {
		reqClone := req.Clone(ctx)
		if getBody != nil {
			body, err := getBody()
			if err != nil {
				return nil, fmt.Errorf("failed to get request body: %w", err)
			}
			reqClone.Body = body
		}

		resp, err := c.client.Do(reqClone)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 500 || resp.StatusCode == 429 {
			bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseSize))
			if err := resp.Body.Close(); err != nil {
				c.logger.Warnf("Failed to close response body: %v", err)
			}
			return nil, &StatusError{
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("retryable status, body: %q", truncate(string(bodyBytes), 200)),
			}
		}

		return resp, nil
	}

	return retry.Do(ctx, operation, c.config.RetryConfig, c.logger)
}

// Get performs a GET request with retry logic
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}
	return c.DoWithRetry(ctx, req)
}

// Post performs a POST request with retry logic
func (c *Client) Post(ctx context.Context, url, contentType string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return c.DoWithRetry(ctx, req)
}

// Close releases idle connections held by the underlying transport
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
