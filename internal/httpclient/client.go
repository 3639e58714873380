// Package httpclient provides the rate-limited, retrying HTTP transport
// used for all OData API requests. Retry policy lives here; response
// classification belongs to the replication engine, which can extend the
// retry trigger through a classifier callback.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// APITokenHeader is the authentication header expected by the Aptem API.
const APITokenHeader = "X-API-Token"

// RetryClassifier reports whether a non-2xx response should be retried in
// addition to the built-in 5xx/429 policy. Used for transient errors the
// server misreports as 400 Bad Request.
type RetryClassifier func(statusCode int, body []byte) bool

// Config configures the HTTP client behavior.
type Config struct {
	// BaseURL is the tenant-scoped OData base URL.
	BaseURL string

	// APIToken is sent on every request as the X-API-Token header.
	APIToken string

	// Timeout for individual page requests (default: 60s).
	Timeout time.Duration

	// MetadataTimeout for the $metadata document, which can be large
	// (default: 5m).
	MetadataTimeout time.Duration

	// MaxRetries for retryable responses (default: 3).
	MaxRetries int

	// RateLimit requests per second (default: 5).
	RateLimit float64

	// RateBurst maximum burst size (default: 5).
	RateBurst int

	// RetryClassifier extends the retry policy; may be nil.
	RetryClassifier RetryClassifier

	// Transport allows injecting a custom HTTP transport (for tests/stubs).
	Transport http.RoundTripper
}

// Client is a rate-limited, retry-capable HTTP client for one tenant.
type Client struct {
	config         Config
	pageClient     *http.Client
	metadataClient *http.Client
	limiter        *rate.Limiter
}

// New creates a new Client with the given configuration.
func New(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MetadataTimeout == 0 {
		config.MetadataTimeout = 5 * time.Minute
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}
	if config.RateBurst == 0 {
		config.RateBurst = 5
	}

	return &Client{
		config: config,
		pageClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: config.Transport,
		},
		metadataClient: &http.Client{
			Timeout:   config.MetadataTimeout,
			Transport: config.Transport,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
	}
}

// Response wraps an HTTP response body read to completion.
type Response struct {
	StatusCode int
	Body       []byte
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Get performs a GET request against a path under the base URL, retrying
// retryable responses with exponential backoff. Non-2xx responses that are
// not retryable are returned without error so the caller can classify them.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	var lastResp *Response
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := c.doOnce(ctx, c.pageClient, path, query)
		if err != nil {
			lastResp, lastErr = nil, err
		} else {
			lastResp, lastErr = resp, nil
			if resp.IsSuccess() || !c.isRetryable(resp) {
				return resp, nil
			}
		}

		if attempt == c.config.MaxRetries {
			break
		}

		// Exponential backoff
		backoff := time.Duration(1<<uint(attempt)) * 250 * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("request failed after %d retries: %w", c.config.MaxRetries, lastErr)
	}
	return lastResp, fmt.Errorf("request to %s failed after %d retries with status %d",
		path, c.config.MaxRetries, lastResp.StatusCode)
}

// FetchMetadata retrieves the tenant's $metadata XML document with the
// generous metadata timeout.
func (c *Client) FetchMetadata(ctx context.Context) (string, error) {
	resp, err := c.doOnce(ctx, c.metadataClient, "$metadata", nil)
	if err != nil {
		return "", fmt.Errorf("fetch metadata: %w", err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("fetch metadata: unexpected status %d", resp.StatusCode)
	}
	return string(resp.Body), nil
}

// doOnce executes a single request attempt.
func (c *Client) doOnce(ctx context.Context, hc *http.Client, path string, query url.Values) (*Response, error) {
	fullURL := strings.TrimSuffix(c.config.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json, application/xml")
	req.Header.Set(APITokenHeader, c.config.APIToken)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// isRetryable applies the built-in policy (server errors and throttling)
// plus the injected classifier.
func (c *Client) isRetryable(resp *Response) bool {
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if c.config.RetryClassifier != nil {
		return c.config.RetryClassifier(resp.StatusCode, resp.Body)
	}
	return false
}
