// Package session wraps an HTTP client with persistent cookie state
// and a retry policy for transient failures. One Client is shared by
// the whole authenticated pipeline: CSRF fetch, login, listing, and
// every document download ride the same cookie jar.
package session

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mdmirror/mdmirror/internal/metrics"
)

// Config controls client behavior.
type Config struct {
	Timeout        time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Client is a cookie-persisting HTTP client with transparent retry.
type Client struct {
	http   *http.Client
	policy *RetryPolicy
	logger *zap.Logger

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Client with a fresh cookie jar and a keep-alive pooled
// transport. Sessions are never persisted across runs.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http: &http.Client{
			Jar:     jar,
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 60 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   15 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		policy: NewRetryPolicy(cfg.MaxRetries, cfg.BackoffInitial, cfg.BackoffMax),
		logger: logger,
		sleep:  sleepContext,
	}, nil
}

// Do executes the request, retrying transient failures (network
// errors, timeouts, 5xx, 429) with exponential backoff. Permanent
// failures and non-retryable statuses are returned as-is. The caller
// owns the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		attemptReq, err := c.attemptRequest(req, attempt)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(attemptReq)
		if err == nil && !c.policy.RetryableStatus(resp.StatusCode, attempt) {
			return resp, nil
		}

		if err != nil {
			if !c.policy.ShouldRetry(err, attempt) {
				return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
			}
			lastErr = err
		} else {
			// Retryable status with retry budget remaining.
			drain(resp)
		}

		delay := c.policy.Backoff(attempt)
		c.logger.Debug("retrying request",
			zap.String("url", req.URL.String()),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
		)
		metrics.ObserveRetry()
		if err := c.sleep(req.Context(), delay); err != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, lastErr)
			}
			return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
		}
	}
}

// attemptRequest clones the original request for one attempt,
// rewinding the body via GetBody when present. Requests with a
// one-shot body cannot be replayed.
func (c *Client) attemptRequest(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 0 {
		return req, nil
	}
	clone := req.Clone(req.Context())
	if req.Body == nil || req.GetBody == nil {
		if req.Body != nil {
			return nil, fmt.Errorf("%s %s: request body is not replayable", req.Method, req.URL)
		}
		return clone, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewind request body: %w", err)
	}
	clone.Body = body
	return clone, nil
}

// Get issues a GET through the retry policy.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build GET %s: %w", rawURL, err)
	}
	return c.Do(req)
}

// PostForm issues a form-encoded POST through the retry policy. Extra
// headers are attached before sending.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build POST %s: %w", rawURL, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	return c.Do(req)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff wait: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
