package session

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net"
	"net/http"
	"time"
)

// RetryPolicy implements jittered exponential backoff for transient
// request failures. A request is attempted at most maxRetries+1 times.
type RetryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewRetryPolicy builds a policy from explicit limits.
func NewRetryPolicy(maxRetries int, baseDelay, maxDelay time.Duration) *RetryPolicy {
	if baseDelay <= 0 {
		baseDelay = 250 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	return &RetryPolicy{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
	}
}

// DefaultRetryPolicy matches the service defaults: 3 retries with
// delays growing from 250ms toward 5s.
func DefaultRetryPolicy() *RetryPolicy {
	return NewRetryPolicy(3, 250*time.Millisecond, 5*time.Second)
}

// ShouldRetry decides whether another attempt is warranted after the
// given transport error. Context cancellation is never retried.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxRetries {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && !netErr.Timeout() {
		// Non-timeout net.Errors (refused connections, resets) are
		// still transient from the caller's point of view.
		return true
	}
	return true
}

// RetryableStatus reports whether an HTTP status is a transient server
// condition. Client errors other than rate limiting are permanent.
func (p *RetryPolicy) RetryableStatus(status int, attempt int) bool {
	if attempt >= p.maxRetries {
		return false
	}
	return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}

// Backoff returns the wait duration before the next attempt.
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := p.randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func (p *RetryPolicy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
