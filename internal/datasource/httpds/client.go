// Package httpds fetches source files over HTTP with retry and backoff. The
// batch registry is often published on an intranet web server rather than a
// shared drive; this package lets it be read from there.
package httpds

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Config configures the client. Zero values get defaults:
// Timeout 30s, InitialBackoff 200ms, MaxBackoff 5s, no retries.
type Config struct {
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// InsecureSkipVerify disables TLS certificate checks for intranet
	// servers with self-signed certificates.
	InsecureSkipVerify bool

	// Transport overrides the default transport (tests).
	Transport http.RoundTripper
}

// Client is an http.Client that retries transient failures.
type Client struct {
	httpClient     *http.Client
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration

	sleep func(context.Context, time.Duration) error
}

// NewClient constructs a Client from Config, applying defaults.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}, //nolint:gosec // opt-in for intranet hosts
		}
	}

	return &Client{
		httpClient:     &http.Client{Timeout: cfg.Timeout, Transport: transport},
		maxRetries:     max(cfg.MaxRetries, 0),
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		sleep:          sleepCtx,
	}
}

// Get issues a GET, retrying transport errors, 429 and 5xx. A Retry-After
// header in seconds stretches the wait up to the backoff ceiling. The caller
// closes the response body; non-retryable statuses are returned as-is.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	if url == "" {
		return nil, fmt.Errorf("httpds: url must not be empty")
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("httpds: build request: %w", err)
		}

		wait := backoffDuration(c.initialBackoff, attempt, c.maxBackoff)
		resp, err := c.httpClient.Do(req)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
		case !isRetryableStatus(resp.StatusCode):
			return resp, nil
		default:
			if ra, ok := retryAfter(resp.Header.Get("Retry-After")); ok && ra > wait {
				wait = min(ra, c.maxBackoff)
			}
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("httpds: GET %s: status %d", url, resp.StatusCode)
		}

		if attempt >= c.maxRetries {
			return nil, lastErr
		}
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// backoffDuration is initial doubled attempt times, never above ceiling.
func backoffDuration(initial time.Duration, attempt int, ceiling time.Duration) time.Duration {
	d := initial
	for i := 0; i < attempt && d < ceiling; i++ {
		d *= 2
	}
	return min(d, ceiling)
}

// retryAfter parses the delay-seconds form of Retry-After. HTTP dates are
// ignored.
func retryAfter(v string) (time.Duration, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
