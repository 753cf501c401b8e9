// Package market fetches off-chain token state: pool listings from the
// pair aggregator and bare prices from the oracle fallback.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default configuration values. Collector calls run under tight per-call
// deadlines, so the clients retry faster than the chain RPC client does.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultMaxDelay   = 5 * time.Second
)

// Market data errors.
var (
	// ErrNoPairs is returned when the aggregator lists no pools for a mint.
	ErrNoPairs = errors.New("no pairs found")

	// ErrNoPrice is returned when the oracle has no price for a mint.
	ErrNoPrice = errors.New("no price available")

	// ErrNoCurve is returned when the launchpad does not know the mint.
	ErrNoCurve = errors.New("no bonding curve")
)

// errNotFound marks a 404 from the upstream API; callers map it to their
// domain sentinel instead of retrying.
var errNotFound = errors.New("not found upstream")

// Option configures a market client.
type Option func(*fetcher)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *fetcher) {
		f.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) Option {
	return func(f *fetcher) {
		f.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) Option {
	return func(f *fetcher) {
		f.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *fetcher) {
		f.client = client
	}
}

// fetcher is the shared GET-with-retries transport behind both clients.
type fetcher struct {
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
}

func newFetcher(opts ...Option) *fetcher {
	f := &fetcher{
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// getJSON performs a GET with retries and exponential backoff, decoding the
// body into out. Network errors, 429 and 5xx are retried; a 404 returns
// errNotFound immediately and other 4xx fail without retry.
func (f *fetcher) getJSON(ctx context.Context, url string, out interface{}) error {
	delay := f.retryDelay
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > f.maxDelay {
				delay = f.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		case resp.StatusCode == http.StatusNotFound:
			return errNotFound
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("upstream status %d", resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
