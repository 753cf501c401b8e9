package solana

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"solana-meme-radar/internal/observability"
)

// Pool default tuning.
const (
	DefaultCooldown        = 60 * time.Second
	DefaultHeliusCooldown  = 300 * time.Second
	DefaultRatePerSec      = 10.0
	DefaultBurst           = 20
	DefaultBreakerFailures = 5
)

// ErrNoHealthyEndpoint is returned when every endpoint's breaker is open.
var ErrNoHealthyEndpoint = errors.New("no healthy rpc endpoint")

// PoolConfig tunes per-endpoint breaker and rate limiter behavior.
type PoolConfig struct {
	// Cooldown is how long a tripped breaker stays open.
	Cooldown time.Duration
	// HeliusCooldown overrides Cooldown for Helius endpoints, whose
	// rate limit penalties last minutes rather than seconds.
	HeliusCooldown time.Duration
	// RatePerSec caps request rate per endpoint.
	RatePerSec float64
	// Burst is the limiter burst capacity per endpoint.
	Burst int
	// BreakerFailures is the consecutive failure count that trips a breaker.
	BreakerFailures int
	// RequestTimeout bounds each HTTP request.
	RequestTimeout time.Duration
}

// DefaultPoolConfig returns default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Cooldown:        DefaultCooldown,
		HeliusCooldown:  DefaultHeliusCooldown,
		RatePerSec:      DefaultRatePerSec,
		Burst:           DefaultBurst,
		BreakerFailures: DefaultBreakerFailures,
		RequestTimeout:  DefaultTimeout,
	}
}

// Pool rotates requests across RPC endpoints round-robin, skipping endpoints
// whose circuit breaker is open. Transport failures (network errors, 429s,
// 5xx responses) count against the endpoint and fail over once to the next
// healthy endpoint; node-level JSON-RPC errors are returned to the caller
// untouched.
type Pool struct {
	endpoints []*poolEndpoint
	next      atomic.Uint64
}

var _ Client = (*Pool)(nil)

type poolEndpoint struct {
	url     string
	client  *HTTPClient
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewPool creates a rotating pool over the given endpoint URLs.
func NewPool(endpoints []string, config *PoolConfig) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("at least one rpc endpoint required")
	}

	cfg := DefaultPoolConfig()
	if config != nil {
		cfg = *config
	}

	p := &Pool{endpoints: make([]*poolEndpoint, 0, len(endpoints))}
	for _, url := range endpoints {
		cooldown := cfg.Cooldown
		if strings.Contains(strings.ToLower(url), "helius") {
			cooldown = cfg.HeliusCooldown
		}

		settings := gobreaker.Settings{
			Name:    url,
			Timeout: cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(cfg.BreakerFailures)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				observability.UpdateEndpointState(name, to == gobreaker.StateOpen)
			},
		}

		p.endpoints = append(p.endpoints, &poolEndpoint{
			url: url,
			client: NewHTTPClient(url,
				WithTimeout(cfg.RequestTimeout),
				// The pool fails over between endpoints instead of
				// retrying in place, so the breaker sees every fault.
				WithMaxRetries(0),
			),
			breaker: gobreaker.NewCircuitBreaker(settings),
			limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		})
	}

	return p, nil
}

// States returns the breaker state per endpoint URL.
func (p *Pool) States() map[string]string {
	states := make(map[string]string, len(p.endpoints))
	for _, ep := range p.endpoints {
		states[ep.url] = ep.breaker.State().String()
	}
	return states
}

// nextHealthy returns the next endpoint in rotation whose breaker admits
// requests, or nil when all breakers are open.
func (p *Pool) nextHealthy() *poolEndpoint {
	n := uint64(len(p.endpoints))
	for i := uint64(0); i < n; i++ {
		ep := p.endpoints[(p.next.Add(1)-1)%n]
		if ep.breaker.State() != gobreaker.StateOpen {
			return ep
		}
	}
	return nil
}

// do runs fn against the next healthy endpoint, failing over once when the
// call faults the endpoint.
func (p *Pool) do(ctx context.Context, method string, fn func(*HTTPClient) error) error {
	var lastErr error

	for attempt := 0; attempt < 2; attempt++ {
		ep := p.nextHealthy()
		if ep == nil {
			if lastErr != nil {
				return fmt.Errorf("%w: %w", ErrNoHealthyEndpoint, lastErr)
			}
			return ErrNoHealthyEndpoint
		}

		if err := ep.limiter.Wait(ctx); err != nil {
			return err
		}

		start := time.Now()
		res, execErr := ep.breaker.Execute(func() (interface{}, error) {
			callErr := fn(ep.client)
			if callErr != nil && !endpointFault(callErr) {
				// Node-level errors are the caller's problem and must
				// not count against the endpoint.
				return callErr, nil
			}
			return nil, callErr
		})
		elapsed := time.Since(start).Seconds()

		if execErr == nil {
			if appErr, ok := res.(error); ok {
				observability.RecordRPCCall(method, elapsed, appErr)
				return appErr
			}
			observability.RecordRPCCall(method, elapsed, nil)
			return nil
		}

		observability.RecordRPCCall(method, elapsed, execErr)
		lastErr = execErr
	}

	return fmt.Errorf("rpc failover exhausted: %w", lastErr)
}

// endpointFault reports whether the error indicates a sick endpoint rather
// than a caller mistake.
func endpointFault(err error) bool {
	var rpcErr *rpcError
	return !errors.As(err, &rpcErr)
}

// GetTokenLargestAccounts retrieves the largest token accounts for a mint.
func (p *Pool) GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenAccountBalance, error) {
	var out []TokenAccountBalance
	err := p.do(ctx, "getTokenLargestAccounts", func(c *HTTPClient) error {
		var callErr error
		out, callErr = c.GetTokenLargestAccounts(ctx, mint)
		return callErr
	})
	return out, err
}

// GetTokenSupply retrieves the total supply of a mint.
func (p *Pool) GetTokenSupply(ctx context.Context, mint string) (*TokenAmount, error) {
	var out *TokenAmount
	err := p.do(ctx, "getTokenSupply", func(c *HTTPClient) error {
		var callErr error
		out, callErr = c.GetTokenSupply(ctx, mint)
		return callErr
	})
	return out, err
}

// GetAsset retrieves token metadata through the DAS getAsset method.
func (p *Pool) GetAsset(ctx context.Context, mint string) (*Asset, error) {
	var out *Asset
	err := p.do(ctx, "getAsset", func(c *HTTPClient) error {
		var callErr error
		out, callErr = c.GetAsset(ctx, mint)
		return callErr
	})
	return out, err
}

// GetAccountInfo retrieves account info by public key.
func (p *Pool) GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error) {
	var out *AccountInfo
	err := p.do(ctx, "getAccountInfo", func(c *HTTPClient) error {
		var callErr error
		out, callErr = c.GetAccountInfo(ctx, pubkey)
		return callErr
	})
	return out, err
}

// GetSignaturesForAddress retrieves signatures for an address with pagination.
func (p *Pool) GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error) {
	var out []SignatureInfo
	err := p.do(ctx, "getSignaturesForAddress", func(c *HTTPClient) error {
		var callErr error
		out, callErr = c.GetSignaturesForAddress(ctx, address, opts)
		return callErr
	})
	return out, err
}

// GetTransaction retrieves a transaction by signature.
func (p *Pool) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	var out *Transaction
	err := p.do(ctx, "getTransaction", func(c *HTTPClient) error {
		var callErr error
		out, callErr = c.GetTransaction(ctx, signature)
		return callErr
	})
	return out, err
}

// GetSlot retrieves the current slot.
func (p *Pool) GetSlot(ctx context.Context) (int64, error) {
	var out int64
	err := p.do(ctx, "getSlot", func(c *HTTPClient) error {
		var callErr error
		out, callErr = c.GetSlot(ctx)
		return callErr
	})
	return out, err
}
