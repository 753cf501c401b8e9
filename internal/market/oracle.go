package market

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"solana-meme-radar/internal/cache"
	"solana-meme-radar/internal/solana"
)

// DefaultSolPriceTTL is how long a fetched SOL/USD price stays fresh
// unless the caller overrides it.
const DefaultSolPriceTTL = 60 * time.Second

// PriceSource returns a bare USD price for a mint.
type PriceSource interface {
	// Price returns the mint's USD price. Returns ErrNoPrice when the
	// oracle does not know the mint.
	Price(ctx context.Context, mint string) (float64, error)
}

// OracleClient queries the price oracle. It knows prices only; callers
// that land here flag their metrics priceOnly.
type OracleClient struct {
	baseURL string
	fetcher *fetcher
}

var _ PriceSource = (*OracleClient)(nil)

// NewOracleClient creates an oracle client. baseURL is the price endpoint
// root, e.g. https://api.jup.ag/price/v2.
func NewOracleClient(baseURL string, opts ...Option) *OracleClient {
	return &OracleClient{
		baseURL: baseURL,
		fetcher: newFetcher(opts...),
	}
}

// Oracle wire format: prices keyed by mint, price as a string.
type oracleResponse struct {
	Data map[string]oracleEntry `json:"data"`
}

type oracleEntry struct {
	ID    string `json:"id"`
	Price string `json:"price"`
}

// Price returns the mint's USD price.
func (c *OracleClient) Price(ctx context.Context, mint string) (float64, error) {
	u := fmt.Sprintf("%s?ids=%s", c.baseURL, url.QueryEscape(mint))

	var resp oracleResponse
	if err := c.fetcher.getJSON(ctx, u, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return 0, ErrNoPrice
		}
		return 0, fmt.Errorf("fetch price: %w", err)
	}

	entry, ok := resp.Data[mint]
	if !ok || entry.Price == "" {
		return 0, ErrNoPrice
	}

	price, err := strconv.ParseFloat(entry.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", entry.Price, err)
	}
	if price <= 0 {
		return 0, ErrNoPrice
	}
	return price, nil
}

// SolPricer caches the SOL/USD price so per-token conversions do not hit
// the oracle every call.
type SolPricer struct {
	source PriceSource
	cache  *cache.TTL[string, float64]
}

// NewSolPricer wraps a price source with a TTL cache. Zero or negative ttl
// keeps DefaultSolPriceTTL.
func NewSolPricer(source PriceSource, ttl time.Duration) *SolPricer {
	if ttl <= 0 {
		ttl = DefaultSolPriceTTL
	}
	return &SolPricer{
		source: source,
		cache:  cache.NewTTL[string, float64](ttl),
	}
}

// SolUsd returns the cached SOL/USD price, fetching on expiry.
func (p *SolPricer) SolUsd(ctx context.Context) (float64, error) {
	if price, ok := p.cache.Get(solana.WSOLMint); ok {
		return price, nil
	}

	price, err := p.source.Price(ctx, solana.WSOLMint)
	if err != nil {
		return 0, err
	}
	p.cache.Set(solana.WSOLMint, price)
	return price, nil
}
