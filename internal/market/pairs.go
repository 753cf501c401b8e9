package market

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// Pair is one pool for a mint as listed by the aggregator.
type Pair struct {
	DexID        string
	PairAddress  string
	PriceUsd     float64
	LiquidityUsd float64
	MarketCap    float64
	FDV          float64
	Volume5m     float64
	Volume1h     float64
	Buys5m       int
	Sells5m      int
	Buys1h       int
	Sells1h      int
	CreatedAtMs  int64
}

// PairSource returns pool state for a mint.
type PairSource interface {
	// BestPair returns the most liquid pool. Returns ErrNoPairs when the
	// aggregator does not list the mint yet.
	BestPair(ctx context.Context, mint string) (*Pair, error)
}

// PairClient queries the pair aggregator's token endpoint.
type PairClient struct {
	baseURL string
	fetcher *fetcher
}

var _ PairSource = (*PairClient)(nil)

// NewPairClient creates an aggregator client. baseURL is the API root,
// e.g. https://api.dexscreener.com.
func NewPairClient(baseURL string, opts ...Option) *PairClient {
	return &PairClient{
		baseURL: baseURL,
		fetcher: newFetcher(opts...),
	}
}

// Aggregator wire format. Numeric prices arrive as strings.
type pairsResponse struct {
	Pairs []pairPayload `json:"pairs"`
}

type pairPayload struct {
	DexID         string            `json:"dexId"`
	PairAddress   string            `json:"pairAddress"`
	PriceUsd      string            `json:"priceUsd"`
	Txns          txnBuckets        `json:"txns"`
	Volume        volumeBuckets     `json:"volume"`
	Liquidity     *liquidityPayload `json:"liquidity"`
	FDV           float64           `json:"fdv"`
	MarketCap     float64           `json:"marketCap"`
	PairCreatedAt int64             `json:"pairCreatedAt"`
}

type txnCounts struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}

type txnBuckets struct {
	M5 txnCounts `json:"m5"`
	H1 txnCounts `json:"h1"`
}

type volumeBuckets struct {
	M5 float64 `json:"m5"`
	H1 float64 `json:"h1"`
}

type liquidityPayload struct {
	Usd float64 `json:"usd"`
}

// TokenPairs returns every pool the aggregator lists for the mint.
func (c *PairClient) TokenPairs(ctx context.Context, mint string) ([]Pair, error) {
	u := fmt.Sprintf("%s/latest/dex/tokens/%s", c.baseURL, url.PathEscape(mint))

	var resp pairsResponse
	if err := c.fetcher.getJSON(ctx, u, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, ErrNoPairs
		}
		return nil, fmt.Errorf("fetch pairs: %w", err)
	}
	if len(resp.Pairs) == 0 {
		return nil, ErrNoPairs
	}

	pairs := make([]Pair, 0, len(resp.Pairs))
	for _, p := range resp.Pairs {
		pairs = append(pairs, toPair(p))
	}
	return pairs, nil
}

// BestPair returns the mint's most liquid pool.
func (c *PairClient) BestPair(ctx context.Context, mint string) (*Pair, error) {
	pairs, err := c.TokenPairs(ctx, mint)
	if err != nil {
		return nil, err
	}

	best := pairs[0]
	for _, p := range pairs[1:] {
		if p.LiquidityUsd > best.LiquidityUsd {
			best = p
		}
	}
	return &best, nil
}

func toPair(p pairPayload) Pair {
	price, _ := strconv.ParseFloat(p.PriceUsd, 64)

	pair := Pair{
		DexID:       p.DexID,
		PairAddress: p.PairAddress,
		PriceUsd:    price,
		MarketCap:   p.MarketCap,
		FDV:         p.FDV,
		Volume5m:    p.Volume.M5,
		Volume1h:    p.Volume.H1,
		Buys5m:      p.Txns.M5.Buys,
		Sells5m:     p.Txns.M5.Sells,
		Buys1h:      p.Txns.H1.Buys,
		Sells1h:     p.Txns.H1.Sells,
		CreatedAtMs: p.PairCreatedAt,
	}
	if p.Liquidity != nil {
		pair.LiquidityUsd = p.Liquidity.Usd
	}
	return pair
}
