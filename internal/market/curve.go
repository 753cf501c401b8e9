package market

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// Launchpad curve math constants. The launchpad mints tokens with 6
// decimals and reserves 793.1M of the 1B supply for the curve.
const (
	lamportsPerSol     = 1e9
	curveTokenUnits    = 1e6
	curveSellableUnits = 793_100_000 * curveTokenUnits
)

// CurveState is a launchpad token's bonding-curve snapshot. Tokens trade
// against virtual reserves until the curve completes and the pool migrates
// to a DEX.
type CurveState struct {
	Mint          string
	Name          string
	Symbol        string
	Creator       string
	CreatedAtMs   int64
	Complete      bool
	VirtualSol    uint64 // lamports
	VirtualTokens uint64 // raw units
	RealSol       uint64
	RealTokens    uint64
	TotalSupply   uint64
	MarketCapUsd  float64
	RaydiumPool   string // set once migrated
}

// PriceSol returns the spot price in SOL implied by the virtual reserves.
func (s *CurveState) PriceSol() float64 {
	if s.VirtualTokens == 0 {
		return 0
	}
	sol := float64(s.VirtualSol) / lamportsPerSol
	tokens := float64(s.VirtualTokens) / curveTokenUnits
	return sol / tokens
}

// Progress reports how much of the curve's sellable supply has been bought,
// in [0,1]. Completed curves report 1.
func (s *CurveState) Progress() float64 {
	if s.Complete {
		return 1
	}
	p := 1 - float64(s.RealTokens)/curveSellableUnits
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// CurveSource returns bonding-curve state for launchpad mints.
type CurveSource interface {
	// State returns the mint's curve snapshot. Returns ErrNoCurve when the
	// launchpad does not know the mint.
	State(ctx context.Context, mint string) (*CurveState, error)
}

// CurveClient queries the launchpad's coin endpoint.
type CurveClient struct {
	baseURL string
	fetcher *fetcher
}

var _ CurveSource = (*CurveClient)(nil)

// NewCurveClient creates a launchpad client. baseURL is the API root,
// e.g. https://frontend-api.pump.fun.
func NewCurveClient(baseURL string, opts ...Option) *CurveClient {
	return &CurveClient{
		baseURL: baseURL,
		fetcher: newFetcher(opts...),
	}
}

// Launchpad wire format.
type curvePayload struct {
	Mint             string  `json:"mint"`
	Name             string  `json:"name"`
	Symbol           string  `json:"symbol"`
	Creator          string  `json:"creator"`
	CreatedTimestamp int64   `json:"created_timestamp"`
	Complete         bool    `json:"complete"`
	VirtualSol       uint64  `json:"virtual_sol_reserves"`
	VirtualTokens    uint64  `json:"virtual_token_reserves"`
	RealSol          uint64  `json:"real_sol_reserves"`
	RealTokens       uint64  `json:"real_token_reserves"`
	TotalSupply      uint64  `json:"total_supply"`
	UsdMarketCap     float64 `json:"usd_market_cap"`
	RaydiumPool      *string `json:"raydium_pool"`
}

// State returns the mint's bonding-curve snapshot.
func (c *CurveClient) State(ctx context.Context, mint string) (*CurveState, error) {
	u := fmt.Sprintf("%s/coins/%s", c.baseURL, url.PathEscape(mint))

	var resp curvePayload
	if err := c.fetcher.getJSON(ctx, u, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, ErrNoCurve
		}
		return nil, fmt.Errorf("fetch curve: %w", err)
	}
	if resp.Mint == "" {
		return nil, ErrNoCurve
	}

	state := &CurveState{
		Mint:          resp.Mint,
		Name:          resp.Name,
		Symbol:        resp.Symbol,
		Creator:       resp.Creator,
		CreatedAtMs:   resp.CreatedTimestamp,
		Complete:      resp.Complete,
		VirtualSol:    resp.VirtualSol,
		VirtualTokens: resp.VirtualTokens,
		RealSol:       resp.RealSol,
		RealTokens:    resp.RealTokens,
		TotalSupply:   resp.TotalSupply,
		MarketCapUsd:  resp.UsdMarketCap,
	}
	if resp.RaydiumPool != nil {
		state.RaydiumPool = *resp.RaydiumPool
	}
	return state, nil
}
