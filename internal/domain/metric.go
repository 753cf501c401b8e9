package domain

// TokenMetric represents one market snapshot of a token.
// Append-only; corresponds to token_metrics table in PostgreSQL
// (mirrored to ClickHouse when the archive backend is configured).
type TokenMetric struct {
	Mint        string // token mint address
	TimestampMs int64  // snapshot timestamp (ms)

	PriceUSD     float64  // last trade price in USD
	MarketCapUSD *float64 // fully diluted market cap (nullable)
	LiquidityUSD *float64 // pool liquidity in USD (nullable)
	Volume5mUSD  *float64 // trailing 5 minute volume (nullable)
	Volume60mUSD *float64 // trailing 60 minute volume (nullable)
	Buys5m       *int     // buy transactions, trailing 5 minutes (nullable)
	Sells5m      *int     // sell transactions, trailing 5 minutes (nullable)
	Holders      *int     // holder count estimate (nullable)
	Top10Ratio   *float64 // supply share of top 10 holders (nullable)
	SmartWallets *int     // smart wallets active in the window (nullable)

	BondingComplete *bool // bonding curve completion, launchpad tokens only
	AgeSeconds      int64 // seconds since first seen

	Flags MetricFlags // data-quality annotations
}

// MetricFlags marks which parts of a snapshot are degraded or synthetic.
type MetricFlags struct {
	PriceOnly        bool // price oracle fallback, no pool data
	VirtualLiquidity bool // liquidity synthesized from market cap
	BondingCurve     bool // token still on a bonding curve
	HoldersEstimated bool // holder count derived from largest accounts
	StaleTallies     bool // stream trade tallies older than one cycle
}

// Present reports the fraction of optional fields carrying data, used by
// scoring to keep all-missing rows from outranking real observations.
func (m *TokenMetric) Present() float64 {
	total, present := 8, 0
	for _, ok := range []bool{
		m.MarketCapUSD != nil,
		m.LiquidityUSD != nil,
		m.Volume5mUSD != nil,
		m.Volume60mUSD != nil,
		m.Buys5m != nil,
		m.Sells5m != nil,
		m.Holders != nil,
		m.Top10Ratio != nil,
	} {
		if ok {
			present++
		}
	}
	return float64(present) / float64(total)
}
