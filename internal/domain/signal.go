package domain

// Signal represents an emitted instability signal.
// Corresponds to signals table in PostgreSQL.
type Signal struct {
	SignalID  string // PRIMARY KEY, uuid
	Mint      string // token mint address
	EmittedAt int64  // Unix timestamp in milliseconds

	Instability float64 // instability index at emission
	Confidence  float64 // posterior confidence [0.01, 0.99]
	Size        float64 // suggested position fraction [0,1]

	EntryPrice float64 // price at emission
	StopLoss   float64 // entry * stop multiplier
	TakeProfit float64 // entry * take-profit multiplier

	LiquidityUSD *float64 // pool liquidity at emission (nullable)
	MarketCapUSD *float64 // market cap at emission (nullable)
	InsiderPSI   *float64 // insider probability, nil when unverified
	CreatorRisk  *float64 // creator rug ratio, nil when unknown

	Regime  Regime   // batch regime at emission
	Reasons []string // gate annotations (virtual_liquidity, degen_boost, ...)
	Summary *string  // optional one-line human summary

	Features FeatureVector // feature snapshot for audit
}
