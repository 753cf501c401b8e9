package domain

// Regime represents the market mode detected for a scan batch.
type Regime string

const (
	RegimeStable Regime = "STABLE"
	RegimeDegen  Regime = "DEGEN"
)

// String returns the string representation of Regime.
func (r Regime) String() string {
	return string(r)
}

// IsValid checks if the regime is a valid value.
func (r Regime) IsValid() bool {
	return r == RegimeStable || r == RegimeDegen
}

// ScoredRow represents one token after cross-sectional scoring.
type ScoredRow struct {
	Mint        string // token mint address
	TimestampMs int64  // scoring timestamp (ms)

	Features FeatureVector // inputs the score was computed from
	Metric   TokenMetric   // snapshot the features were computed from

	ZScores          map[string]float64 // robust z per feature column
	Instability      float64            // weighted instability index
	DeltaInstability float64            // change since previous cycle, 0 on first sight
	Regime           Regime             // batch regime at scoring time
}

// InstabilityPoint is the latest persisted score of one token inside a
// lookback window, denormalized with the market snapshot it was scored
// against so dashboards and warm starts avoid a metrics join.
type InstabilityPoint struct {
	Mint         string
	Instability  float64
	PriceUSD     float64
	MarketCapUSD *float64
	LiquidityUSD *float64
	Holders      *int
	Top10Ratio   *float64
	TimestampMs  int64
}
