package domain

// FeatureVector represents the derived behavioral features of one token
// at one scan cycle. All values are finite; missing inputs map to each
// feature's neutral value rather than NaN.
type FeatureVector struct {
	Mint        string // token mint address
	TimestampMs int64  // computation timestamp (ms)

	HolderAccel     float64 // holder count second difference over 10m steps, clipped [-10,10]
	StealthAccum    float64 // buyers * buy dominance * price stability, >= 0
	VolatilityShift float64 // 5m / 20m return stddev ratio, clipped [0,20]
	SellPressure    float64 // sells / (buys+sells+1) [0,1)
	LiquidityAccel  float64 // change of liquidity growth rate, clipped [-10,10]
	VolumeHHI       float64 // trader volume concentration [0,1]
	DipRecovery     float64 // price position in window range [0,1], 0.5 when flat
	VolumeIntensity float64 // vol5m / (liquidity+1), >= 0
	Momentum        float64 // short-horizon return blend [0,1]
	TrendQuality    float64 // trend structure + up ratio + efficiency [0,1]
	VolumeQuality   float64 // organic volume heuristic [0,1]

	SmartWalletRatio float64 // active smart buyers / global active smart
	WeightedSWR      float64 // ROI and win-rate weighted variant
	InsiderPSI       float64 // pre-signal insider probability [0,1]

	DataPresence float64 // fraction of optional metric fields present [0,1]
}
