package domain

// WalletClass represents the behavioral cluster a wallet was assigned to.
// Clusters are ordered by average ROI: retail < sniper < insider. The two
// bookkeeping labels are set directly by the collector, never by clustering:
// NEW marks a wallet seen before its first profiling pass, HIGH_VOLUME_NOISE
// marks bots whose trade count dwarfs their win rate.
type WalletClass string

const (
	WalletRetail          WalletClass = "RETAIL"
	WalletSniper          WalletClass = "SNIPER"
	WalletInsider         WalletClass = "INSIDER"
	WalletNew             WalletClass = "NEW"
	WalletHighVolumeNoise WalletClass = "HIGH_VOLUME_NOISE"
)

// String returns the string representation of WalletClass.
func (c WalletClass) String() string {
	return string(c)
}

// IsValid checks if the wallet class is a valid value.
func (c WalletClass) IsValid() bool {
	switch c {
	case WalletRetail, WalletSniper, WalletInsider, WalletNew, WalletHighVolumeNoise:
		return true
	}
	return false
}

// WalletProfile represents aggregated trading behavior of one wallet.
// Corresponds to wallet_profiles table in PostgreSQL.
type WalletProfile struct {
	Address      string      // PRIMARY KEY, base58 wallet address
	AvgROI       float64     // mean per-position return multiple
	TotalTrades  int         // closed and open positions observed
	WinRate      float64     // profitable closes / closes [0,1]
	Class        WalletClass // cluster or bookkeeping label
	Smart        bool        // passes the smart predicate
	Verified     bool        // profiled from fetched history, not a placeholder
	LastActiveMs int64       // last observed trade timestamp (ms)
	RefreshedAt  int64       // last profiling timestamp (ms)
}

// WalletTrade represents one reconstructed position event of a wallet:
// a signed SOL delta paired with a non-SOL token transfer.
type WalletTrade struct {
	Wallet      string  // wallet address
	Mint        string  // token traded
	SolDelta    float64 // negative = buy (SOL out), positive = sell (SOL in)
	TimestampMs int64   // transaction block time (ms)
	Signature   string  // transaction signature
}

// IsBuy reports whether the trade spent SOL to acquire the token.
func (t *WalletTrade) IsBuy() bool {
	return t.SolDelta < 0
}
