package domain

// TxType represents the event kind pushed by the stream source.
type TxType string

const (
	TxCreate  TxType = "create"
	TxBuy     TxType = "buy"
	TxSell    TxType = "sell"
	TxMigrate TxType = "migrate"
)

// String returns the string representation of TxType.
func (t TxType) String() string {
	return string(t)
}

// IsValid checks if the tx type is a valid value.
func (t TxType) IsValid() bool {
	switch t {
	case TxCreate, TxBuy, TxSell, TxMigrate:
		return true
	}
	return false
}

// StreamEvent represents one decoded push event from the stream source.
// Events arrive pre-parsed; unknown tx types are counted and dropped
// before this struct is built.
type StreamEvent struct {
	Type        TxType  // create | buy | sell | migrate
	Signature   string  // transaction signature
	Mint        string  // token mint address
	Trader      string  // wallet that signed the transaction
	Name        *string // token name, create events only (nullable)
	Symbol      *string // token symbol, create events only (nullable)
	SolAmount   float64 // SOL moved in the trade, 0 for creates
	TimestampMs int64   // receive timestamp (ms)
}
