package solana

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       interface{}
}

// SignaturesOpts defines optional pagination parameters for getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // Start searching backwards from this signature
	Until  string // Search until this signature
	Limit  int    // Maximum number of signatures to return
}

// TokenAccountBalance is one entry from getTokenLargestAccounts.
type TokenAccountBalance struct {
	Address  string
	Amount   string // raw integer amount as returned by the node
	Decimals int
	UIAmount float64
}

// TokenAmount is a u64 token quantity with its display decimals.
type TokenAmount struct {
	Amount   string // raw integer amount as returned by the node
	Decimals int
	UIAmount float64
}

// Asset holds token metadata returned by the DAS getAsset method.
type Asset struct {
	ID      string
	Name    string
	Symbol  string
	Creator string // first verified creator, falling back to the update authority
}
