package solana

import "context"

// Client defines the chain RPC surface used by collectors and wallet profilers.
type Client interface {
	// GetTokenLargestAccounts retrieves the 20 largest holders of a mint.
	GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenAccountBalance, error)

	// GetTokenSupply retrieves the total supply of a mint.
	GetTokenSupply(ctx context.Context, mint string) (*TokenAmount, error)

	// GetAsset retrieves token metadata through the DAS getAsset method.
	GetAsset(ctx context.Context, mint string) (*Asset, error)

	// GetAccountInfo retrieves raw account data by public key.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetSignaturesForAddress retrieves signatures for an address with pagination.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)

	// GetTransaction retrieves a transaction by signature.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (int64, error)
}

// Transaction represents a Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata. Balance slices are indexed
// by the account's position in Message.AccountKeys.
type TransactionMeta struct {
	Err               interface{}
	Fee               uint64
	PreBalances       []uint64 // lamports
	PostBalances      []uint64 // lamports
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
	LogMessages       []string
}

// TransactionMessage contains parsed transaction message.
type TransactionMessage struct {
	AccountKeys []string
}

// TokenBalance is a token account balance snapshot inside transaction meta.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       TokenAmount
}
