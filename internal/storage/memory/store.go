package memory

import "solana-meme-radar/internal/storage"

// NewStore bundles fresh in-memory backends for every concern.
// Used by tests and the -dev flag.
func NewStore() *storage.Store {
	return &storage.Store{
		Tokens:   NewTokenStore(),
		Metrics:  NewMetricStore(),
		Scores:   NewScoreStore(),
		Signals:  NewSignalStore(),
		Wallets:  NewWalletStore(),
		Creators: NewCreatorStore(),
	}
}
