package storage

import (
	"context"
	"time"

	"solana-meme-radar/internal/domain"
)

// TokenStore provides access to tokens storage.
type TokenStore interface {
	// Upsert inserts the token or refreshes its mutable fields. Idempotent
	// on mint; replays never error.
	Upsert(ctx context.Context, t *domain.Token) error

	// GetByMint retrieves a token by mint. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mint string) (*domain.Token, error)

	// ListActive retrieves tokens first seen within the window, newest first.
	ListActive(ctx context.Context, window time.Duration) ([]*domain.Token, error)

	// ListByCreator retrieves every token launched by the creator, newest
	// first. Used when re-evaluating creator history.
	ListByCreator(ctx context.Context, creator string) ([]*domain.Token, error)
}

// MetricStore provides access to token_metrics storage. Rows are
// append-only; there are no updates or deletes.
type MetricStore interface {
	// Insert appends one snapshot.
	Insert(ctx context.Context, m *domain.TokenMetric) error

	// InsertBulk appends multiple snapshots atomically.
	InsertBulk(ctx context.Context, ms []*domain.TokenMetric) error

	// Recent retrieves snapshots for a mint within the window, newest first.
	Recent(ctx context.Context, mint string, window time.Duration) ([]*domain.TokenMetric, error)
}

// ScoreStore provides access to instability_scores storage.
type ScoreStore interface {
	// Insert appends one scored row.
	Insert(ctx context.Context, r *domain.ScoredRow) error

	// LatestAll retrieves the most recent score per token within the
	// window, one row per mint.
	LatestAll(ctx context.Context, window time.Duration) ([]*domain.InstabilityPoint, error)
}

// SignalStore provides access to signals storage.
type SignalStore interface {
	// Insert adds a new signal. Returns ErrDuplicateKey if signal_id exists.
	Insert(ctx context.Context, s *domain.Signal) error

	// HasRecent reports whether any signal for the mint was emitted within
	// the window ending now.
	HasRecent(ctx context.Context, mint string, window time.Duration) (bool, error)

	// ListRecent retrieves signals emitted within the window, newest first.
	ListRecent(ctx context.Context, window time.Duration) ([]*domain.Signal, error)
}

// WalletStore provides access to wallet_profiles storage.
type WalletStore interface {
	// Upsert inserts the profile or replaces its stats. Idempotent on address.
	Upsert(ctx context.Context, p *domain.WalletProfile) error

	// GetByAddress retrieves a profile. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.WalletProfile, error)

	// ListSmart retrieves all profiles currently flagged smart.
	ListSmart(ctx context.Context) ([]*domain.WalletProfile, error)

	// ListVerified retrieves all profiles built from fetched history.
	// This is the clustering population.
	ListVerified(ctx context.Context) ([]*domain.WalletProfile, error)
}

// CreatorStore provides access to creator_profiles storage.
type CreatorStore interface {
	// Upsert inserts the profile or replaces its stats. Idempotent on address.
	Upsert(ctx context.Context, p *domain.CreatorProfile) error

	// ApplyStats patches an existing profile in place, inserting a blank
	// one first if the creator is new. Nil patch fields are kept.
	ApplyStats(ctx context.Context, address string, patch domain.CreatorStatsPatch) error

	// GetByAddress retrieves a profile. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.CreatorProfile, error)
}

// Store bundles every backend the pipeline persists through.
type Store struct {
	Tokens   TokenStore
	Metrics  MetricStore
	Scores   ScoreStore
	Signals  SignalStore
	Wallets  WalletStore
	Creators CreatorStore
}
