package smartwallet

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-meme-radar/internal/config"
	"solana-meme-radar/internal/observability"
	"solana-meme-radar/internal/storage"
)

// Refresher periodically rebuilds wallet profiles, reclusters the
// verified population, and publishes immutable smart-set snapshots for
// the scoring path.
type Refresher struct {
	profiler *Profiler
	wallets  storage.WalletStore
	cfg      config.WalletConfig
	log      zerolog.Logger

	now func() time.Time

	mu   sync.RWMutex
	snap *Snapshot
}

// NewRefresher creates a refresher that starts with an empty snapshot.
func NewRefresher(profiler *Profiler, wallets storage.WalletStore, cfg config.WalletConfig, log zerolog.Logger) *Refresher {
	return &Refresher{
		profiler: profiler,
		wallets:  wallets,
		cfg:      cfg,
		log:      log.With().Str("component", "wallet_refresh").Logger(),
		now:      time.Now,
		snap:     EmptySnapshot(),
	}
}

// Snapshot returns the currently published smart-set view. Never nil.
func (r *Refresher) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Refresh profiles the given wallets, reclusters everything verified in
// the store, and publishes a new snapshot. Per-wallet failures are
// logged and skipped; the refresh only fails when the store itself does.
func (r *Refresher) Refresh(ctx context.Context, addresses []string) (*Snapshot, error) {
	started := r.now()

	seen := make(map[string]struct{}, len(addresses))
	profiled, failed := 0, 0
	for _, addr := range addresses {
		if _, dup := seen[addr]; dup || addr == "" {
			continue
		}
		seen[addr] = struct{}{}
		if len(seen) > r.cfg.MaxTracked {
			r.log.Warn().Int("max_tracked", r.cfg.MaxTracked).Msg("wallet refresh truncated")
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		profile, err := r.profiler.Profile(ctx, addr)
		if err != nil {
			failed++
			r.log.Debug().Err(err).Str("wallet", addr).Msg("profiling failed")
			continue
		}
		if err := r.wallets.Upsert(ctx, profile); err != nil {
			return nil, err
		}
		profiled++
	}

	population, err := r.wallets.ListVerified(ctx)
	if err != nil {
		return nil, err
	}

	Cluster(population)
	for _, p := range population {
		p.Smart = IsSmart(p, r.cfg)
		if err := r.wallets.Upsert(ctx, p); err != nil {
			return nil, err
		}
	}

	snap := NewSnapshot(population, r.now().UnixMilli())
	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()

	observability.RecordProfileRefresh()

	r.log.Info().
		Int("profiled", profiled).
		Int("failed", failed).
		Int("population", len(population)).
		Int("smart", snap.Size()).
		Dur("took", r.now().Sub(started)).
		Msg("smart set refreshed")
	return snap, nil
}
