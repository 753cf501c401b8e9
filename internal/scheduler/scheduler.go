// Package scheduler drives the scan loop. Every interval it assembles a
// cycle batch from the work queue and the fresh-token probe, fans the
// batch out to the collector under a cycle deadline, scores the joined
// rows cross-sectionally and walks each one through the gate cascade.
package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"solana-meme-radar/internal/collector"
	"solana-meme-radar/internal/config"
	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/ingestion"
	"solana-meme-radar/internal/notify"
	"solana-meme-radar/internal/observability"
	"solana-meme-radar/internal/scoring"
	"solana-meme-radar/internal/signals"
	"solana-meme-radar/internal/smartwallet"
	"solana-meme-radar/internal/storage"
)

const (
	// freshTokenWindow is the probe horizon: tokens first seen longer ago
	// drop off the radar unless the stream requeues them.
	freshTokenWindow = time.Hour

	// rotationWindow bounds the wallet-activity lookback feeding smart
	// rotation and the global active set.
	rotationWindow = 5 * time.Minute

	// bulkRetryDelay backs off the single metric-write retry.
	bulkRetryDelay = 250 * time.Millisecond
)

// MetricCollector builds one market snapshot per token per cycle.
type MetricCollector interface {
	Collect(ctx context.Context, tok *domain.Token) (*collector.Snapshot, error)
}

// Decider runs one scored row through the gate cascade.
type Decider interface {
	Decide(ctx context.Context, cand *signals.Candidate) (*signals.Verdict, error)
}

// SmartSource serves the current smart-wallet snapshot and rebuilds it on
// demand.
type SmartSource interface {
	Snapshot() *smartwallet.Snapshot
	Refresh(ctx context.Context, addresses []string) (*smartwallet.Snapshot, error)
}

// CreatorSource reports a creator's historical rug ratio and whether the
// history is known, and re-derives it from stored launches on demand.
type CreatorSource interface {
	Risk(ctx context.Context, creator string) (float64, bool)
	Evaluate(ctx context.Context, creator string) error
}

// SubscriptionSink receives the token and wallet sets the stream should
// follow after a profile refresh. Implemented by the ingestor.
type SubscriptionSink interface {
	UpdateSubscriptions(tokens, wallets []string)
}

// Options wires a Scheduler.
type Options struct {
	Store     *storage.Store
	Archive   storage.MetricStore // optional metric mirror, may be nil
	Queue     *ingestion.WorkQueue
	Book      *ingestion.TradeBook
	Collector MetricCollector
	Engine    *scoring.Engine
	Cascade   Decider
	Smart     SmartSource
	Creators  CreatorSource
	Notifier  notify.Notifier
	Subs      SubscriptionSink // optional

	Scan    config.ScanConfig
	Wallets config.WalletConfig

	// MetricWindow bounds the per-token history fetched for features and
	// the pattern gate.
	MetricWindow time.Duration

	Log zerolog.Logger
}

// Scheduler owns cycle state: the cycle counter for the profile-refresh
// cadence. Everything else it touches is owned elsewhere.
type Scheduler struct {
	store     *storage.Store
	archive   storage.MetricStore
	queue     *ingestion.WorkQueue
	book      *ingestion.TradeBook
	collector MetricCollector
	engine    *scoring.Engine
	cascade   Decider
	smart     SmartSource
	creators  CreatorSource
	notifier  notify.Notifier
	subs      SubscriptionSink

	scan         config.ScanConfig
	wallets      config.WalletConfig
	metricWindow time.Duration

	log    zerolog.Logger
	now    func() time.Time
	cycles uint64
}

// New creates a scheduler from the wired options.
func New(opts Options) *Scheduler {
	return &Scheduler{
		store:        opts.Store,
		archive:      opts.Archive,
		queue:        opts.Queue,
		book:         opts.Book,
		collector:    opts.Collector,
		engine:       opts.Engine,
		cascade:      opts.Cascade,
		smart:        opts.Smart,
		creators:     opts.Creators,
		notifier:     opts.Notifier,
		subs:         opts.Subs,
		scan:         opts.Scan,
		wallets:      opts.Wallets,
		metricWindow: opts.MetricWindow,
		log:          opts.Log.With().Str("component", "scheduler").Logger(),
		now:          time.Now,
	}
}

// Run scans immediately, then once per interval until the context ends.
// An in-flight cycle finishes within its own deadline; cancellation cuts
// it short at the next suspension point.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().
		Dur("interval", s.scan.Interval).
		Int("fanout", s.scan.Fanout).
		Int("batch_max", s.scan.BatchMax).
		Msg("scheduler started")

	ticker := time.NewTicker(s.scan.Interval)
	defer ticker.Stop()

	s.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// refreshProfiles is the periodic maintenance pass: rebuild wallet
// profiles, then re-score the creators behind the active token set.
func (s *Scheduler) refreshProfiles(ctx context.Context) {
	s.refreshSmart(ctx)
	s.refreshCreators(ctx)
}

// refreshSmart rebuilds wallet profiles from the wallets recently active
// on the stream, then publishes the refreshed smart set and the
// tracked-token list to the stream subscriber.
func (s *Scheduler) refreshSmart(ctx context.Context) {
	addresses := s.globalActive()
	if max := s.wallets.MaxTracked; max > 0 && len(addresses) > max {
		addresses = addresses[:max]
	}

	if _, err := s.smart.Refresh(ctx, addresses); err != nil {
		s.log.Warn().Err(err).Int("wallets", len(addresses)).Msg("profile refresh failed")
		return
	}
	observability.RecordProfileRefresh()

	if s.subs == nil {
		return
	}
	profiles, err := s.store.Wallets.ListSmart(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("smart set lookup failed")
		return
	}
	smart := make([]string, 0, len(profiles))
	for _, p := range profiles {
		smart = append(smart, p.Address)
	}
	s.subs.UpdateSubscriptions(s.book.TrackedMints(), smart)
	s.log.Info().Int("profiled", len(addresses)).Int("smart", len(smart)).Msg("smart set published")
}

// refreshCreators re-derives rug ratio and lifespan for each distinct
// creator of the active token set, so the confidence gate's creator
// factor tracks what the stored metric history shows. Best effort per
// creator.
func (s *Scheduler) refreshCreators(ctx context.Context) {
	tokens, err := s.store.Tokens.ListActive(ctx, freshTokenWindow)
	if err != nil {
		s.log.Warn().Err(err).Msg("active token listing failed")
		return
	}

	seen := make(map[string]bool)
	evaluated := 0
	for _, tok := range tokens {
		if ctx.Err() != nil {
			return
		}
		if tok.Creator == nil || *tok.Creator == "" || seen[*tok.Creator] {
			continue
		}
		seen[*tok.Creator] = true
		if err := s.creators.Evaluate(ctx, *tok.Creator); err != nil {
			s.log.Debug().Err(err).Str("creator", *tok.Creator).Msg("creator re-evaluation failed")
			continue
		}
		evaluated++
	}
	if evaluated > 0 {
		s.log.Debug().Int("creators", evaluated).Msg("creator histories re-scored")
	}
}

// globalActive is the union of wallets recently active on any tracked
// mint, the denominator population for smart rotation. Sorted so the
// MaxTracked truncation is stable.
func (s *Scheduler) globalActive() []string {
	seen := make(map[string]bool)
	var out []string
	for _, mint := range s.book.TrackedMints() {
		for _, w := range s.book.ActiveWallets(mint, rotationWindow) {
			if seen[w] {
				continue
			}
			seen[w] = true
			out = append(out, w)
		}
	}
	sort.Strings(out)
	return out
}
