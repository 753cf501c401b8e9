package ingestion

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/observability"
	"solana-meme-radar/internal/storage"
)

// DefaultSweepInterval is how often the queue cooldown set and the trade
// book retention window are pruned.
const DefaultSweepInterval = 10 * time.Second

// StreamSource is the push feed the ingestor consumes. *StreamClient
// satisfies it; tests substitute a channel-backed fake.
type StreamSource interface {
	Events() <-chan domain.StreamEvent
	SetSubscriptions(tokens, wallets []string)
	Close() error
}

// Ingestor turns stream events into store writes, trade-book records and
// queued collection work. It owns no goroutines beyond Run.
type Ingestor struct {
	source StreamSource
	queue  *WorkQueue
	book   *TradeBook
	store  *storage.Store
	log    zerolog.Logger

	sweepInterval time.Duration
}

// NewIngestor wires a stream source to the queue, trade book and stores.
// sweepEvery sets the prune cadence for the queue cooldown set and the
// trade book; zero or negative keeps DefaultSweepInterval.
func NewIngestor(source StreamSource, queue *WorkQueue, book *TradeBook, store *storage.Store, sweepEvery time.Duration, log zerolog.Logger) *Ingestor {
	if sweepEvery <= 0 {
		sweepEvery = DefaultSweepInterval
	}
	return &Ingestor{
		source:        source,
		queue:         queue,
		book:          book,
		store:         store,
		log:           log.With().Str("component", "ingestor").Logger(),
		sweepInterval: sweepEvery,
	}
}

// Run consumes events until the context is cancelled or the source
// channel closes. Store errors are logged and skipped; a dropped write
// never stalls the feed.
func (i *Ingestor) Run(ctx context.Context) error {
	ticker := time.NewTicker(i.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-i.source.Events():
			if !ok {
				return nil
			}
			i.handleEvent(ctx, ev)
		case <-ticker.C:
			i.queue.Sweep()
			i.book.Sweep()
		}
	}
}

// UpdateSubscriptions forwards the desired per-token and per-wallet
// trade subscriptions to the stream source.
func (i *Ingestor) UpdateSubscriptions(tokens, wallets []string) {
	i.source.SetSubscriptions(tokens, wallets)
}

func (i *Ingestor) handleEvent(ctx context.Context, ev domain.StreamEvent) {
	switch ev.Type {
	case domain.TxCreate:
		i.handleCreate(ctx, ev)
	case domain.TxBuy, domain.TxSell:
		i.handleTrade(ev)
	case domain.TxMigrate:
		i.handleMigrate(ctx, ev)
	}
}

// handleCreate registers the token, bumps the creator's launch count and
// queues the mint for an immediate metric pass.
func (i *Ingestor) handleCreate(ctx context.Context, ev domain.StreamEvent) {
	token := &domain.Token{
		Mint:         ev.Mint,
		Symbol:       ev.Symbol,
		Name:         ev.Name,
		Source:       domain.SourceStream,
		BondingCurve: domain.IsBondingCurveMint(ev.Mint),
		FirstSeenAt:  ev.TimestampMs,
		UpdatedAt:    ev.TimestampMs,
	}
	if ev.Trader != "" {
		token.Creator = &ev.Trader
	}
	if err := i.store.Tokens.Upsert(ctx, token); err != nil {
		i.log.Error().Err(err).Str("mint", ev.Mint).Msg("token upsert failed")
	}

	if ev.Trader != "" {
		patch := domain.CreatorStatsPatch{LaunchDelta: 1}
		if err := i.store.Creators.ApplyStats(ctx, ev.Trader, patch); err != nil {
			i.log.Error().Err(err).Str("creator", ev.Trader).Msg("creator launch bump failed")
		}
	}

	i.queue.Enqueue(ev.Mint)
}

// handleTrade records the fill and requeues the mint unless it was
// queued within the cooldown window.
func (i *Ingestor) handleTrade(ev domain.StreamEvent) {
	i.book.Record(ev.Mint, TradeRecord{
		Trader:      ev.Trader,
		SolAmount:   ev.SolAmount,
		Buy:         ev.Type == domain.TxBuy,
		TimestampMs: ev.TimestampMs,
	})
	if i.queue.TryEnqueue(ev.Mint) {
		observability.RecordRequeue()
	}
}

// handleMigrate marks the token as graduated and queues a refresh. The
// signer is touched so migration activity shows up in the active set.
func (i *Ingestor) handleMigrate(ctx context.Context, ev domain.StreamEvent) {
	token := &domain.Token{
		Mint:        ev.Mint,
		Source:      domain.SourceStream,
		Migrated:    true,
		FirstSeenAt: ev.TimestampMs,
		UpdatedAt:   ev.TimestampMs,
	}
	if err := i.store.Tokens.Upsert(ctx, token); err != nil {
		i.log.Error().Err(err).Str("mint", ev.Mint).Msg("token upsert failed")
	}

	i.book.Touch(ev.Mint, ev.Trader, ev.TimestampMs)
	i.queue.Enqueue(ev.Mint)
}
