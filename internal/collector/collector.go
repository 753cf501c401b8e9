// Package collector composes per-token market snapshots from the pair
// aggregator, the price oracle, the launchpad curve API, chain RPC, and
// the stream trade book. Every upstream call runs behind its own timeout;
// a failed call degrades the snapshot and sets a flag instead of aborting
// the cycle. Collection fails only when no source produced a price.
package collector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"solana-meme-radar/internal/config"
	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/ingestion"
	"solana-meme-radar/internal/market"
	"solana-meme-radar/internal/observability"
	"solana-meme-radar/internal/solana"
)

const (
	// tallyWindow is the trailing window stream tallies cover, matching the
	// aggregator's 5 minute buckets.
	tallyWindow = 5 * time.Minute

	// virtualLiqFloor is the aggregator liquidity below which a bonding
	// token's pool entry is treated as dust and replaced with synthetic
	// liquidity derived from market cap.
	virtualLiqFloor = 100.0

	// chainBuyerMaxAge bounds chain-side buyer reconstruction to tokens
	// young enough for insider analysis to matter. Older tokens rely on
	// stream data alone.
	chainBuyerMaxAge = 20 * time.Minute

	// buyerSignatureLimit caps getSignaturesForAddress when reconstructing
	// recent buyers from chain history.
	buyerSignatureLimit = 20
)

const lamportsPerSol = 1e9

// TradeFeed is the stream-fed rolling trade view the collector merges with
// aggregator data. *ingestion.TradeBook satisfies it.
type TradeFeed interface {
	Tally(mint string, window time.Duration) ingestion.Tally
	BuyerShares(mint string, window time.Duration) map[string]float64
	ActiveWallets(mint string, window time.Duration) []string
	Buys(mint string, window time.Duration) []ingestion.TradeRecord
}

// Snapshot is the result of one collection pass over a token: the metric
// row plus the context the scoring stages consume alongside it.
type Snapshot struct {
	Metric *domain.TokenMetric

	// Token is a copy of the input token with any newly discovered
	// identity and authority fields filled in, ready to upsert.
	Token *domain.Token

	// PairCreatedMs is the pool creation time reported by the aggregator,
	// 0 when no pool is listed yet.
	PairCreatedMs int64

	// Buyers are recent buys attached for insider analysis, stream-first
	// with a chain fallback for young tokens.
	Buyers []ingestion.TradeRecord

	// BuyerShares feeds volume concentration; ActiveWallets feeds
	// smart-wallet rotation. Both come from the stream book.
	BuyerShares   map[string]float64
	ActiveWallets []string
}

// Sources groups the collector's upstream clients.
type Sources struct {
	Pairs  market.PairSource
	Oracle market.PriceSource
	Curve  market.CurveSource
	Sol    *market.SolPricer
	Chain  solana.Client
	Book   TradeFeed
}

// Collector builds one TokenMetric per mint per cycle.
type Collector struct {
	src Sources
	cfg config.CollectorConfig

	// staleAfter is the scan interval; stream tallies with no trade inside
	// it describe a past window and are flagged stale.
	staleAfter time.Duration

	log zerolog.Logger
	now func() time.Time
}

// New wires a collector over the given sources.
func New(src Sources, cfg config.CollectorConfig, staleAfter time.Duration, log zerolog.Logger) *Collector {
	return &Collector{
		src:        src,
		cfg:        cfg,
		staleAfter: staleAfter,
		log:        log.With().Str("component", "collector").Logger(),
		now:        time.Now,
	}
}

// Collect builds one metric snapshot for the token. Upstream failures
// degrade the snapshot and set flags; the only error cases are a dead
// context and no source answering with a price.
func (c *Collector) Collect(ctx context.Context, tok *domain.Token) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	started := c.now()
	nowMs := started.UnixMilli()

	cp := *tok
	snap := &Snapshot{
		Token: &cp,
		Metric: &domain.TokenMetric{
			Mint:        tok.Mint,
			TimestampMs: nowMs,
		},
	}
	if tok.FirstSeenAt > 0 && tok.FirstSeenAt < nowMs {
		snap.Metric.AgeSeconds = (nowMs - tok.FirstSeenAt) / 1000
	}

	bonding := (cp.BondingCurve || domain.IsBondingCurveMint(cp.Mint)) && !cp.Migrated
	if bonding {
		snap.Metric.Flags.BondingCurve = true
	}

	c.fromPairs(ctx, snap)
	if bonding {
		c.fromCurve(ctx, snap)
	}
	if snap.Metric.PriceUSD <= 0 {
		c.fromOracle(ctx, snap)
	}

	if snap.Metric.PriceUSD <= 0 {
		observability.RecordCollection("failed", c.now().Sub(started).Seconds())
		return nil, fmt.Errorf("collect %s: no price source answered", tok.Mint)
	}

	c.applyVirtualLiquidity(snap)
	c.applyConcentration(ctx, snap, bonding)
	c.applyIdentity(ctx, snap)
	c.applyAuthorities(ctx, snap)
	c.applyTallies(ctx, snap)
	c.applyBuyers(ctx, snap)

	outcome := "full"
	if f := snap.Metric.Flags; f.PriceOnly || f.VirtualLiquidity || f.HoldersEstimated || f.StaleTallies {
		outcome = "partial"
	}
	observability.RecordCollection(outcome, c.now().Sub(started).Seconds())
	recordFlags(snap.Metric.Flags)

	return snap, nil
}

// fromPairs fills pool-derived fields from the most liquid pair. All pool
// fields become concrete once a pool is indexed, zeros included: a listed
// pool with no volume is an observation, not a gap.
func (c *Collector) fromPairs(ctx context.Context, snap *Snapshot) {
	tctx, cancel := c.callCtx(ctx)
	defer cancel()

	pair, err := c.src.Pairs.BestPair(tctx, snap.Token.Mint)
	if err != nil {
		if !errors.Is(err, market.ErrNoPairs) {
			c.log.Debug().Err(err).Str("mint", snap.Token.Mint).Msg("pair aggregator unavailable")
		}
		return
	}

	m := snap.Metric
	m.PriceUSD = pair.PriceUsd
	snap.PairCreatedMs = pair.CreatedAtMs

	if pair.LiquidityUsd > 0 {
		m.LiquidityUSD = fptr(pair.LiquidityUsd)
	}
	if mcap := pair.MarketCap; mcap > 0 {
		m.MarketCapUSD = fptr(mcap)
	} else if pair.FDV > 0 {
		m.MarketCapUSD = fptr(pair.FDV)
	}

	m.Volume5mUSD = fptr(pair.Volume5m)
	m.Volume60mUSD = fptr(pair.Volume1h)
	m.Buys5m = iptr(pair.Buys5m)
	m.Sells5m = iptr(pair.Sells5m)
}

// fromCurve fills launchpad state for bonding-curve mints: completion,
// migration, identity, and a reserve-implied price when no pool answered.
func (c *Collector) fromCurve(ctx context.Context, snap *Snapshot) {
	tctx, cancel := c.callCtx(ctx)
	defer cancel()

	state, err := c.src.Curve.State(tctx, snap.Token.Mint)
	if err != nil {
		if !errors.Is(err, market.ErrNoCurve) {
			c.log.Debug().Err(err).Str("mint", snap.Token.Mint).Msg("curve api unavailable")
		}
		return
	}

	m, tok := snap.Metric, snap.Token
	complete := state.Complete
	m.BondingComplete = &complete
	if state.RaydiumPool != "" {
		tok.Migrated = true
	}

	if tok.Symbol == nil && state.Symbol != "" {
		tok.Symbol = sptr(state.Symbol)
	}
	if tok.Name == nil && state.Name != "" {
		tok.Name = sptr(state.Name)
	}
	if tok.Creator == nil && state.Creator != "" {
		tok.Creator = sptr(state.Creator)
	}

	if m.MarketCapUSD == nil && state.MarketCapUsd > 0 {
		m.MarketCapUSD = fptr(state.MarketCapUsd)
	}

	if m.PriceUSD <= 0 {
		solUsd, err := c.solUsd(ctx)
		if err != nil {
			c.log.Debug().Err(err).Msg("sol price unavailable for curve conversion")
			return
		}
		m.PriceUSD = state.PriceSol() * solUsd
	}
}

// fromOracle is the last-resort price source. The metric is flagged
// priceOnly when the oracle answers and no pool data exists.
func (c *Collector) fromOracle(ctx context.Context, snap *Snapshot) {
	tctx, cancel := c.callCtx(ctx)
	defer cancel()

	price, err := c.src.Oracle.Price(tctx, snap.Token.Mint)
	if err != nil {
		if !errors.Is(err, market.ErrNoPrice) {
			c.log.Debug().Err(err).Str("mint", snap.Token.Mint).Msg("price oracle unavailable")
		}
		return
	}

	snap.Metric.PriceUSD = price
	snap.Metric.Flags.PriceOnly = snap.Metric.LiquidityUSD == nil
}

// applyVirtualLiquidity synthesizes liquidity for bonding-curve tokens the
// aggregator has not indexed yet. Curve reserves back roughly a fifth of
// market cap, capped so dust-cap tokens do not look deep.
func (c *Collector) applyVirtualLiquidity(snap *Snapshot) {
	m := snap.Metric
	if !m.Flags.BondingCurve || m.MarketCapUSD == nil || *m.MarketCapUSD <= 0 {
		return
	}
	if m.LiquidityUSD != nil && *m.LiquidityUSD >= virtualLiqFloor {
		return
	}

	liq := math.Min(c.cfg.VirtualLiqRatio**m.MarketCapUSD, c.cfg.VirtualLiqCap)
	m.LiquidityUSD = &liq
	m.Flags.VirtualLiquidity = true
}

// applyTallies merges stream tallies into the metric. The aggregator's
// buckets win once a pool is indexed, but indexing lags new pools, so
// whichever side saw more of the trailing window is taken as current.
func (c *Collector) applyTallies(ctx context.Context, snap *Snapshot) {
	m := snap.Metric
	snap.BuyerShares = c.src.Book.BuyerShares(m.Mint, tallyWindow)
	snap.ActiveWallets = c.src.Book.ActiveWallets(m.Mint, tallyWindow)

	t := c.src.Book.Tally(m.Mint, tallyWindow)
	streamTotal := t.Buys + t.Sells
	if streamTotal == 0 {
		return
	}

	aggTotal := 0
	if m.Buys5m != nil {
		aggTotal += *m.Buys5m
	}
	if m.Sells5m != nil {
		aggTotal += *m.Sells5m
	}
	if streamTotal <= aggTotal {
		return
	}

	m.Buys5m = iptr(t.Buys)
	m.Sells5m = iptr(t.Sells)
	if recent := c.src.Book.Tally(m.Mint, c.staleAfter); recent.Buys+recent.Sells == 0 {
		m.Flags.StaleTallies = true
	}

	if m.Volume5mUSD == nil {
		solUsd, err := c.solUsd(ctx)
		if err != nil {
			c.log.Debug().Err(err).Msg("sol price unavailable for tally conversion")
			return
		}
		m.Volume5mUSD = fptr((t.BuyVolumeSol + t.SellVolumeSol) * solUsd)
	}
}

// applyBuyers attaches recent buys for insider analysis: the stream book
// when it has them, chain history for young tokens the stream missed.
func (c *Collector) applyBuyers(ctx context.Context, snap *Snapshot) {
	if buys := c.src.Book.Buys(snap.Metric.Mint, tallyWindow); len(buys) > 0 {
		snap.Buyers = buys
		return
	}
	if snap.Metric.AgeSeconds > int64(chainBuyerMaxAge.Seconds()) {
		return
	}
	snap.Buyers = c.chainBuyers(ctx, snap.Metric.Mint)
}

func (c *Collector) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.cfg.CallTimeout)
}

func (c *Collector) solUsd(ctx context.Context) (float64, error) {
	tctx, cancel := c.callCtx(ctx)
	defer cancel()
	return c.src.Sol.SolUsd(tctx)
}

func recordFlags(f domain.MetricFlags) {
	for flag, set := range map[string]bool{
		"price_only":        f.PriceOnly,
		"virtual_liquidity": f.VirtualLiquidity,
		"holders_estimated": f.HoldersEstimated,
		"stale_tallies":     f.StaleTallies,
	} {
		if set {
			observability.RecordPartialMetric(flag)
		}
	}
}

func fptr(v float64) *float64 { return &v }

func iptr(v int) *int { return &v }

func sptr(v string) *string { return &v }
