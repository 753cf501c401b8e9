package smartwallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/storage"
)

const (
	// rugLiquidityFloor: liquidity below this after having been real is a
	// pulled pool.
	rugLiquidityFloor = 100.0
	// rugLiquidityWasReal: the pool must have held at least this much for
	// its disappearance to count as a rug rather than a stillbirth.
	rugLiquidityWasReal = 1000.0
	// rugPriceCollapse: price at or below this fraction of the window
	// high is a collapse.
	rugPriceCollapse = 0.05
	// lifespanWindow bounds how much metric history a launch verdict reads.
	lifespanWindow = 24 * time.Hour
)

// CreatorEvaluator re-derives creator launch statistics from stored
// token and metric history.
type CreatorEvaluator struct {
	tokens   storage.TokenStore
	metrics  storage.MetricStore
	creators storage.CreatorStore
	log      zerolog.Logger

	now func() time.Time
}

// NewCreatorEvaluator creates an evaluator over the given stores.
func NewCreatorEvaluator(tokens storage.TokenStore, metrics storage.MetricStore, creators storage.CreatorStore, log zerolog.Logger) *CreatorEvaluator {
	return &CreatorEvaluator{
		tokens:   tokens,
		metrics:  metrics,
		creators: creators,
		log:      log.With().Str("component", "creator_eval").Logger(),
		now:      time.Now,
	}
}

// Risk returns the creator's [0,1] risk and whether it is grounded in
// observed launch history. Unknown creators score the neutral 0.5.
func (e *CreatorEvaluator) Risk(ctx context.Context, creator string) (float64, bool) {
	if creator == "" {
		return 0.5, false
	}
	profile, err := e.creators.GetByAddress(ctx, creator)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			e.log.Warn().Err(err).Str("creator", creator).Msg("creator profile lookup failed")
		}
		return 0.5, false
	}
	return profile.Risk(), profile.TokensLaunched > 0
}

// Evaluate re-scores every launch of the creator against stored metric
// history and patches the profile's rug ratio and average lifespan. The
// launch counter itself is maintained by the ingestor and is not touched
// here.
func (e *CreatorEvaluator) Evaluate(ctx context.Context, creator string) error {
	launches, err := e.tokens.ListByCreator(ctx, creator)
	if err != nil {
		return fmt.Errorf("list launches for %s: %w", creator, err)
	}
	if len(launches) == 0 {
		return nil
	}

	nowMs := e.now().UnixMilli()
	rugs := 0
	lifespanSum, lifespans := 0.0, 0
	for _, tok := range launches {
		history, err := e.metrics.Recent(ctx, tok.Mint, lifespanWindow)
		if err != nil {
			e.log.Debug().Err(err).Str("mint", tok.Mint).Msg("metric history unavailable")
			continue
		}
		rugged, collapseMs := judgeLaunch(history)
		if rugged {
			rugs++
		}

		endMs := nowMs
		if rugged && collapseMs > 0 {
			endMs = collapseMs
		}
		if tok.FirstSeenAt > 0 && endMs > tok.FirstSeenAt {
			lifespanSum += float64(endMs-tok.FirstSeenAt) / float64(time.Hour.Milliseconds())
			lifespans++
		}
	}

	ratio := float64(rugs) / float64(len(launches))
	patch := domain.CreatorStatsPatch{RugRatio: &ratio}
	if lifespans > 0 {
		avg := lifespanSum / float64(lifespans)
		patch.AvgLifespanHours = &avg
	}
	if err := e.creators.ApplyStats(ctx, creator, patch); err != nil {
		return fmt.Errorf("patch creator %s: %w", creator, err)
	}

	e.log.Debug().
		Str("creator", creator).
		Int("launches", len(launches)).
		Int("rugs", rugs).
		Msg("creator history re-evaluated")
	return nil
}

// judgeLaunch inspects one token's metric history (newest first) and
// reports whether it collapsed, plus the earliest collapse timestamp.
// A collapse is liquidity pulled after having been real, or price
// dropping to 5% or less of its prior high. Maxima are tracked along the
// walk so a pool that has not been funded yet is never miscounted.
func judgeLaunch(history []*domain.TokenMetric) (bool, int64) {
	peakPrice, peakLiq := 0.0, 0.0

	// Walk oldest to newest so the first collapse wins.
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if peakLiq >= rugLiquidityWasReal && m.LiquidityUSD != nil && *m.LiquidityUSD < rugLiquidityFloor {
			return true, m.TimestampMs
		}
		if peakPrice > 0 && m.PriceUSD > 0 && m.PriceUSD <= peakPrice*rugPriceCollapse {
			return true, m.TimestampMs
		}
		if m.PriceUSD > peakPrice {
			peakPrice = m.PriceUSD
		}
		if m.LiquidityUSD != nil && *m.LiquidityUSD > peakLiq {
			peakLiq = *m.LiquidityUSD
		}
	}
	return false, 0
}
