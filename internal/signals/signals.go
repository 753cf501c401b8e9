// Package signals turns scored rows into emitted trade signals through a
// strict gate cascade: trigger, safety, dedup, confidence, sizing, quality.
// Every rejection is terminal for the cycle, carries a reason code, and
// increments a labelled counter; accepted candidates are persisted before
// the verdict returns, so the dedup contract holds across cycles.
package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"solana-meme-radar/internal/candles"
	"solana-meme-radar/internal/config"
	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/observability"
	"solana-meme-radar/internal/storage"
)

// Stage names label rejection counters and debug logs.
const (
	StageTrigger    = "trigger"
	StageSafety     = "safety"
	StageDedup      = "dedup"
	StageConfidence = "confidence"
	StageSizing     = "sizing"
	StageQuality    = "quality"
)

// Rejection reason codes.
const (
	ReasonBelowThreshold = "below_threshold"
	ReasonSharpFalling   = "sharp_falling_instability"
	ReasonVolBlowout     = "volatility_blowout"
	ReasonLowLiquidity   = "low_liquidity"
	ReasonDustMcap       = "MCap too low"
	ReasonMcapCeiling    = "MCap too large"
	ReasonWeakPattern    = "weak_pattern"
	ReasonAuthorityLive  = "authority_live"
	ReasonConcentration  = "concentration"
	ReasonDispersion     = "dispersion_unknown"
	ReasonFewHolders     = "few_holders"
	ReasonInsiderRisk    = "insider_risk"
	ReasonCreatorRisk    = "creator_risk"
	ReasonAlreadyPumped  = "already_pumped"
	ReasonDuplicate      = "dup"
	ReasonLowConfidence  = "low_confidence"
	ReasonSizeNegligible = "size_negligible"
	ReasonQuality        = "quality"
)

// Candidate is one scored token entering the cascade, with everything the
// stages read alongside the score. Token must be non-nil.
type Candidate struct {
	Row   *domain.ScoredRow
	Token *domain.Token

	// History is the token's recent metric window, newest first. It backs
	// the candle-pattern check and the pump guard.
	History []*domain.TokenMetric

	// Threshold is the batch signal threshold at scoring time.
	Threshold float64

	InsiderPSI      float64
	InsiderVerified bool
	CreatorRisk     float64
	CreatorKnown    bool
}

// Verdict is the cascade outcome for one candidate: either an emitted
// signal or the first rejection with its stage and reason.
type Verdict struct {
	Accepted bool
	Stage    string
	Reason   string
	Signal   *domain.Signal
}

// Cascade runs the gate pipeline over scored rows.
type Cascade struct {
	signals storage.SignalStore
	candle  *candles.Gate

	gates  config.GateConfig
	safety config.SafetyConfig

	log zerolog.Logger
	now func() time.Time
}

// NewCascade wires the gate pipeline.
func NewCascade(signals storage.SignalStore, candle *candles.Gate, gates config.GateConfig, safety config.SafetyConfig, log zerolog.Logger) *Cascade {
	return &Cascade{
		signals: signals,
		candle:  candle,
		gates:   gates,
		safety:  safety,
		log:     log.With().Str("component", "gate_cascade").Logger(),
		now:     time.Now,
	}
}

// Decide runs the candidate through every gate in order and persists the
// signal on acceptance. Errors are storage failures only; gate rejections
// come back as verdicts.
func (c *Cascade) Decide(ctx context.Context, cand *Candidate) (*Verdict, error) {
	if reason, ok := c.trigger(cand); !ok {
		return c.reject(cand, StageTrigger, reason), nil
	}
	if reason, ok := c.checkSafety(cand); !ok {
		return c.reject(cand, StageSafety, reason), nil
	}

	dup, err := c.signals.HasRecent(ctx, cand.Row.Mint, c.gates.DedupWindow)
	if err != nil {
		return nil, fmt.Errorf("dedup lookup %s: %w", cand.Row.Mint, err)
	}
	if dup {
		return c.reject(cand, StageDedup, ReasonDuplicate), nil
	}

	posterior := c.posterior(cand)
	if posterior < c.gates.ConfidenceMin {
		return c.reject(cand, StageConfidence, ReasonLowConfidence), nil
	}

	size := c.kellySize(cand, posterior)
	if size <= minSize {
		return c.reject(cand, StageSizing, ReasonSizeNegligible), nil
	}

	if reason, ok := c.quality(cand, posterior); !ok {
		return c.reject(cand, StageQuality, reason), nil
	}

	sig := c.buildSignal(cand, posterior, size)
	if err := c.signals.Insert(ctx, sig); err != nil {
		return nil, fmt.Errorf("insert signal %s: %w", sig.Mint, err)
	}
	observability.RecordSignalEmitted()
	c.log.Info().
		Str("mint", sig.Mint).
		Float64("instability", sig.Instability).
		Float64("confidence", sig.Confidence).
		Float64("size", sig.Size).
		Str("regime", sig.Regime.String()).
		Msg("signal emitted")

	return &Verdict{Accepted: true, Signal: sig}, nil
}

func (c *Cascade) reject(cand *Candidate, stage, reason string) *Verdict {
	observability.RecordGateRejection(stage)
	c.log.Debug().
		Str("mint", cand.Row.Mint).
		Str("stage", stage).
		Str("reason", reason).
		Float64("instability", cand.Row.Instability).
		Msg("gate rejected")
	return &Verdict{Stage: stage, Reason: reason}
}

// buildSignal assembles the persisted signal with exit levels and the
// positive annotations that explain why it fired.
func (c *Cascade) buildSignal(cand *Candidate, posterior, size float64) *domain.Signal {
	row := cand.Row
	m := row.Metric

	sig := &domain.Signal{
		SignalID:    uuid.NewString(),
		Mint:        row.Mint,
		EmittedAt:   c.now().UnixMilli(),
		Instability: row.Instability,
		Confidence:  posterior,
		Size:        size,
		EntryPrice:  m.PriceUSD,
		StopLoss:    m.PriceUSD * c.gates.StopLossMult,
		TakeProfit:  m.PriceUSD * c.gates.TakeProfitMult,
		Regime:      row.Regime,
		Reasons:     c.annotations(cand),
		Features:    row.Features,
	}

	if m.LiquidityUSD != nil {
		sig.LiquidityUSD = fptr(*m.LiquidityUSD)
	}
	if m.MarketCapUSD != nil {
		sig.MarketCapUSD = fptr(*m.MarketCapUSD)
	}
	if cand.InsiderVerified {
		sig.InsiderPSI = fptr(cand.InsiderPSI)
	}
	if cand.CreatorKnown {
		sig.CreatorRisk = fptr(cand.CreatorRisk)
	}
	return sig
}

// annotations lists the evidence that worked in the signal's favor, for
// the notifier line and audit.
func (c *Cascade) annotations(cand *Candidate) []string {
	row := cand.Row
	var rs []string

	if row.Regime == domain.RegimeDegen {
		rs = append(rs, "degen_boost")
	}
	if cand.Threshold > 0 && row.Instability/cand.Threshold > strongScoreRatio {
		rs = append(rs, "strong_score")
	}
	if row.DeltaInstability > risingDelta {
		rs = append(rs, "rising_instability")
	}
	if row.Features.SmartWalletRatio > 0 {
		rs = append(rs, "smart_rotation")
	}
	if row.Features.VolumeIntensity > fastTrackIntensity {
		rs = append(rs, "volume_surge")
	}
	if row.Metric.Flags.VirtualLiquidity {
		rs = append(rs, "virtual_liquidity")
	}
	if row.Metric.Flags.BondingCurve {
		rs = append(rs, "bonding_curve")
	}
	return rs
}

func fval(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func ival(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func fptr(v float64) *float64 { return &v }

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
