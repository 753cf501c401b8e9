package signals

import (
	"math"

	"solana-meme-radar/internal/domain"
)

// Quality stage constants.
const (
	qualityLiqMin        = 200.0
	qualityLiqMinVirtual = 300.0

	// youngAgeSeconds tokens must show launch violence (degen score) to
	// justify an entry this early.
	youngAgeSeconds = 15 * 60
	degenScoreMin   = 40.0

	// With no smart-wallet rotation and no insider interest the signal is
	// a pure retail read and needs a stronger posterior.
	lowPSIMax           = 0.30
	qualityPosteriorMin = 0.50
)

// quality is the final sanity pass over a sized candidate.
func (c *Cascade) quality(cand *Candidate, posterior float64) (string, bool) {
	row := cand.Row
	m := row.Metric

	if fval(m.MarketCapUSD) < c.safety.McapMin {
		return ReasonQuality, false
	}

	liqFloor := qualityLiqMin
	if m.Flags.VirtualLiquidity {
		liqFloor = qualityLiqMinVirtual
	}
	if fval(m.LiquidityUSD) < liqFloor {
		return ReasonQuality, false
	}

	if m.AgeSeconds < youngAgeSeconds && degenScore(row) < degenScoreMin {
		return ReasonQuality, false
	}

	if row.Features.SmartWalletRatio <= 0 && cand.InsiderPSI < lowPSIMax && posterior < qualityPosteriorMin {
		return ReasonQuality, false
	}
	return "", true
}

// degenScore grades a sub-15-minute token's launch violence on a 0-100
// scale: turnover, buy count, smart rotation, and momentum.
func degenScore(row *domain.ScoredRow) float64 {
	score := math.Min(40, 10*row.Features.VolumeIntensity)
	score += math.Min(30, 0.5*float64(ival(row.Metric.Buys5m)))
	if row.Features.SmartWalletRatio > 0 {
		score += 15
	}
	score += 15 * row.Features.Momentum
	return score
}
