package signals

// Trigger stage constants.
const (
	// collapseDelta marks a token unwinding rather than igniting; paired
	// with collapseCap it spares tokens whose absolute score still towers
	// over the batch.
	collapseDelta = -15.0
	collapseCap   = 2.0

	// blowoutShift is the volatility expansion considered structurally
	// unsafe unless instability runs blowoutCap ahead of the threshold.
	blowoutShift = 12.0
	blowoutCap   = 1.8

	// Momentum fast-track: turnover and buy count high enough that price
	// structure needs no separate confirmation.
	fastTrackIntensity = 5.0
	fastTrackBuys      = 50

	// liqExceptionIntensity lets extreme turnover override the liquidity
	// floor when the score also clears the threshold.
	liqExceptionIntensity = 3.0
)

// trigger decides whether the score is worth acting on at all and whether
// price structure confirms it. Returns the rejection reason and false on
// the first failed check.
func (c *Cascade) trigger(cand *Candidate) (string, bool) {
	row := cand.Row
	inst, thr := row.Instability, cand.Threshold

	if inst < thr {
		return ReasonBelowThreshold, false
	}
	if row.DeltaInstability < collapseDelta && inst < collapseCap*thr {
		return ReasonSharpFalling, false
	}
	if row.Features.VolatilityShift >= blowoutShift && inst < blowoutCap*thr {
		return ReasonVolBlowout, false
	}

	fastTrack := row.Features.VolumeIntensity > fastTrackIntensity && ival(row.Metric.Buys5m) > fastTrackBuys

	if fval(row.Metric.LiquidityUSD) < c.safety.LiquidityMin {
		if !(row.Features.VolumeIntensity > liqExceptionIntensity && inst > thr) {
			return ReasonLowLiquidity, false
		}
	}

	mcap := fval(row.Metric.MarketCapUSD)
	if mcap < c.safety.McapMin {
		return ReasonDustMcap, false
	}
	if mcap > c.safety.McapMax {
		return ReasonMcapCeiling, false
	}

	if fastTrack {
		return "", true
	}
	if verdict := c.candle.Evaluate(cand.History, row.Metric.AgeSeconds); !verdict.Pass {
		return ReasonWeakPattern, false
	}
	return "", true
}
