package signals

// Sizing stage constants.
const (
	// minSize is the emission floor; a suggested fraction at or below it
	// is not worth a slot.
	minSize = 0.01

	// Verified insider probability inside this band is ambiguous: too high
	// to ignore, too low to reject, so the position is halved instead.
	insiderHalfLow  = 0.4
	insiderHalfHigh = 0.6
)

// kellySize returns the fractional-Kelly position for the posterior. The
// raw fraction is clipped to [0,1], capped for micro-caps, then halved on
// ambiguous verified insider risk, in that order, so the cap bounds the
// final size in every branch.
func (c *Cascade) kellySize(cand *Candidate, p float64) float64 {
	w, l := c.gates.KellyWin, c.gates.KellyLoss
	size := clip(c.gates.KellyFraction*(p*w-(1-p)*l)/l, 0, 1)

	if fval(cand.Row.Metric.MarketCapUSD) < c.gates.MicrocapThreshold && size > c.gates.MaxKellyMicrocap {
		size = c.gates.MaxKellyMicrocap
	}
	if cand.InsiderVerified && cand.InsiderPSI >= insiderHalfLow && cand.InsiderPSI <= insiderHalfHigh {
		size /= 2
	}
	return size
}
