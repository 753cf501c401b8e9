package signals

import "solana-meme-radar/internal/domain"

// Confidence evidence factors. The prior is multiplied by one factor per
// evidence dimension in probability space, then clipped; a cold start with
// clean verified creator and insider evidence lands at 0.35 x 1.3 x 1.3 =
// 0.5915, just over the default emission floor.
const (
	priorConfidence = 0.35

	lrDegen           = 1.1
	lrCleanEvidence   = 1.3
	lrRiskyEvidence   = 0.6
	lrUnknownEvidence = 0.85
	lrStrongScore     = 1.25
	lrRisingDelta     = 1.2
	lrFallingDelta    = 0.8
	lrSmartRotation   = 1.5
	lrVirtualLiq      = 0.8
	lrHeavyTop10      = 0.70
	lrSoftTop10       = 0.85
)

// Evidence thresholds. Clean bounds are inclusive.
const (
	creatorCleanMax = 0.15
	creatorRiskyMin = 0.5
	insiderCleanMax = 0.10
	insiderRiskyMin = 0.5

	strongScoreRatio = 1.5
	risingDelta      = 20.0
	fallingDelta     = -10.0

	heavyTop10 = 0.80
	softTop10  = 0.60
)

// posterior composes the emission confidence for a candidate that cleared
// the hard gates.
func (c *Cascade) posterior(cand *Candidate) float64 {
	row := cand.Row
	p := priorConfidence

	if row.Regime == domain.RegimeDegen {
		p *= lrDegen
	}

	switch {
	case cand.CreatorKnown && cand.CreatorRisk <= creatorCleanMax:
		p *= lrCleanEvidence
	case cand.CreatorKnown && cand.CreatorRisk > creatorRiskyMin:
		p *= lrRiskyEvidence
	case !cand.CreatorKnown:
		p *= lrUnknownEvidence
	}

	switch {
	case cand.InsiderVerified && cand.InsiderPSI <= insiderCleanMax:
		p *= lrCleanEvidence
	case cand.InsiderVerified && cand.InsiderPSI > insiderRiskyMin:
		p *= lrRiskyEvidence
	case !cand.InsiderVerified:
		p *= lrUnknownEvidence
	}

	if cand.Threshold > 0 && row.Instability/cand.Threshold > strongScoreRatio {
		p *= lrStrongScore
	}

	if row.DeltaInstability > risingDelta {
		p *= lrRisingDelta
	} else if row.DeltaInstability < fallingDelta {
		p *= lrFallingDelta
	}

	if row.Features.SmartWalletRatio > 0 {
		p *= lrSmartRotation
	}
	if row.Metric.Flags.VirtualLiquidity {
		p *= lrVirtualLiq
	}

	if t := row.Metric.Top10Ratio; t != nil {
		switch {
		case *t > heavyTop10:
			p *= lrHeavyTop10
		case *t > softTop10:
			p *= lrSoftTop10
		}
	} else {
		// Unknown dispersion on a micro-cap passed safety; it is still
		// missing evidence and discounts like any other unknown.
		p *= lrUnknownEvidence
	}

	return clip(p, 0.01, 0.99)
}
