package signals

import "solana-meme-radar/internal/domain"

// Safety stage constants.
const (
	// dispersionMcapFloor: above this cap, unknown holder dispersion is
	// itself disqualifying; below it the confidence stage absorbs the
	// uncertainty instead.
	dispersionMcapFloor = 50_000.0

	// holdersMcapFloor: a thin holder base only disqualifies once the cap
	// says the token should have found an audience.
	holdersMcapFloor = 30_000.0

	// Hard ceilings on verified insider and creator risk.
	insiderRejectPSI  = 0.60
	creatorRejectRisk = 0.55

	// pumpWindowMs / pumpRatio: a 5x move inside five minutes means the
	// entry this signal would chase already happened.
	pumpWindowMs = 5 * 60 * 1000
	pumpRatio    = 5.0
)

// checkSafety applies the hard structural filters. Bonding-curve tokens
// carry a synthetic top10 of 1.0, so concentration only binds once a real
// holder distribution exists.
func (c *Cascade) checkSafety(cand *Candidate) (string, bool) {
	row, tok := cand.Row, cand.Token
	m := row.Metric

	if tok.MintAuthority != nil || tok.FreezeAuthority != nil {
		return ReasonAuthorityLive, false
	}

	mcap := fval(m.MarketCapUSD)
	if m.Top10Ratio == nil {
		if mcap > dispersionMcapFloor {
			return ReasonDispersion, false
		}
		// Micro-cap with unknown dispersion proceeds; the posterior pays
		// for the missing evidence.
	} else if !m.Flags.BondingCurve && *m.Top10Ratio > c.safety.Top10MaxRatio {
		return ReasonConcentration, false
	}

	if m.Holders != nil && *m.Holders < c.safety.HoldersMin && mcap > holdersMcapFloor {
		return ReasonFewHolders, false
	}

	if cand.InsiderVerified && cand.InsiderPSI > insiderRejectPSI {
		return ReasonInsiderRisk, false
	}
	if cand.CreatorKnown && cand.CreatorRisk > creatorRejectRisk {
		return ReasonCreatorRisk, false
	}

	if pumped(cand.History, m.PriceUSD, row.TimestampMs) {
		return ReasonAlreadyPumped, false
	}
	return "", true
}

// pumped reports a >= 5x move over the trailing five minutes. Tokens with
// no observation older than the window are measured from their earliest
// snapshot: a three-minute-old token that already did 5x counts.
func pumped(history []*domain.TokenMetric, price float64, nowMs int64) bool {
	if price <= 0 || len(history) == 0 {
		return false
	}

	cutoff := nowMs - pumpWindowMs
	var ref *domain.TokenMetric
	for _, m := range history {
		if m == nil {
			continue
		}
		ref = m
		if m.TimestampMs <= cutoff {
			break
		}
	}
	if ref == nil || ref.PriceUSD <= 0 {
		return false
	}
	return price/ref.PriceUSD >= pumpRatio
}
