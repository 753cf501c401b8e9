package smartwallet

import (
	"math"
	"sort"
	"time"
)

// PSI aggregate weights. The bias centers the sigmoid so that a token
// with no insider evidence lands well below 0.5.
const (
	psiWeightEarly   = 2.0
	psiWeightFunding = 1.5
	psiWeightBuys    = 1.0
	psiWeightHolders = 0.5
	psiBias          = 2.0

	fundingEvidence = 0.5
)

// BuyEvent is one observed buy used for insider analysis.
type BuyEvent struct {
	Wallet      string
	TimestampMs int64
}

// InsiderInputs carries everything the PSI needs for one token.
type InsiderInputs struct {
	// Buys are the token's observed buys, any order.
	Buys []BuyEvent
	// PairCreatedMs is the pool creation time; 0 when unknown.
	PairCreatedMs int64
	// TotalBuys is the token's lifetime buy count (tally), used as the
	// denominator of the early-buy ratio.
	TotalBuys int
	// HolderGrowth is the clipped first-two-minute holder growth in [0,1];
	// 0 when holder history does not reach back that far.
	HolderGrowth float64
	// CoordWindow is the coordinated-entry pairing window.
	CoordWindow time.Duration
	// Smart is the current smart-set snapshot.
	Smart *Snapshot
}

// InsiderScore computes the pre-signal insider probability: a sigmoid
// over early smart entries, coordinated buying, the share of buys landing
// in the first two minutes, and early holder growth. The second return
// reports whether the score is grounded in verifiable data (a known pair
// creation time and a non-empty smart set); ungrounded scores are advisory
// and the gates treat the token as unknown.
func InsiderScore(in InsiderInputs) (float64, bool) {
	verified := in.PairCreatedMs > 0 && in.Smart != nil && in.Smart.Size() > 0

	early := 0.0
	if in.PairCreatedMs > 0 && in.Smart != nil {
		if ts, ok := earliestSmartBuy(in.Buys, in.Smart); ok {
			early = earlyScore((ts - in.PairCreatedMs) / 1000)
		}
	}

	funding := 0.0
	if len(CoordinatedEntries(in.Buys, in.CoordWindow)) > 0 {
		funding = fundingEvidence
	}

	buyRatio := 0.0
	if in.PairCreatedMs > 0 {
		earlyBuys := 0
		cutoff := in.PairCreatedMs + 120_000
		for _, b := range in.Buys {
			if b.TimestampMs <= cutoff {
				earlyBuys++
			}
		}
		buyRatio = float64(earlyBuys) / math.Max(float64(in.TotalBuys), 1)
		if buyRatio > 1 {
			buyRatio = 1
		}
	}

	z := psiWeightEarly*early +
		psiWeightFunding*funding +
		psiWeightBuys*buyRatio +
		psiWeightHolders*clamp01(in.HolderGrowth) -
		psiBias

	return sigmoid(z), verified
}

// CoordinatedEntries returns the wallets whose buy lands within window of
// a different wallet's buy, sorted and deduplicated. One wallet splitting
// its entry across transactions is not coordination.
func CoordinatedEntries(buys []BuyEvent, window time.Duration) []string {
	if len(buys) < 2 || window <= 0 {
		return nil
	}

	sorted := make([]BuyEvent, len(buys))
	copy(sorted, buys)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].TimestampMs != sorted[j].TimestampMs {
			return sorted[i].TimestampMs < sorted[j].TimestampMs
		}
		return sorted[i].Wallet < sorted[j].Wallet
	})

	windowMs := window.Milliseconds()
	flagged := make(map[string]struct{})
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].TimestampMs-sorted[i].TimestampMs > windowMs {
				break
			}
			if sorted[i].Wallet == sorted[j].Wallet {
				continue
			}
			flagged[sorted[i].Wallet] = struct{}{}
			flagged[sorted[j].Wallet] = struct{}{}
		}
	}
	if len(flagged) == 0 {
		return nil
	}

	out := make([]string, 0, len(flagged))
	for w := range flagged {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// earliestSmartBuy returns the timestamp of the first buy by a smart
// wallet, if any.
func earliestSmartBuy(buys []BuyEvent, smart *Snapshot) (int64, bool) {
	found := false
	earliest := int64(0)
	for _, b := range buys {
		if !smart.Contains(b.Wallet) {
			continue
		}
		if !found || b.TimestampMs < earliest {
			earliest = b.TimestampMs
			found = true
		}
	}
	return earliest, found
}

// earlyScore maps seconds-since-pair-creation to insider evidence.
func earlyScore(ageSec int64) float64 {
	switch {
	case ageSec <= 60:
		return 1.0
	case ageSec <= 300:
		return 0.6
	case ageSec <= 600:
		return 0.3
	default:
		return 0
	}
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
