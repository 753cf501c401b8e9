package candles

import (
	"time"

	"solana-meme-radar/internal/domain"
)

const (
	// minBars is the least history the score is trusted on; below it the
	// gate falls back to the fail-open policy or the early-entry check.
	minBars = 3

	// passScore is the composite score the pattern check must reach.
	passScore = 0.4

	// earlyAgeSeconds bounds the early-entry exception to very new tokens.
	earlyAgeSeconds = 15 * 60

	breakoutVolumeMult = 1.5
	consolidationRange = 0.15

	aggressiveBuyShare = 0.70
	cautiousBuyShare   = 0.55
)

// Patterns are the boolean price-structure checks, oldest-to-newest bars.
type Patterns struct {
	Breakout        bool // close above all prior highs on expanding volume
	VolumeRamp      bool // volume building under steady or rising closes
	HigherHighsLows bool // two consecutive higher highs and higher lows
	RejectionWick   bool // dump absorbed: long lower wick, close held high
	Momentum        bool // net gain with mostly green recent bars
	RangeBreak      bool // tight consolidation resolved upward
}

func (p Patterns) count() int {
	n := 0
	for _, ok := range []bool{p.Breakout, p.VolumeRamp, p.HigherHighsLows, p.RejectionWick, p.Momentum, p.RangeBreak} {
		if ok {
			n++
		}
	}
	return n
}

// Indicators are the numeric confirmations. Divergence is a sentiment in
// [-1,1]; the rest live in [0,1].
type Indicators struct {
	MomentumConfirm float64
	Divergence      float64
	BuyPressure     float64
	TrendStrength   float64
}

// EntryStance classifies tokens too new for a full pattern read.
type EntryStance string

const (
	EntryNone       EntryStance = "NONE"
	EntryCautious   EntryStance = "CAUTIOUS"
	EntryAggressive EntryStance = "AGGRESSIVE"
)

// Verdict is the pattern gate outcome for one token.
type Verdict struct {
	Pass       bool
	Score      float64
	Patterns   Patterns
	Indicators Indicators
	Stance     EntryStance
	Bars       int
	// FailOpen marks a pass granted for lack of history, not evidence.
	FailOpen bool
}

// Gate grades token price structure from synthesized bars.
type Gate struct {
	interval time.Duration
	failOpen bool
}

// NewGate creates a pattern gate bucketing history at the given interval.
func NewGate(interval time.Duration, failOpen bool) *Gate {
	return &Gate{interval: interval, failOpen: failOpen}
}

// Evaluate grades the token's metric history (newest first). Tokens
// younger than fifteen minutes may pass on the early-entry stance even
// when the composite score falls short; histories under three bars pass
// or fail per the fail-open policy.
func (g *Gate) Evaluate(history []*domain.TokenMetric, ageSeconds int64) Verdict {
	bars := FromMetrics(history, g.interval)
	young := ageSeconds >= 0 && ageSeconds < earlyAgeSeconds

	v := Verdict{Bars: len(bars), Stance: EntryNone}
	if young {
		v.Stance = earlyEntry(bars)
	}

	if len(bars) < minBars {
		if young && v.Stance != EntryNone {
			v.Pass = true
			return v
		}
		v.Pass = g.failOpen
		v.FailOpen = true
		return v
	}

	v.Patterns = detectPatterns(bars)
	v.Indicators = computeIndicators(bars)
	v.Score = composite(v.Patterns, v.Indicators)
	v.Pass = v.Score >= passScore || (young && v.Stance != EntryNone)
	return v
}

// composite blends the pattern count (0.1 each, up to 0.6) with the mean
// indicator confirmation (up to 0.4).
func composite(p Patterns, ind Indicators) float64 {
	confirmation := (ind.MomentumConfirm + (ind.Divergence+1)/2 + ind.BuyPressure + ind.TrendStrength) / 4
	return 0.1*float64(p.count()) + 0.4*confirmation
}

func detectPatterns(bars []Bar) Patterns {
	n := len(bars)
	last := bars[n-1]
	prior := bars[:n-1]

	maxH, minL := priorExtremes(prior)
	avgVol := meanVolume(prior)

	var p Patterns
	p.Breakout = last.Close > maxH && avgVol > 0 && last.VolumeUSD > breakoutVolumeMult*avgVol

	v1, v2, v3 := bars[n-3].VolumeUSD, bars[n-2].VolumeUSD, bars[n-1].VolumeUSD
	p.VolumeRamp = v3 > v2 && v2 >= v1 && v3 > 0 && last.Close >= bars[n-3].Close

	p.HigherHighsLows = bars[n-1].High > bars[n-2].High && bars[n-2].High > bars[n-3].High &&
		bars[n-1].Low > bars[n-2].Low && bars[n-2].Low > bars[n-3].Low

	p.RejectionWick = bullishRejection(bars[n-1]) || bullishRejection(bars[n-2])

	greens := 0
	for _, b := range bars[n-3:] {
		if b.green() {
			greens++
		}
	}
	p.Momentum = last.Close > bars[0].Close && greens >= 2

	if maxH > 0 && (maxH-minL)/maxH < consolidationRange {
		p.RangeBreak = last.Close > maxH
	}
	return p
}

// bullishRejection: sellers pushed deep but the close held in the upper
// half of the range. Strict comparisons keep zero-range bars false.
func bullishRejection(b Bar) bool {
	return b.lowerWick() > 2*b.body() && b.Close > (b.High+b.Low)/2
}

func computeIndicators(bars []Bar) Indicators {
	n := len(bars)
	first, last := bars[0], bars[n-1]

	var ind Indicators

	// Net return scaled so +10% over the window saturates confirmation.
	netRet := (last.Close - first.Close) / first.Close
	ind.MomentumConfirm = clamp01(0.5 + 5*netRet)

	ind.Divergence = divergenceSentiment(bars)

	buys, sells := 0, 0
	for _, b := range bars[maxInt(0, n-3):] {
		buys += b.Buys
		sells += b.Sells
	}
	if buys+sells > 0 {
		ind.BuyPressure = float64(buys) / float64(buys+sells)
	} else {
		ind.BuyPressure = 0.5
	}

	ind.TrendStrength = trendStrength(bars)
	return ind
}

// divergenceSentiment reads price direction against volume direction:
// advance on building volume confirms (+1); decline into volume is
// distribution (-1); advance on fading volume is suspect (-0.25); decline
// on fading volume reads as exhaustion (+0.25). No volume data is neutral.
func divergenceSentiment(bars []Bar) float64 {
	n := len(bars)
	firstHalf := meanVolume(bars[:n/2])
	secondHalf := meanVolume(bars[n/2:])
	if firstHalf == 0 && secondHalf == 0 {
		return 0
	}

	priceUp := bars[n-1].Close >= bars[0].Close
	volumeUp := secondHalf > firstHalf
	switch {
	case priceUp && volumeUp:
		return 1
	case priceUp && !volumeUp:
		return -0.25
	case !priceUp && volumeUp:
		return -1
	default:
		return 0.25
	}
}

// trendStrength is the efficiency ratio of the close series, zeroed for
// net declines: straight-line advances score 1, chop scores near 0.
func trendStrength(bars []Bar) float64 {
	n := len(bars)
	net := bars[n-1].Close - bars[0].Close
	if net <= 0 {
		return 0
	}
	travel := 0.0
	for i := 1; i < n; i++ {
		d := bars[i].Close - bars[i-1].Close
		if d < 0 {
			d = -d
		}
		travel += d
	}
	if travel <= 0 {
		return 0
	}
	return clamp01(net / travel)
}

// earlyEntry grades tokens too new for a pattern read from whatever bars
// exist. Aggressive wants a green bar, dominant buying and participation
// still building; cautious settles for a non-red bar and a buy majority.
func earlyEntry(bars []Bar) EntryStance {
	n := len(bars)
	if n == 0 {
		return EntryNone
	}
	last := bars[n-1]

	buys, sells := 0, 0
	for _, b := range bars[maxInt(0, n-3):] {
		buys += b.Buys
		sells += b.Sells
	}
	share := 0.0
	if buys+sells > 0 {
		share = float64(buys) / float64(buys+sells)
	}

	volumeBuilding := n == 1 || last.VolumeUSD > bars[n-2].VolumeUSD
	if last.green() && share >= aggressiveBuyShare && volumeBuilding {
		return EntryAggressive
	}
	if last.Close >= last.Open && share >= cautiousBuyShare {
		return EntryCautious
	}
	return EntryNone
}

func priorExtremes(prior []Bar) (maxHigh, minLow float64) {
	for i, b := range prior {
		if i == 0 || b.High > maxHigh {
			maxHigh = b.High
		}
		if i == 0 || b.Low < minLow {
			minLow = b.Low
		}
	}
	return maxHigh, minLow
}

func meanVolume(bars []Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range bars {
		sum += b.VolumeUSD
	}
	return sum / float64(len(bars))
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

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
