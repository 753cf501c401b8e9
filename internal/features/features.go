// Package features derives per-token behavioral features from recent
// metric history. Every function here is pure: no I/O, no clock reads,
// and every output is finite with a documented neutral fallback.
package features

import (
	"math"

	"solana-meme-radar/internal/domain"
)

// eps guards every division; series flatter than this are treated as flat.
const eps = 1e-9

// Feature lookback spans, all relative to the current snapshot.
const (
	holderSpanMs  = 10 * 60 * 1000 // holder acceleration step
	shortWindowMs = 5 * 60 * 1000  // volatility / momentum short horizon
	longWindowMs  = 20 * 60 * 1000 // volatility long horizon
)

// Inputs carries one token's state at feature time. History is newest
// first as returned by the metric store; entries at or after the current
// snapshot's timestamp are ignored so a freshly inserted row cannot be
// double counted.
type Inputs struct {
	Current      *domain.TokenMetric
	History      []*domain.TokenMetric
	BuyerShares  map[string]float64 // share of 5m buy volume per buyer
	UniqueBuyers int                // distinct buyers in the 5m window
}

// Compute derives the feature vector for one token. SWR, WeightedSWR and
// InsiderPSI are wallet-engine outputs and stay zero here; the scheduler
// merges them in before scoring.
func Compute(in Inputs) domain.FeatureVector {
	fv := domain.FeatureVector{}
	if in.Current == nil {
		fv.VolatilityShift = 1
		fv.SellPressure = 0.5
		fv.DipRecovery = 0.5
		fv.Momentum = 0.5
		fv.VolumeQuality = 0.5
		return fv
	}

	cur := in.Current
	series := buildSeries(cur, in.History)

	fv.Mint = cur.Mint
	fv.TimestampMs = cur.TimestampMs
	fv.DataPresence = cur.Present()

	fv.HolderAccel = sanitize(holderAccel(series), 0)
	fv.StealthAccum = sanitize(stealthAccum(in.UniqueBuyers, cur.Buys5m, cur.Sells5m, series), 0)
	fv.VolatilityShift = sanitize(volatilityShift(series), 1)
	fv.SellPressure = sanitize(sellPressure(cur.Buys5m, cur.Sells5m), 0.5)
	fv.LiquidityAccel = sanitize(liquidityAccel(series), 0)
	fv.VolumeHHI = sanitize(volumeHHI(in.BuyerShares), 0)
	fv.DipRecovery = sanitize(dipRecovery(series), 0.5)
	fv.VolumeIntensity = sanitize(volumeIntensity(cur), 0)
	fv.Momentum = sanitize(momentum(series, cur), 0.5)
	fv.TrendQuality = sanitize(trendQuality(series), 0)
	fv.VolumeQuality = sanitize(volumeQuality(cur), 0.5)

	return fv
}

// point is one chronological observation extracted from a metric row.
type point struct {
	tsMs      int64
	price     float64
	liquidity *float64
	holders   *int
}

// buildSeries merges history and the current snapshot into an oldest-first
// series. Rows with non-finite or non-positive prices are dropped; they
// carry no information the math can use.
func buildSeries(cur *domain.TokenMetric, history []*domain.TokenMetric) []point {
	series := make([]point, 0, len(history)+1)
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m == nil || m.TimestampMs >= cur.TimestampMs {
			continue
		}
		if !isFinite(m.PriceUSD) || m.PriceUSD <= 0 {
			continue
		}
		series = append(series, point{
			tsMs:      m.TimestampMs,
			price:     m.PriceUSD,
			liquidity: m.LiquidityUSD,
			holders:   m.Holders,
		})
	}
	if isFinite(cur.PriceUSD) && cur.PriceUSD > 0 {
		series = append(series, point{
			tsMs:      cur.TimestampMs,
			price:     cur.PriceUSD,
			liquidity: cur.LiquidityUSD,
			holders:   cur.Holders,
		})
	}
	return series
}

// holderAccel is the second difference of holder counts over two
// ten-minute steps, normalized by the current count: (d1-d2)/(h+1)
// where d1 = h(t)-h(t-10m) and d2 = h(t-10m)-h(t-20m). Clipped to
// [-10, 10]; 0 when any of the three observations is missing.
func holderAccel(series []point) float64 {
	if len(series) == 0 {
		return 0
	}
	nowMs := series[len(series)-1].tsMs

	h0 := holdersAt(series, nowMs)
	h1 := holdersAt(series, nowMs-holderSpanMs)
	h2 := holdersAt(series, nowMs-2*holderSpanMs)
	if h0 == nil || h1 == nil || h2 == nil {
		return 0
	}

	d1 := float64(*h0 - *h1)
	d2 := float64(*h1 - *h2)
	return clip((d1-d2)/(float64(*h0)+1), -10, 10)
}

// holdersAt returns the newest holder count observed at or before the
// cutoff, or nil when no row in range carries one.
func holdersAt(series []point, cutoffMs int64) *int {
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].tsMs > cutoffMs {
			continue
		}
		if series[i].holders != nil {
			return series[i].holders
		}
	}
	return nil
}

// stealthAccum scores quiet accumulation: many distinct buyers, few
// sells, flat price. buyers * (1 - sells/buys) * (1 - std(p)/mean(p))
// with the stability term clamped to [0,1]. Zero when nobody is buying;
// unbounded above, which the cross-sectional z-score absorbs.
func stealthAccum(uniqueBuyers int, buys, sells *int, series []point) float64 {
	if uniqueBuyers <= 0 {
		return 0
	}

	b, s := 0, 0
	if buys != nil {
		b = *buys
	}
	if sells != nil {
		s = *sells
	}
	if b <= 0 {
		return 0
	}
	dominance := 1 - float64(s)/float64(b)
	if dominance < 0 {
		return 0
	}

	stability := 1.0
	if len(series) > 0 {
		if prices := pricesSince(series, series[len(series)-1].tsMs-longWindowMs); len(prices) >= 2 {
			m := mean(prices)
			if m > eps {
				stability = clip(1-stddev(prices, m)/m, 0, 1)
			}
		}
	}

	return float64(uniqueBuyers) * dominance * stability
}

// volatilityShift is the ratio of short- to long-horizon return
// volatility, clipped to [0, 20]. Values above 1 mean volatility is
// expanding right now. Neutral 1 when either window is too short.
func volatilityShift(series []point) float64 {
	if len(series) < 3 {
		return 1
	}
	nowMs := series[len(series)-1].tsMs

	short := returnsSince(series, nowMs-shortWindowMs)
	long := returnsSince(series, nowMs-longWindowMs)
	if len(short) < 2 || len(long) < 2 {
		return 1
	}

	sShort := stddev(short, mean(short))
	sLong := stddev(long, mean(long))
	if sLong < eps {
		if sShort < eps {
			return 1 // both windows flat, nothing is shifting
		}
		return 20 // violence out of a dead-flat past saturates the scale
	}
	return clip(sShort/sLong, 0, 20)
}

// sellPressure is sells/(buys+sells+1) in [0,1). Neutral 0.5 when both
// tallies are unknown.
func sellPressure(buys, sells *int) float64 {
	if buys == nil && sells == nil {
		return 0.5
	}
	b, s := 0, 0
	if buys != nil {
		b = *buys
	}
	if sells != nil {
		s = *sells
	}
	return float64(s) / float64(b+s+1)
}

// liquidityAccel is the change of the liquidity growth rate across the
// last three observations carrying liquidity, clipped to [-10, 10].
func liquidityAccel(series []point) float64 {
	var liqs []float64
	for i := len(series) - 1; i >= 0 && len(liqs) < 3; i-- {
		if series[i].liquidity != nil && isFinite(*series[i].liquidity) {
			liqs = append(liqs, *series[i].liquidity)
		}
	}
	if len(liqs) < 3 {
		return 0
	}

	// liqs is newest first: liqs[0]=now, liqs[1]=prev, liqs[2]=before.
	g1 := (liqs[0] - liqs[1]) / math.Max(liqs[1], eps)
	g2 := (liqs[1] - liqs[2]) / math.Max(liqs[2], eps)
	return clip(g1-g2, -10, 10)
}

// volumeHHI is the Herfindahl index of per-buyer volume shares: sum of
// squared shares in [0,1]. High values mean one or two wallets are the
// whole tape. 0 when shares are unknown.
func volumeHHI(shares map[string]float64) float64 {
	hhi := 0.0
	for _, s := range shares {
		if !isFinite(s) || s < 0 {
			continue
		}
		hhi += s * s
	}
	return clip(hhi, 0, 1)
}

// dipRecovery is the current price's position inside the window's range:
// (current-low)/(high-low). 1 means fully recovered to the high, 0 means
// sitting on the low, 0.5 when the window is flat.
func dipRecovery(series []point) float64 {
	if len(series) < 2 {
		return 0.5
	}

	low, high := series[0].price, series[0].price
	for _, p := range series {
		if p.price < low {
			low = p.price
		}
		if p.price > high {
			high = p.price
		}
	}
	if high-low < eps {
		return 0.5
	}
	return clip((series[len(series)-1].price-low)/(high-low), 0, 1)
}

// volumeIntensity is 5m volume over liquidity: turnover per pool dollar.
// Unknown volume scores 0; unknown liquidity leaves the +1 floor, which
// is intentionally extreme for pools the aggregator cannot see.
func volumeIntensity(cur *domain.TokenMetric) float64 {
	if cur.Volume5mUSD == nil || !isFinite(*cur.Volume5mUSD) {
		return 0
	}
	liq := 0.0
	if cur.LiquidityUSD != nil && isFinite(*cur.LiquidityUSD) && *cur.LiquidityUSD > 0 {
		liq = *cur.LiquidityUSD
	}
	v := *cur.Volume5mUSD / (liq + 1)
	if v < 0 {
		return 0
	}
	return v
}

// momentum blends the short-horizon price drift, turnover and the price
// second difference into [0,1] around a 0.5 neutral point.
func momentum(series []point, cur *domain.TokenMetric) float64 {
	if len(series) < 2 {
		return 0.5
	}
	nowMs := series[len(series)-1].tsMs
	now := series[len(series)-1].price

	past := priceAt(series, nowMs-shortWindowMs)
	if past <= 0 {
		past = series[0].price
	}
	drift := (now - past) / math.Max(past, eps)

	accel := 0.0
	if len(series) >= 3 {
		p0 := series[len(series)-1].price
		p1 := series[len(series)-2].price
		p2 := series[len(series)-3].price
		accel = ((p0 - p1) - (p1 - p2)) / math.Max(now, eps)
	}

	turn := volumeIntensity(cur)

	// A 5% five-minute drift or a 3x turnover each saturate their term.
	s := 0.6*clip(drift/0.05, -1, 1) + 0.25*clip(turn/3, 0, 1) + 0.15*clip(accel/0.02, -1, 1)
	return clip(0.5+0.5*clip(s, -1, 1), 0, 1)
}

// trendQuality combines structure (higher highs and higher lows across
// window thirds), the up-move ratio, and directional efficiency
// (net move over path length) into [0,1]. 0 for windows too short to
// have structure.
func trendQuality(series []point) float64 {
	if len(series) < 3 {
		return 0
	}

	prices := make([]float64, len(series))
	for i, p := range series {
		prices[i] = p.price
	}

	third := len(prices) / 3
	structure := 0.0
	if third >= 1 {
		a, b, c := prices[:third], prices[third:2*third], prices[2*third:]
		hh := maxOf(c) > maxOf(b) && maxOf(b) > maxOf(a)
		hl := minOf(c) > minOf(b) && minOf(b) > minOf(a)
		switch {
		case hh && hl:
			structure = 1
		case hh || hl:
			structure = 0.5
		}
	}

	ups, pathLen := 0, 0.0
	for i := 1; i < len(prices); i++ {
		move := prices[i] - prices[i-1]
		if move > 0 {
			ups++
		}
		pathLen += math.Abs(move)
	}
	upRatio := float64(ups) / float64(len(prices)-1)

	efficiency := 0.0
	if net := prices[len(prices)-1] - prices[0]; net > 0 {
		efficiency = net / math.Max(pathLen, eps)
	}

	return clip((structure+upRatio+efficiency)/3, 0, 1)
}

// volumeQuality multiplies a piecewise turnover score, a buy/sell balance
// score and a participation score into [0,1]. Neutral 0.5 when tallies
// are unknown.
func volumeQuality(cur *domain.TokenMetric) float64 {
	if cur.Buys5m == nil && cur.Sells5m == nil {
		return 0.5
	}
	b, s := 0, 0
	if cur.Buys5m != nil {
		b = *cur.Buys5m
	}
	if cur.Sells5m != nil {
		s = *cur.Sells5m
	}

	turn := volumeIntensity(cur)
	var turnScore float64
	switch {
	case turn < 0.05:
		turnScore = 0.3 // too thin to mean anything
	case turn <= 3:
		turnScore = 1.0
	case turn <= 10:
		turnScore = 0.7
	default:
		turnScore = 0.4 // wash-trade territory
	}

	// Healthy tape skews toward buys without being one-sided.
	buyRatio := float64(b) / math.Max(float64(b+s), 1)
	balance := clip(1-math.Abs(buyRatio-0.65)/0.65, 0, 1)

	participation := clip(float64(b+s)/20, 0, 1)

	return clip(turnScore*balance*participation, 0, 1)
}

// pricesSince returns the prices of observations at or after the cutoff,
// oldest first.
func pricesSince(series []point, cutoffMs int64) []float64 {
	var out []float64
	for _, p := range series {
		if p.tsMs >= cutoffMs {
			out = append(out, p.price)
		}
	}
	return out
}

// returnsSince returns per-step relative price changes within the cutoff.
func returnsSince(series []point, cutoffMs int64) []float64 {
	prices := pricesSince(series, cutoffMs)
	if len(prices) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		rets = append(rets, (prices[i]-prices[i-1])/math.Max(prices[i-1], eps))
	}
	return rets
}

// priceAt returns the newest price at or before the cutoff, or 0 when the
// series does not reach back that far.
func priceAt(series []point, cutoffMs int64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].tsMs <= cutoffMs {
			return series[i].price
		}
	}
	return 0
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the population standard deviation; feature windows are the
// whole population, not a sample.
func stddev(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// sanitize replaces a non-finite value with the feature's neutral value.
func sanitize(v, neutral float64) float64 {
	if !isFinite(v) {
		return neutral
	}
	return v
}

func maxOf(xs []float64) float64 {
	m := math.Inf(-1)
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	return m
}

func minOf(xs []float64) float64 {
	m := math.Inf(1)
	for _, x := range xs {
		if x < m {
			m = x
		}
	}
	return m
}
