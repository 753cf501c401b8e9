package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"solana-meme-radar/internal/domain"
)

func TestPosterior(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Candidate)
		want   float64
	}{
		{
			name:   "clean verified baseline",
			mutate: func(c *Candidate) {},
			want:   0.5915, // 0.35 x 1.3 x 1.3
		},
		{
			name:   "degen regime boost",
			mutate: func(c *Candidate) { c.Row.Regime = domain.RegimeDegen },
			want:   0.65065,
		},
		{
			name:   "known risky creator",
			mutate: func(c *Candidate) { c.CreatorRisk = 0.6 },
			want:   0.273, // 0.35 x 0.6 x 1.3
		},
		{
			name:   "mid-band creator is neutral",
			mutate: func(c *Candidate) { c.CreatorRisk = 0.3 },
			want:   0.455, // 0.35 x 1.3, no creator factor
		},
		{
			name:   "unknown creator",
			mutate: func(c *Candidate) { c.CreatorKnown = false },
			want:   0.38675,
		},
		{
			name:   "verified risky insiders",
			mutate: func(c *Candidate) { c.InsiderPSI = 0.7 },
			want:   0.273,
		},
		{
			name:   "unverified insiders",
			mutate: func(c *Candidate) { c.InsiderVerified = false },
			want:   0.38675,
		},
		{
			name:   "score far over threshold",
			mutate: func(c *Candidate) { c.Row.Instability = 6.5 },
			want:   0.739375, // ratio 1.625 > 1.5
		},
		{
			name:   "zero threshold skips the ratio factor",
			mutate: func(c *Candidate) { c.Threshold = 0; c.Row.Instability = 50 },
			want:   0.5915,
		},
		{
			name:   "rising instability",
			mutate: func(c *Candidate) { c.Row.DeltaInstability = 25 },
			want:   0.7098,
		},
		{
			name:   "falling instability",
			mutate: func(c *Candidate) { c.Row.DeltaInstability = -12 },
			want:   0.4732,
		},
		{
			name:   "smart wallet rotation",
			mutate: func(c *Candidate) { c.Row.Features.SmartWalletRatio = 0.03 },
			want:   0.88725,
		},
		{
			name:   "virtual liquidity discount",
			mutate: func(c *Candidate) { c.Row.Metric.Flags.VirtualLiquidity = true },
			want:   0.4732,
		},
		{
			name:   "heavy top10",
			mutate: func(c *Candidate) { c.Row.Metric.Top10Ratio = ptr(0.85) },
			want:   0.41405,
		},
		{
			name:   "soft top10",
			mutate: func(c *Candidate) { c.Row.Metric.Top10Ratio = ptr(0.65) },
			want:   0.502775,
		},
		{
			name:   "unknown dispersion discounts like unknown evidence",
			mutate: func(c *Candidate) { c.Row.Metric.Top10Ratio = nil },
			want:   0.502775,
		},
		{
			name: "stacked evidence clips at the ceiling",
			mutate: func(c *Candidate) {
				c.Row.Regime = domain.RegimeDegen
				c.Row.Instability = 6.5
				c.Row.DeltaInstability = 25
				c.Row.Features.SmartWalletRatio = 0.03
			},
			want: 0.99, // raw 1.464
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestCascade()
			cand := h.healthyCandidate("MintP")
			tt.mutate(cand)
			assert.InDelta(t, tt.want, h.cas.posterior(cand), 1e-6)
		})
	}
}

func TestKellySize(t *testing.T) {
	tests := []struct {
		name   string
		p      float64
		mutate func(*Candidate)
		want   float64
	}{
		{
			name:   "baseline posterior",
			p:      0.5915,
			mutate: func(c *Candidate) {},
			want:   0.292208,
		},
		{
			name:   "no edge means no position",
			p:      0.25, // under the 0.2727 breakeven
			mutate: func(c *Candidate) {},
			want:   0,
		},
		{
			name:   "breakeven posterior sizes to zero",
			p:      0.15 / 0.55,
			mutate: func(c *Candidate) {},
			want:   0,
		},
		{
			name:   "microcap cap",
			p:      0.88725,
			mutate: func(c *Candidate) { c.Row.Metric.MarketCapUSD = ptr(30_000.0) },
			want:   0.15,
		},
		{
			name:   "missing market cap counts as microcap",
			p:      0.88725,
			mutate: func(c *Candidate) { c.Row.Metric.MarketCapUSD = nil },
			want:   0.15,
		},
		{
			name:   "insider halving at the lower bound",
			p:      0.5915,
			mutate: func(c *Candidate) { c.InsiderPSI = 0.40 },
			want:   0.146104,
		},
		{
			name:   "insider halving at the upper bound",
			p:      0.5915,
			mutate: func(c *Candidate) { c.InsiderPSI = 0.60 },
			want:   0.146104,
		},
		{
			name:   "just under the halving band",
			p:      0.5915,
			mutate: func(c *Candidate) { c.InsiderPSI = 0.39 },
			want:   0.292208,
		},
		{
			name:   "unverified insider estimate never halves",
			p:      0.5915,
			mutate: func(c *Candidate) { c.InsiderPSI = 0.50; c.InsiderVerified = false },
			want:   0.292208,
		},
		{
			name: "cap applies before the halving",
			p:    0.88725,
			mutate: func(c *Candidate) {
				c.Row.Metric.MarketCapUSD = ptr(30_000.0)
				c.InsiderPSI = 0.50
			},
			want: 0.075,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestCascade()
			cand := h.healthyCandidate("MintK")
			tt.mutate(cand)
			assert.InDelta(t, tt.want, h.cas.kellySize(cand, tt.p), 1e-6)
		})
	}
}

func TestQualityGate(t *testing.T) {
	tests := []struct {
		name      string
		posterior float64
		mutate    func(*Candidate)
		ok        bool
	}{
		{
			name:      "healthy mature token",
			posterior: 0.5915,
			mutate:    func(c *Candidate) {},
			ok:        true,
		},
		{
			name:      "thin real liquidity still trades",
			posterior: 0.5915,
			mutate:    func(c *Candidate) { c.Row.Metric.LiquidityUSD = ptr(250.0) },
			ok:        true,
		},
		{
			name:      "thin virtual liquidity does not",
			posterior: 0.5915,
			mutate: func(c *Candidate) {
				c.Row.Metric.LiquidityUSD = ptr(250.0)
				c.Row.Metric.Flags.VirtualLiquidity = true
			},
			ok: false,
		},
		{
			name:      "young token with launch violence",
			posterior: 0.5915,
			mutate: func(c *Candidate) {
				c.Row.Metric.AgeSeconds = 300
				c.Row.Features.VolumeIntensity = 7.0
				c.Row.Metric.Buys5m = ptr(120)
				c.Row.Features.SmartWalletRatio = 0.08
			},
			ok: true,
		},
		{
			name:      "young token without it",
			posterior: 0.5915,
			mutate:    func(c *Candidate) { c.Row.Metric.AgeSeconds = 300 },
			ok:        false,
		},
		{
			name:      "retail-only read needs a stronger posterior",
			posterior: 0.45,
			mutate:    func(c *Candidate) { c.InsiderPSI = 0.05; c.InsiderVerified = false },
			ok:        false,
		},
		{
			name:      "insider interest relaxes the posterior floor",
			posterior: 0.45,
			mutate:    func(c *Candidate) { c.InsiderPSI = 0.35; c.InsiderVerified = false },
			ok:        true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestCascade()
			cand := h.healthyCandidate("MintG")
			tt.mutate(cand)
			reason, ok := h.cas.quality(cand, tt.posterior)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				assert.Equal(t, ReasonQuality, reason)
			}
		})
	}
}

func TestDegenScore(t *testing.T) {
	row := func(vi float64, buys int, swr, momentum float64) *domain.ScoredRow {
		return &domain.ScoredRow{
			Features: domain.FeatureVector{
				VolumeIntensity:  vi,
				SmartWalletRatio: swr,
				Momentum:         momentum,
			},
			Metric: domain.TokenMetric{Buys5m: ptr(buys)},
		}
	}

	assert.InDelta(t, 41, degenScore(row(1.2, 40, 0, 0.6)), 1e-9)   // 12+20+0+9
	assert.InDelta(t, 13, degenScore(row(0.5, 10, 0, 0.2)), 1e-9)   // 5+5+0+3
	assert.InDelta(t, 100, degenScore(row(10, 100, 0.1, 1.0)), 1e-9) // components cap at 40/30
	assert.InDelta(t, 0, degenScore(row(0, 0, 0, 0)), 1e-9)
}

func TestPumped(t *testing.T) {
	const nowMs = int64(1_750_000_000_000)

	hist := func(rows ...*domain.TokenMetric) []*domain.TokenMetric { return rows }
	at := func(ageMs int64, price float64) *domain.TokenMetric {
		return &domain.TokenMetric{TimestampMs: nowMs - ageMs, PriceUSD: price}
	}

	t.Run("five fold over the window", func(t *testing.T) {
		h := hist(at(60_000, 0.00098), at(360_000, 0.0002))
		assert.True(t, pumped(h, 0.001, nowMs))
	})

	t.Run("under the ratio", func(t *testing.T) {
		h := hist(at(60_000, 0.00098), at(360_000, 0.00021))
		assert.False(t, pumped(h, 0.001, nowMs))
	})

	t.Run("young token measured from earliest snapshot", func(t *testing.T) {
		h := hist(at(60_000, 0.0005), at(120_000, 0.0002))
		assert.True(t, pumped(h, 0.001, nowMs))
	})

	t.Run("reference is the first row beyond the window", func(t *testing.T) {
		// The six-minute row, not the ten-minute one, anchors the ratio.
		h := hist(at(60_000, 0.00098), at(360_000, 0.0005), at(600_000, 0.0001))
		assert.False(t, pumped(h, 0.001, nowMs))
	})

	t.Run("empty history", func(t *testing.T) {
		assert.False(t, pumped(nil, 0.001, nowMs))
	})

	t.Run("zero prices guarded", func(t *testing.T) {
		assert.False(t, pumped(hist(at(360_000, 0)), 0.001, nowMs))
		assert.False(t, pumped(hist(at(360_000, 0.0002)), 0, nowMs))
	})

	t.Run("nil rows skipped", func(t *testing.T) {
		h := append([]*domain.TokenMetric{nil}, at(360_000, 0.0002))
		assert.True(t, pumped(h, 0.001, nowMs))
	})
}

// Walking insider or creator risk downward must never turn a safety pass
// back into a rejection.
func TestSafetyMonotoneInRisk(t *testing.T) {
	h := newTestCascade()

	sweep := func(t *testing.T, set func(*Candidate, float64)) {
		passed := false
		for i := 19; i >= 0; i-- {
			risk := float64(i) * 0.05
			cand := h.healthyCandidate("MintSafe")
			set(cand, risk)
			_, ok := h.cas.checkSafety(cand)
			if passed {
				assert.True(t, ok, "pass must not revert at %.2f", risk)
			}
			passed = passed || ok
		}
		assert.True(t, passed)
	}

	t.Run("insider psi", func(t *testing.T) {
		sweep(t, func(c *Candidate, v float64) { c.InsiderPSI = v })
	})

	t.Run("creator risk", func(t *testing.T) {
		sweep(t, func(c *Candidate, v float64) { c.CreatorRisk = v })
	})
}
