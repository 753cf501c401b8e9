// Package candles synthesizes OHLCV bars from stored metric history and
// grades short-term price structure for the signal cascade's pattern gate.
package candles

import (
	"math"
	"time"

	"solana-meme-radar/internal/domain"
)

// Bar is one fixed-interval OHLCV bucket.
type Bar struct {
	OpenMs    int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	VolumeUSD float64
	Buys      int
	Sells     int
}

func (b Bar) green() bool { return b.Close > b.Open }

func (b Bar) body() float64 { return math.Abs(b.Close - b.Open) }

func (b Bar) lowerWick() float64 { return math.Min(b.Open, b.Close) - b.Low }

// FromMetrics buckets metric history (newest first, as stored) into
// interval-wide bars, returned oldest first. Rows without a usable price
// are skipped. Volume and trade tallies are trailing windows on the feed,
// so each bar carries its last snapshot's values rather than a sum.
func FromMetrics(history []*domain.TokenMetric, interval time.Duration) []Bar {
	intervalMs := interval.Milliseconds()
	if intervalMs <= 0 {
		return nil
	}

	var bars []Bar
	open := false
	var cur Bar
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m == nil || !isFinite(m.PriceUSD) || m.PriceUSD <= 0 {
			continue
		}

		bucket := m.TimestampMs - m.TimestampMs%intervalMs
		if !open || bucket != cur.OpenMs {
			if open {
				bars = append(bars, cur)
			}
			cur = Bar{OpenMs: bucket, Open: m.PriceUSD, High: m.PriceUSD, Low: m.PriceUSD}
			open = true
		}

		cur.Close = m.PriceUSD
		if m.PriceUSD > cur.High {
			cur.High = m.PriceUSD
		}
		if m.PriceUSD < cur.Low {
			cur.Low = m.PriceUSD
		}
		if m.Volume5mUSD != nil && isFinite(*m.Volume5mUSD) && *m.Volume5mUSD >= 0 {
			cur.VolumeUSD = *m.Volume5mUSD
		}
		if m.Buys5m != nil && *m.Buys5m >= 0 {
			cur.Buys = *m.Buys5m
		}
		if m.Sells5m != nil && *m.Sells5m >= 0 {
			cur.Sells = *m.Sells5m
		}
	}
	if open {
		bars = append(bars, cur)
	}
	return bars
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
