package ingestion

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBook(retention time.Duration, maxPerMint int) (*TradeBook, time.Time) {
	b := NewTradeBook(retention, maxPerMint)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	return b, now
}

func TestTradeBook_Tally(t *testing.T) {
	b, now := newTestBook(time.Hour, 0)
	nowMs := now.UnixMilli()

	b.Record("mint1", TradeRecord{Trader: "w1", SolAmount: 2.0, Buy: true, TimestampMs: nowMs - 60_000})
	b.Record("mint1", TradeRecord{Trader: "w2", SolAmount: 1.5, Buy: true, TimestampMs: nowMs - 30_000})
	b.Record("mint1", TradeRecord{Trader: "w1", SolAmount: 0.5, Buy: true, TimestampMs: nowMs - 10_000})
	b.Record("mint1", TradeRecord{Trader: "w3", SolAmount: 3.0, Buy: false, TimestampMs: nowMs - 5_000})

	// Outside the window.
	b.Record("mint1", TradeRecord{Trader: "w9", SolAmount: 10, Buy: true, TimestampMs: nowMs - 10*60_000})

	tally := b.Tally("mint1", 5*time.Minute)
	assert.Equal(t, 3, tally.Buys)
	assert.Equal(t, 1, tally.Sells)
	assert.InDelta(t, 4.0, tally.BuyVolumeSol, 1e-9)
	assert.InDelta(t, 3.0, tally.SellVolumeSol, 1e-9)
	assert.Equal(t, 2, tally.UniqueBuyers)
}

func TestTradeBook_TallyUnknownMint(t *testing.T) {
	b, _ := newTestBook(time.Hour, 0)

	tally := b.Tally("nope", 5*time.Minute)
	assert.Zero(t, tally.Buys)
	assert.Zero(t, tally.Sells)
	assert.Zero(t, tally.UniqueBuyers)
}

func TestTradeBook_BuyerShares(t *testing.T) {
	b, now := newTestBook(time.Hour, 0)
	nowMs := now.UnixMilli()

	b.Record("mint1", TradeRecord{Trader: "w1", SolAmount: 3.0, Buy: true, TimestampMs: nowMs - 1000})
	b.Record("mint1", TradeRecord{Trader: "w2", SolAmount: 1.0, Buy: true, TimestampMs: nowMs - 1000})
	b.Record("mint1", TradeRecord{Trader: "w3", SolAmount: 5.0, Buy: false, TimestampMs: nowMs - 1000})

	shares := b.BuyerShares("mint1", 5*time.Minute)
	require.Len(t, shares, 2)
	assert.InDelta(t, 0.75, shares["w1"], 1e-9)
	assert.InDelta(t, 0.25, shares["w2"], 1e-9)

	sum := 0.0
	for _, s := range shares {
		sum += s
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestTradeBook_BuyerSharesNoBuys(t *testing.T) {
	b, now := newTestBook(time.Hour, 0)

	b.Record("mint1", TradeRecord{Trader: "w1", SolAmount: 5.0, Buy: false, TimestampMs: now.UnixMilli()})
	assert.Nil(t, b.BuyerShares("mint1", 5*time.Minute))
}

func TestTradeBook_ActiveWallets(t *testing.T) {
	b, now := newTestBook(time.Hour, 0)
	nowMs := now.UnixMilli()

	b.Record("mint1", TradeRecord{Trader: "wB", SolAmount: 1, Buy: true, TimestampMs: nowMs - 1000})
	b.Record("mint1", TradeRecord{Trader: "wA", SolAmount: 1, Buy: false, TimestampMs: nowMs - 2000})
	b.Record("mint1", TradeRecord{Trader: "wB", SolAmount: 1, Buy: true, TimestampMs: nowMs - 500})
	b.Touch("mint1", "wC", nowMs-100)

	// Outside the window.
	b.Record("mint1", TradeRecord{Trader: "wOld", SolAmount: 1, Buy: true, TimestampMs: nowMs - 20*60_000})
	b.Touch("mint1", "wOldTouch", nowMs-20*60_000)

	assert.Equal(t, []string{"wA", "wB", "wC"}, b.ActiveWallets("mint1", 10*time.Minute))
}

func TestTradeBook_Buys(t *testing.T) {
	b, now := newTestBook(time.Hour, 0)
	nowMs := now.UnixMilli()

	b.Record("mint1", TradeRecord{Trader: "w1", SolAmount: 1, Buy: true, TimestampMs: nowMs - 3000})
	b.Record("mint1", TradeRecord{Trader: "w2", SolAmount: 1, Buy: false, TimestampMs: nowMs - 2000})
	b.Record("mint1", TradeRecord{Trader: "w3", SolAmount: 1, Buy: true, TimestampMs: nowMs - 1000})

	buys := b.Buys("mint1", 5*time.Minute)
	require.Len(t, buys, 2)
	assert.Equal(t, "w1", buys[0].Trader)
	assert.Equal(t, "w3", buys[1].Trader)
	assert.LessOrEqual(t, buys[0].TimestampMs, buys[1].TimestampMs)
}

func TestTradeBook_PerMintCap(t *testing.T) {
	b, now := newTestBook(time.Hour, 3)
	nowMs := now.UnixMilli()

	for i := 0; i < 5; i++ {
		b.Record("mint1", TradeRecord{
			Trader:      fmt.Sprintf("w%d", i),
			SolAmount:   1,
			Buy:         true,
			TimestampMs: nowMs - int64(5-i)*1000,
		})
	}

	buys := b.Buys("mint1", time.Hour)
	require.Len(t, buys, 3)
	assert.Equal(t, "w2", buys[0].Trader, "oldest records should be trimmed first")
	assert.Equal(t, "w4", buys[2].Trader)
}

func TestTradeBook_Sweep(t *testing.T) {
	b, now := newTestBook(10*time.Minute, 0)
	nowMs := now.UnixMilli()

	// Everything on mint1 is stale; mint2 keeps one fresh record.
	b.Record("mint1", TradeRecord{Trader: "w1", SolAmount: 1, Buy: true, TimestampMs: nowMs - 30*60_000})
	b.Record("mint2", TradeRecord{Trader: "w2", SolAmount: 1, Buy: true, TimestampMs: nowMs - 30*60_000})
	b.Record("mint2", TradeRecord{Trader: "w3", SolAmount: 1, Buy: true, TimestampMs: nowMs - 1000})
	b.Touch("mint1", "wT", nowMs-30*60_000)

	removed := b.Sweep()
	assert.Equal(t, 1, removed)

	assert.Equal(t, []string{"mint2"}, b.TrackedMints())
	assert.Empty(t, b.ActiveWallets("mint1", time.Hour))

	tally := b.Tally("mint2", time.Hour)
	assert.Equal(t, 1, tally.Buys)
}
