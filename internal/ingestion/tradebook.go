package ingestion

import (
	"sort"
	"sync"
	"time"
)

// TradeBook defaults.
const (
	DefaultRetention  = 60 * time.Minute
	DefaultMaxPerMint = 4096
)

// TradeRecord is one stream-observed trade.
type TradeRecord struct {
	Trader      string
	SolAmount   float64
	Buy         bool
	TimestampMs int64
}

// Tally summarizes a mint's trades over a window.
type Tally struct {
	Buys          int
	Sells         int
	BuyVolumeSol  float64
	SellVolumeSol float64
	UniqueBuyers  int
}

// TradeBook keeps rolling per-mint trade history observed on the stream.
// It backs the trade tallies, buyer concentration, and wallet activity that
// the pair aggregator cannot provide for tokens still on the bonding curve.
type TradeBook struct {
	mu      sync.RWMutex
	byMint  map[string][]TradeRecord
	touches map[string]map[string]int64 // mint -> wallet -> last seen (ms)

	retention  time.Duration
	maxPerMint int

	now func() time.Time
}

// NewTradeBook creates a trade book that retains records for the given
// duration, capped per mint.
func NewTradeBook(retention time.Duration, maxPerMint int) *TradeBook {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if maxPerMint <= 0 {
		maxPerMint = DefaultMaxPerMint
	}
	return &TradeBook{
		byMint:     make(map[string][]TradeRecord),
		touches:    make(map[string]map[string]int64),
		retention:  retention,
		maxPerMint: maxPerMint,
		now:        time.Now,
	}
}

// Touch marks a wallet active on a mint without recording a trade.
// Migration events touch their signer this way.
func (b *TradeBook) Touch(mint, wallet string, tsMs int64) {
	if wallet == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	m, ok := b.touches[mint]
	if !ok {
		m = make(map[string]int64)
		b.touches[mint] = m
	}
	m[wallet] = tsMs
}

// Record appends a trade for a mint, trimming the oldest entries when the
// per-mint cap is exceeded. Records arrive in receive order, so the slice
// stays sorted by timestamp.
func (b *TradeBook) Record(mint string, rec TradeRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	records := append(b.byMint[mint], rec)
	if len(records) > b.maxPerMint {
		records = records[len(records)-b.maxPerMint:]
	}
	b.byMint[mint] = records
}

// Tally summarizes a mint's trades within the window ending now.
func (b *TradeBook) Tally(mint string, window time.Duration) Tally {
	cutoff := b.now().Add(-window).UnixMilli()

	b.mu.RLock()
	defer b.mu.RUnlock()

	var t Tally
	buyers := make(map[string]bool)
	for _, rec := range b.byMint[mint] {
		if rec.TimestampMs < cutoff {
			continue
		}
		if rec.Buy {
			t.Buys++
			t.BuyVolumeSol += rec.SolAmount
			buyers[rec.Trader] = true
		} else {
			t.Sells++
			t.SellVolumeSol += rec.SolAmount
		}
	}
	t.UniqueBuyers = len(buyers)
	return t
}

// BuyerShares returns each buyer's share of buy volume within the window.
// Shares sum to 1 when any buy volume exists.
func (b *TradeBook) BuyerShares(mint string, window time.Duration) map[string]float64 {
	cutoff := b.now().Add(-window).UnixMilli()

	b.mu.RLock()
	defer b.mu.RUnlock()

	volumes := make(map[string]float64)
	total := 0.0
	for _, rec := range b.byMint[mint] {
		if rec.TimestampMs < cutoff || !rec.Buy {
			continue
		}
		volumes[rec.Trader] += rec.SolAmount
		total += rec.SolAmount
	}

	if total <= 0 {
		return nil
	}

	shares := make(map[string]float64, len(volumes))
	for trader, vol := range volumes {
		shares[trader] = vol / total
	}
	return shares
}

// ActiveWallets returns the distinct wallets that traded the mint within the
// window, sorted for deterministic output.
func (b *TradeBook) ActiveWallets(mint string, window time.Duration) []string {
	cutoff := b.now().Add(-window).UnixMilli()

	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[string]bool)
	for _, rec := range b.byMint[mint] {
		if rec.TimestampMs < cutoff || rec.Trader == "" {
			continue
		}
		seen[rec.Trader] = true
	}
	for wallet, ts := range b.touches[mint] {
		if ts >= cutoff {
			seen[wallet] = true
		}
	}

	wallets := make([]string, 0, len(seen))
	for w := range seen {
		wallets = append(wallets, w)
	}
	sort.Strings(wallets)
	return wallets
}

// Buys returns the mint's buy records within the window in timestamp order.
func (b *TradeBook) Buys(mint string, window time.Duration) []TradeRecord {
	cutoff := b.now().Add(-window).UnixMilli()

	b.mu.RLock()
	defer b.mu.RUnlock()

	var buys []TradeRecord
	for _, rec := range b.byMint[mint] {
		if rec.TimestampMs < cutoff || !rec.Buy {
			continue
		}
		buys = append(buys, rec)
	}
	return buys
}

// Sweep drops records older than the retention window and forgets mints with
// nothing left. Returns the number of mints removed.
func (b *TradeBook) Sweep() int {
	cutoff := b.now().Add(-b.retention).UnixMilli()

	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for mint, records := range b.byMint {
		keep := records[:0]
		for _, rec := range records {
			if rec.TimestampMs >= cutoff {
				keep = append(keep, rec)
			}
		}
		if len(keep) == 0 {
			delete(b.byMint, mint)
			removed++
			continue
		}
		b.byMint[mint] = keep
	}
	for mint, wallets := range b.touches {
		for wallet, ts := range wallets {
			if ts < cutoff {
				delete(wallets, wallet)
			}
		}
		if len(wallets) == 0 {
			delete(b.touches, mint)
		}
	}
	return removed
}

// TrackedMints returns the mints with retained trade history, sorted.
func (b *TradeBook) TrackedMints() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	mints := make([]string, 0, len(b.byMint))
	for mint := range b.byMint {
		mints = append(mints, mint)
	}
	sort.Strings(mints)
	return mints
}
