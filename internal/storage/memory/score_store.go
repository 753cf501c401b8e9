package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/storage"
)

// ScoreStore is an in-memory implementation of storage.ScoreStore.
type ScoreStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.ScoredRow // keyed by mint, insertion order
}

// NewScoreStore creates a new in-memory score store.
func NewScoreStore() *ScoreStore {
	return &ScoreStore{
		data: make(map[string][]*domain.ScoredRow),
	}
}

// Insert appends one scored row.
func (s *ScoreStore) Insert(_ context.Context, r *domain.ScoredRow) error {
	if r == nil || r.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rowCopy := *r
	s.data[r.Mint] = append(s.data[r.Mint], &rowCopy)
	return nil
}

// LatestAll retrieves the most recent score per token within the window,
// one row per mint, newest first.
func (s *ScoreStore) LatestAll(_ context.Context, window time.Duration) ([]*domain.InstabilityPoint, error) {
	cutoff := time.Now().Add(-window).UnixMilli()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var points []*domain.InstabilityPoint
	for mint, rows := range s.data {
		var best *domain.ScoredRow
		for _, r := range rows {
			if r.TimestampMs < cutoff {
				continue
			}
			if best == nil || r.TimestampMs > best.TimestampMs {
				best = r
			}
		}
		if best == nil {
			continue
		}
		points = append(points, &domain.InstabilityPoint{
			Mint:         mint,
			Instability:  best.Instability,
			PriceUSD:     best.Metric.PriceUSD,
			MarketCapUSD: best.Metric.MarketCapUSD,
			LiquidityUSD: best.Metric.LiquidityUSD,
			Holders:      best.Metric.Holders,
			Top10Ratio:   best.Metric.Top10Ratio,
			TimestampMs:  best.TimestampMs,
		})
	}

	sort.Slice(points, func(i, j int) bool {
		if points[i].TimestampMs != points[j].TimestampMs {
			return points[i].TimestampMs > points[j].TimestampMs
		}
		return points[i].Mint < points[j].Mint
	})

	return points, nil
}

// Verify interface compliance at compile time.
var _ storage.ScoreStore = (*ScoreStore)(nil)
