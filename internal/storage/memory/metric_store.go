package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/storage"
)

// MetricStore is an in-memory implementation of storage.MetricStore.
// Rows are append-only.
type MetricStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.TokenMetric // keyed by mint
	keys map[metricKey]struct{}
}

type metricKey struct {
	mint        string
	timestampMs int64
}

// NewMetricStore creates a new in-memory metric store.
func NewMetricStore() *MetricStore {
	return &MetricStore{
		data: make(map[string][]*domain.TokenMetric),
		keys: make(map[metricKey]struct{}),
	}
}

// Insert appends one snapshot. Returns ErrDuplicateKey on a replayed
// (mint, timestamp_ms) pair.
func (s *MetricStore) Insert(_ context.Context, m *domain.TokenMetric) error {
	if m == nil || m.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(m)
}

// InsertBulk appends multiple snapshots atomically. Fails the entire
// batch on any duplicate.
func (s *MetricStore) InsertBulk(_ context.Context, ms []*domain.TokenMetric) error {
	if len(ms) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before touching state.
	seen := make(map[metricKey]struct{}, len(ms))
	for _, m := range ms {
		if m == nil || m.Mint == "" {
			return storage.ErrInvalidInput
		}
		k := metricKey{m.Mint, m.TimestampMs}
		if _, dup := seen[k]; dup {
			return storage.ErrDuplicateKey
		}
		if _, dup := s.keys[k]; dup {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, m := range ms {
		if err := s.insertLocked(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *MetricStore) insertLocked(m *domain.TokenMetric) error {
	k := metricKey{m.Mint, m.TimestampMs}
	if _, dup := s.keys[k]; dup {
		return storage.ErrDuplicateKey
	}

	metricCopy := *m
	s.data[m.Mint] = append(s.data[m.Mint], &metricCopy)
	s.keys[k] = struct{}{}
	return nil
}

// Recent retrieves snapshots for a mint within the window, newest first.
func (s *MetricStore) Recent(_ context.Context, mint string, window time.Duration) ([]*domain.TokenMetric, error) {
	cutoff := time.Now().Add(-window).UnixMilli()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TokenMetric
	for _, m := range s.data[mint] {
		if m.TimestampMs >= cutoff {
			metricCopy := *m
			result = append(result, &metricCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs > result[j].TimestampMs
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.MetricStore = (*MetricStore)(nil)
