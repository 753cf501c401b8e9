package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
type SignalStore struct {
	mu     sync.RWMutex
	byID   map[string]*domain.Signal
	byMint map[string][]*domain.Signal
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		byID:   make(map[string]*domain.Signal),
		byMint: make(map[string][]*domain.Signal),
	}
}

// Insert adds a new signal. Returns ErrDuplicateKey if signal_id exists.
func (s *SignalStore) Insert(_ context.Context, sig *domain.Signal) error {
	if sig == nil || sig.SignalID == "" || sig.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[sig.SignalID]; exists {
		return storage.ErrDuplicateKey
	}

	sigCopy := *sig
	sigCopy.Reasons = append([]string(nil), sig.Reasons...)
	s.byID[sig.SignalID] = &sigCopy
	s.byMint[sig.Mint] = append(s.byMint[sig.Mint], &sigCopy)
	return nil
}

// HasRecent reports whether any signal for the mint was emitted within
// the window ending now.
func (s *SignalStore) HasRecent(_ context.Context, mint string, window time.Duration) (bool, error) {
	cutoff := time.Now().Add(-window).UnixMilli()

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sig := range s.byMint[mint] {
		if sig.EmittedAt >= cutoff {
			return true, nil
		}
	}
	return false, nil
}

// ListRecent retrieves signals emitted within the window, newest first.
func (s *SignalStore) ListRecent(_ context.Context, window time.Duration) ([]*domain.Signal, error) {
	cutoff := time.Now().Add(-window).UnixMilli()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Signal
	for _, sig := range s.byID {
		if sig.EmittedAt >= cutoff {
			sigCopy := *sig
			sigCopy.Reasons = append([]string(nil), sig.Reasons...)
			result = append(result, &sigCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].EmittedAt != result[j].EmittedAt {
			return result[i].EmittedAt > result[j].EmittedAt
		}
		return result[i].SignalID < result[j].SignalID
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.SignalStore = (*SignalStore)(nil)
