package memory

import (
	"context"
	"sort"
	"sync"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/storage"
)

// WalletStore is an in-memory implementation of storage.WalletStore.
type WalletStore struct {
	mu   sync.RWMutex
	data map[string]*domain.WalletProfile // keyed by address
}

// NewWalletStore creates a new in-memory wallet store.
func NewWalletStore() *WalletStore {
	return &WalletStore{
		data: make(map[string]*domain.WalletProfile),
	}
}

// Upsert inserts the profile or replaces its stats.
func (s *WalletStore) Upsert(_ context.Context, p *domain.WalletProfile) error {
	if p == nil || p.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profileCopy := *p
	s.data[p.Address] = &profileCopy
	return nil
}

// GetByAddress retrieves a profile. Returns ErrNotFound if not exists.
func (s *WalletStore) GetByAddress(_ context.Context, address string) (*domain.WalletProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}

	profileCopy := *p
	return &profileCopy, nil
}

// ListSmart retrieves all profiles currently flagged smart.
func (s *WalletStore) ListSmart(_ context.Context) ([]*domain.WalletProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.WalletProfile
	for _, p := range s.data {
		if p.Smart {
			profileCopy := *p
			result = append(result, &profileCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].AvgROI != result[j].AvgROI {
			return result[i].AvgROI > result[j].AvgROI
		}
		return result[i].Address < result[j].Address
	})

	return result, nil
}

// ListVerified retrieves all profiles built from fetched history.
func (s *WalletStore) ListVerified(_ context.Context) ([]*domain.WalletProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.WalletProfile
	for _, p := range s.data {
		if p.Verified {
			profileCopy := *p
			result = append(result, &profileCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Address < result[j].Address
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.WalletStore = (*WalletStore)(nil)
