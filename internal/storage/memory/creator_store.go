package memory

import (
	"context"
	"sync"
	"time"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/storage"
)

// CreatorStore is an in-memory implementation of storage.CreatorStore.
type CreatorStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CreatorProfile // keyed by address
}

// NewCreatorStore creates a new in-memory creator store.
func NewCreatorStore() *CreatorStore {
	return &CreatorStore{
		data: make(map[string]*domain.CreatorProfile),
	}
}

// Upsert inserts the profile or replaces its stats.
func (s *CreatorStore) Upsert(_ context.Context, p *domain.CreatorProfile) error {
	if p == nil || p.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profileCopy := *p
	s.data[p.Address] = &profileCopy
	return nil
}

// ApplyStats patches an existing profile in place, inserting a blank one
// first if the creator is new. Nil patch fields are kept.
func (s *CreatorStore) ApplyStats(_ context.Context, address string, patch domain.CreatorStatsPatch) error {
	if address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.data[address]
	if !exists {
		p = &domain.CreatorProfile{Address: address}
		s.data[address] = p
	}

	p.TokensLaunched += patch.LaunchDelta
	if patch.RugRatio != nil {
		p.RugRatio = *patch.RugRatio
	}
	if patch.AvgLifespanHours != nil {
		v := *patch.AvgLifespanHours
		p.AvgLifespanHours = &v
	}
	p.UpdatedAt = time.Now().UnixMilli()
	return nil
}

// GetByAddress retrieves a profile. Returns ErrNotFound if not exists.
func (s *CreatorStore) GetByAddress(_ context.Context, address string) (*domain.CreatorProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}

	profileCopy := *p
	return &profileCopy, nil
}

// Verify interface compliance at compile time.
var _ storage.CreatorStore = (*CreatorStore)(nil)
