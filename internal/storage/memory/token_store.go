package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Token // keyed by mint
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		data: make(map[string]*domain.Token),
	}
}

// Upsert inserts the token or refreshes its mutable fields.
// Immutable discovery facts (source, first_seen_at) keep their first value.
func (s *TokenStore) Upsert(_ context.Context, t *domain.Token) error {
	if t == nil || t.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data[t.Mint]
	if !ok {
		tokenCopy := *t
		s.data[t.Mint] = &tokenCopy
		return nil
	}

	if t.Symbol != nil {
		existing.Symbol = t.Symbol
	}
	if t.Name != nil {
		existing.Name = t.Name
	}
	if t.Creator != nil {
		existing.Creator = t.Creator
	}
	if t.Narrative != nil {
		existing.Narrative = t.Narrative
	}
	if t.AuthoritiesVerified {
		existing.MintAuthority = t.MintAuthority
		existing.FreezeAuthority = t.FreezeAuthority
		existing.AuthoritiesVerified = true
	}
	existing.BondingCurve = t.BondingCurve
	existing.Migrated = existing.Migrated || t.Migrated
	existing.UpdatedAt = t.UpdatedAt
	return nil
}

// GetByMint retrieves a token by mint. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByMint(_ context.Context, mint string) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}

	tokenCopy := *t
	return &tokenCopy, nil
}

// ListActive retrieves tokens first seen within the window, newest first.
func (s *TokenStore) ListActive(_ context.Context, window time.Duration) ([]*domain.Token, error) {
	cutoff := time.Now().Add(-window).UnixMilli()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Token
	for _, t := range s.data {
		if t.FirstSeenAt >= cutoff {
			tokenCopy := *t
			result = append(result, &tokenCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].FirstSeenAt != result[j].FirstSeenAt {
			return result[i].FirstSeenAt > result[j].FirstSeenAt
		}
		return result[i].Mint < result[j].Mint
	})

	return result, nil
}

// ListByCreator retrieves every token launched by the creator, newest first.
func (s *TokenStore) ListByCreator(_ context.Context, creator string) ([]*domain.Token, error) {
	if creator == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Token
	for _, t := range s.data {
		if t.Creator != nil && *t.Creator == creator {
			tokenCopy := *t
			result = append(result, &tokenCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].FirstSeenAt != result[j].FirstSeenAt {
			return result[i].FirstSeenAt > result[j].FirstSeenAt
		}
		return result[i].Mint < result[j].Mint
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.TokenStore = (*TokenStore)(nil)
