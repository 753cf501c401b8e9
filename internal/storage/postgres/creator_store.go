package postgres

import (
	"context"
	"fmt"
	"time"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/storage"
)

// CreatorStore implements storage.CreatorStore using PostgreSQL.
type CreatorStore struct {
	pool *Pool
}

// NewCreatorStore creates a new CreatorStore.
func NewCreatorStore(pool *Pool) *CreatorStore {
	return &CreatorStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CreatorStore = (*CreatorStore)(nil)

// Upsert inserts the profile or replaces its stats.
func (s *CreatorStore) Upsert(ctx context.Context, p *domain.CreatorProfile) error {
	if p == nil || p.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO creator_profiles (
			address, tokens_launched, rugs, rug_ratio, avg_lifespan_hours, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (address) DO UPDATE SET
			tokens_launched    = EXCLUDED.tokens_launched,
			rugs               = EXCLUDED.rugs,
			rug_ratio          = EXCLUDED.rug_ratio,
			avg_lifespan_hours = EXCLUDED.avg_lifespan_hours,
			updated_at         = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		p.Address,
		p.TokensLaunched,
		p.Rugs,
		p.RugRatio,
		p.AvgLifespanHours,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert creator profile: %w", err)
	}
	return nil
}

// ApplyStats patches an existing profile in place, inserting a blank one
// first if the creator is new. Nil patch fields keep their stored value;
// the launch counter is incremented inside the statement so concurrent
// create events never lose a count.
func (s *CreatorStore) ApplyStats(ctx context.Context, address string, patch domain.CreatorStatsPatch) error {
	if address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO creator_profiles (
			address, tokens_launched, rugs, rug_ratio, avg_lifespan_hours, updated_at
		) VALUES ($1, $2, 0, COALESCE($3, 0), $4, $5)
		ON CONFLICT (address) DO UPDATE SET
			tokens_launched    = creator_profiles.tokens_launched + $2,
			rug_ratio          = COALESCE($3, creator_profiles.rug_ratio),
			avg_lifespan_hours = COALESCE($4, creator_profiles.avg_lifespan_hours),
			updated_at         = $5
	`

	_, err := s.pool.Exec(ctx, query,
		address,
		patch.LaunchDelta,
		patch.RugRatio,
		patch.AvgLifespanHours,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("apply creator stats: %w", err)
	}
	return nil
}

// GetByAddress retrieves a profile. Returns ErrNotFound if not exists.
func (s *CreatorStore) GetByAddress(ctx context.Context, address string) (*domain.CreatorProfile, error) {
	query := `
		SELECT address, tokens_launched, rugs, rug_ratio, avg_lifespan_hours, updated_at
		FROM creator_profiles
		WHERE address = $1
	`

	var p domain.CreatorProfile
	err := s.pool.QueryRow(ctx, query, address).Scan(
		&p.Address,
		&p.TokensLaunched,
		&p.Rugs,
		&p.RugRatio,
		&p.AvgLifespanHours,
		&p.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get creator profile: %w", err)
	}
	return &p, nil
}
