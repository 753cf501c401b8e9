package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// Upsert inserts the token or refreshes its mutable fields.
// Immutable discovery facts (source, first_seen_at) keep their first value.
func (s *TokenStore) Upsert(ctx context.Context, t *domain.Token) error {
	if t == nil || t.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO tokens (
			mint, symbol, name, creator, narrative, source, bonding_curve, migrated,
			mint_authority, freeze_authority, authorities_verified, first_seen_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (mint) DO UPDATE SET
			symbol               = COALESCE(EXCLUDED.symbol, tokens.symbol),
			name                 = COALESCE(EXCLUDED.name, tokens.name),
			creator              = COALESCE(EXCLUDED.creator, tokens.creator),
			narrative            = COALESCE(EXCLUDED.narrative, tokens.narrative),
			bonding_curve        = EXCLUDED.bonding_curve,
			migrated             = tokens.migrated OR EXCLUDED.migrated,
			mint_authority       = CASE WHEN EXCLUDED.authorities_verified THEN EXCLUDED.mint_authority ELSE tokens.mint_authority END,
			freeze_authority     = CASE WHEN EXCLUDED.authorities_verified THEN EXCLUDED.freeze_authority ELSE tokens.freeze_authority END,
			authorities_verified = tokens.authorities_verified OR EXCLUDED.authorities_verified,
			updated_at           = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		t.Mint,
		t.Symbol,
		t.Name,
		t.Creator,
		t.Narrative,
		string(t.Source),
		t.BondingCurve,
		t.Migrated,
		t.MintAuthority,
		t.FreezeAuthority,
		t.AuthoritiesVerified,
		t.FirstSeenAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	return nil
}

// GetByMint retrieves a token by mint. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByMint(ctx context.Context, mint string) (*domain.Token, error) {
	query := `
		SELECT mint, symbol, name, creator, narrative, source, bonding_curve, migrated,
		       mint_authority, freeze_authority, authorities_verified, first_seen_at, updated_at
		FROM tokens
		WHERE mint = $1
	`

	row := s.pool.QueryRow(ctx, query, mint)
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by mint: %w", err)
	}
	return t, nil
}

// ListActive retrieves tokens first seen within the window, newest first.
func (s *TokenStore) ListActive(ctx context.Context, window time.Duration) ([]*domain.Token, error) {
	query := `
		SELECT mint, symbol, name, creator, narrative, source, bonding_curve, migrated,
		       mint_authority, freeze_authority, authorities_verified, first_seen_at, updated_at
		FROM tokens
		WHERE first_seen_at >= $1
		ORDER BY first_seen_at DESC, mint ASC
	`

	cutoff := time.Now().Add(-window).UnixMilli()
	rows, err := s.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list active tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}
	return tokens, nil
}

// ListByCreator retrieves every token launched by the creator, newest first.
func (s *TokenStore) ListByCreator(ctx context.Context, creator string) ([]*domain.Token, error) {
	if creator == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT mint, symbol, name, creator, narrative, source, bonding_curve, migrated,
		       mint_authority, freeze_authority, authorities_verified, first_seen_at, updated_at
		FROM tokens
		WHERE creator = $1
		ORDER BY first_seen_at DESC, mint ASC
	`

	rows, err := s.pool.Query(ctx, query, creator)
	if err != nil {
		return nil, fmt.Errorf("list tokens by creator: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}
	return tokens, nil
}

// scanToken scans a single row into a Token.
func scanToken(row pgx.Row) (*domain.Token, error) {
	var t domain.Token
	var sourceStr string

	err := row.Scan(
		&t.Mint,
		&t.Symbol,
		&t.Name,
		&t.Creator,
		&t.Narrative,
		&sourceStr,
		&t.BondingCurve,
		&t.Migrated,
		&t.MintAuthority,
		&t.FreezeAuthority,
		&t.AuthoritiesVerified,
		&t.FirstSeenAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Source = domain.Source(sourceStr)
	return &t, nil
}
