package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/storage"
)

// WalletStore implements storage.WalletStore using PostgreSQL.
type WalletStore struct {
	pool *Pool
}

// NewWalletStore creates a new WalletStore.
func NewWalletStore(pool *Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WalletStore = (*WalletStore)(nil)

// Upsert inserts the profile or replaces its stats.
func (s *WalletStore) Upsert(ctx context.Context, p *domain.WalletProfile) error {
	if p == nil || p.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO wallet_profiles (
			address, avg_roi, total_trades, win_rate, class, smart, verified,
			last_active_ms, refreshed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (address) DO UPDATE SET
			avg_roi        = EXCLUDED.avg_roi,
			total_trades   = EXCLUDED.total_trades,
			win_rate       = EXCLUDED.win_rate,
			class          = EXCLUDED.class,
			smart          = EXCLUDED.smart,
			verified       = EXCLUDED.verified,
			last_active_ms = GREATEST(wallet_profiles.last_active_ms, EXCLUDED.last_active_ms),
			refreshed_at   = EXCLUDED.refreshed_at
	`

	_, err := s.pool.Exec(ctx, query,
		p.Address,
		p.AvgROI,
		p.TotalTrades,
		p.WinRate,
		string(p.Class),
		p.Smart,
		p.Verified,
		p.LastActiveMs,
		p.RefreshedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert wallet profile: %w", err)
	}
	return nil
}

// GetByAddress retrieves a profile. Returns ErrNotFound if not exists.
func (s *WalletStore) GetByAddress(ctx context.Context, address string) (*domain.WalletProfile, error) {
	query := `
		SELECT address, avg_roi, total_trades, win_rate, class, smart, verified,
		       last_active_ms, refreshed_at
		FROM wallet_profiles
		WHERE address = $1
	`

	row := s.pool.QueryRow(ctx, query, address)
	p, err := scanWalletProfile(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get wallet profile: %w", err)
	}
	return p, nil
}

// ListSmart retrieves all profiles currently flagged smart.
func (s *WalletStore) ListSmart(ctx context.Context) ([]*domain.WalletProfile, error) {
	query := `
		SELECT address, avg_roi, total_trades, win_rate, class, smart, verified,
		       last_active_ms, refreshed_at
		FROM wallet_profiles
		WHERE smart
		ORDER BY avg_roi DESC, address ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list smart wallets: %w", err)
	}
	defer rows.Close()

	var profiles []*domain.WalletProfile
	for rows.Next() {
		p, err := scanWalletProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return profiles, nil
}

// ListVerified retrieves all profiles built from fetched history.
func (s *WalletStore) ListVerified(ctx context.Context) ([]*domain.WalletProfile, error) {
	query := `
		SELECT address, avg_roi, total_trades, win_rate, class, smart, verified,
		       last_active_ms, refreshed_at
		FROM wallet_profiles
		WHERE verified
		ORDER BY address ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list verified wallets: %w", err)
	}
	defer rows.Close()

	var profiles []*domain.WalletProfile
	for rows.Next() {
		p, err := scanWalletProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return profiles, nil
}

// scanWalletProfile scans a single row into a WalletProfile.
func scanWalletProfile(row pgx.Row) (*domain.WalletProfile, error) {
	var p domain.WalletProfile
	var classStr string

	err := row.Scan(
		&p.Address,
		&p.AvgROI,
		&p.TotalTrades,
		&p.WinRate,
		&classStr,
		&p.Smart,
		&p.Verified,
		&p.LastActiveMs,
		&p.RefreshedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Class = domain.WalletClass(classStr)
	return &p, nil
}
