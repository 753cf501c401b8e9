package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/observability"
	"solana-meme-radar/internal/storage"
)

// MetricStore implements storage.MetricStore using PostgreSQL.
// Rows are append-only.
type MetricStore struct {
	pool *Pool
}

// NewMetricStore creates a new MetricStore.
func NewMetricStore(pool *Pool) *MetricStore {
	return &MetricStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MetricStore = (*MetricStore)(nil)

const insertMetricQuery = `
	INSERT INTO token_metrics (
		mint, timestamp_ms, price_usd, market_cap_usd, liquidity_usd,
		volume_5m_usd, volume_60m_usd, buys_5m, sells_5m, holders,
		top10_ratio, smart_wallets, bonding_complete, age_seconds, flags
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
`

// Insert appends one snapshot. Returns ErrDuplicateKey on a replayed
// (mint, timestamp_ms) pair.
func (s *MetricStore) Insert(ctx context.Context, m *domain.TokenMetric) error {
	if m == nil || m.Mint == "" {
		return storage.ErrInvalidInput
	}

	flags, err := json.Marshal(m.Flags)
	if err != nil {
		return fmt.Errorf("marshal metric flags: %w", err)
	}

	_, err = s.pool.Exec(ctx, insertMetricQuery,
		m.Mint,
		m.TimestampMs,
		m.PriceUSD,
		m.MarketCapUSD,
		m.LiquidityUSD,
		m.Volume5mUSD,
		m.Volume60mUSD,
		m.Buys5m,
		m.Sells5m,
		m.Holders,
		m.Top10Ratio,
		m.SmartWallets,
		m.BondingComplete,
		m.AgeSeconds,
		flags,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert metric: %w", err)
	}
	return nil
}

// InsertBulk appends multiple snapshots atomically. Fails the entire
// batch on any duplicate.
func (s *MetricStore) InsertBulk(ctx context.Context, ms []*domain.TokenMetric) error {
	if len(ms) == 0 {
		return nil
	}

	started := time.Now()
	err := s.insertBulk(ctx, ms)
	observability.RecordDBQuery("postgres", "metric_insert_bulk", time.Since(started).Seconds(), err)
	return err
}

func (s *MetricStore) insertBulk(ctx context.Context, ms []*domain.TokenMetric) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, m := range ms {
		flags, err := json.Marshal(m.Flags)
		if err != nil {
			return fmt.Errorf("marshal metric flags: %w", err)
		}
		_, err = tx.Exec(ctx, insertMetricQuery,
			m.Mint,
			m.TimestampMs,
			m.PriceUSD,
			m.MarketCapUSD,
			m.LiquidityUSD,
			m.Volume5mUSD,
			m.Volume60mUSD,
			m.Buys5m,
			m.Sells5m,
			m.Holders,
			m.Top10Ratio,
			m.SmartWallets,
			m.BondingComplete,
			m.AgeSeconds,
			flags,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert metric in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Recent retrieves snapshots for a mint within the window, newest first.
func (s *MetricStore) Recent(ctx context.Context, mint string, window time.Duration) ([]*domain.TokenMetric, error) {
	query := `
		SELECT mint, timestamp_ms, price_usd, market_cap_usd, liquidity_usd,
		       volume_5m_usd, volume_60m_usd, buys_5m, sells_5m, holders,
		       top10_ratio, smart_wallets, bonding_complete, age_seconds, flags
		FROM token_metrics
		WHERE mint = $1 AND timestamp_ms >= $2
		ORDER BY timestamp_ms DESC
	`

	cutoff := time.Now().Add(-window).UnixMilli()
	rows, err := s.pool.Query(ctx, query, mint, cutoff)
	if err != nil {
		return nil, fmt.Errorf("get recent metrics: %w", err)
	}
	defer rows.Close()

	var metrics []*domain.TokenMetric
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("scan metric row: %w", err)
		}
		metrics = append(metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric rows: %w", err)
	}
	return metrics, nil
}

// scanMetric scans a single row into a TokenMetric.
func scanMetric(row pgx.Row) (*domain.TokenMetric, error) {
	var m domain.TokenMetric
	var flags []byte

	err := row.Scan(
		&m.Mint,
		&m.TimestampMs,
		&m.PriceUSD,
		&m.MarketCapUSD,
		&m.LiquidityUSD,
		&m.Volume5mUSD,
		&m.Volume60mUSD,
		&m.Buys5m,
		&m.Sells5m,
		&m.Holders,
		&m.Top10Ratio,
		&m.SmartWallets,
		&m.BondingComplete,
		&m.AgeSeconds,
		&flags,
	)
	if err != nil {
		return nil, err
	}

	if len(flags) > 0 {
		if err := json.Unmarshal(flags, &m.Flags); err != nil {
			return nil, fmt.Errorf("unmarshal metric flags: %w", err)
		}
	}
	return &m, nil
}
