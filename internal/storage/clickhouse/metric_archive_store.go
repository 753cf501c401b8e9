package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/observability"
	"solana-meme-radar/internal/storage"
)

// MetricArchiveStore implements storage.MetricStore using ClickHouse.
// It mirrors the Postgres metric store for high-volume retention;
// MergeTree does not enforce uniqueness, so replays simply add rows.
type MetricArchiveStore struct {
	conn *Conn
}

// NewMetricArchiveStore creates a new MetricArchiveStore.
func NewMetricArchiveStore(conn *Conn) *MetricArchiveStore {
	return &MetricArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MetricStore = (*MetricArchiveStore)(nil)

// Insert appends one snapshot.
func (s *MetricArchiveStore) Insert(ctx context.Context, m *domain.TokenMetric) error {
	if m == nil || m.Mint == "" {
		return storage.ErrInvalidInput
	}
	return s.InsertBulk(ctx, []*domain.TokenMetric{m})
}

// InsertBulk appends multiple snapshots in one native batch.
func (s *MetricArchiveStore) InsertBulk(ctx context.Context, ms []*domain.TokenMetric) error {
	if len(ms) == 0 {
		return nil
	}

	started := time.Now()
	err := s.insertBulk(ctx, ms)
	observability.RecordDBQuery("clickhouse", "metric_insert_bulk", time.Since(started).Seconds(), err)
	return err
}

func (s *MetricArchiveStore) insertBulk(ctx context.Context, ms []*domain.TokenMetric) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO token_metrics_archive (
			mint, timestamp_ms, price_usd, market_cap_usd, liquidity_usd,
			volume_5m_usd, volume_60m_usd, buys_5m, sells_5m, holders,
			top10_ratio, smart_wallets, bonding_complete, age_seconds
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, m := range ms {
		err = batch.Append(
			m.Mint, m.TimestampMs, m.PriceUSD,
			m.MarketCapUSD, m.LiquidityUSD,
			m.Volume5mUSD, m.Volume60mUSD,
			intPtr32(m.Buys5m), intPtr32(m.Sells5m), intPtr32(m.Holders),
			m.Top10Ratio, intPtr32(m.SmartWallets), m.BondingComplete, m.AgeSeconds,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Recent retrieves snapshots for a mint within the window, newest first.
func (s *MetricArchiveStore) Recent(ctx context.Context, mint string, window time.Duration) ([]*domain.TokenMetric, error) {
	query := `
		SELECT mint, timestamp_ms, price_usd, market_cap_usd, liquidity_usd,
		       volume_5m_usd, volume_60m_usd, buys_5m, sells_5m, holders,
		       top10_ratio, smart_wallets, bonding_complete, age_seconds
		FROM token_metrics_archive
		WHERE mint = ? AND timestamp_ms >= ?
		ORDER BY timestamp_ms DESC
	`

	cutoff := time.Now().Add(-window).UnixMilli()
	rows, err := s.conn.Query(ctx, query, mint, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query recent metrics: %w", err)
	}
	defer rows.Close()

	var metrics []*domain.TokenMetric
	for rows.Next() {
		var m domain.TokenMetric
		var buys, sells, holders, smart *int32

		err := rows.Scan(
			&m.Mint, &m.TimestampMs, &m.PriceUSD,
			&m.MarketCapUSD, &m.LiquidityUSD,
			&m.Volume5mUSD, &m.Volume60mUSD,
			&buys, &sells, &holders,
			&m.Top10Ratio, &smart, &m.BondingComplete, &m.AgeSeconds,
		)
		if err != nil {
			return nil, fmt.Errorf("scan metric row: %w", err)
		}

		m.Buys5m = int32Ptr(buys)
		m.Sells5m = int32Ptr(sells)
		m.Holders = int32Ptr(holders)
		m.SmartWallets = int32Ptr(smart)
		metrics = append(metrics, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric rows: %w", err)
	}
	return metrics, nil
}

// intPtr32 converts *int to the driver's Nullable(Int32) representation.
func intPtr32(v *int) *int32 {
	if v == nil {
		return nil
	}
	n := int32(*v)
	return &n
}

// int32Ptr converts a scanned Nullable(Int32) back to *int.
func int32Ptr(v *int32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}
