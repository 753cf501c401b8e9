package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/storage"
)

// ScoreStore implements storage.ScoreStore using PostgreSQL.
type ScoreStore struct {
	pool *Pool
}

// NewScoreStore creates a new ScoreStore.
func NewScoreStore(pool *Pool) *ScoreStore {
	return &ScoreStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ScoreStore = (*ScoreStore)(nil)

// Insert appends one scored row. The market snapshot it was scored
// against is denormalized into the row so LatestAll needs no join.
func (s *ScoreStore) Insert(ctx context.Context, r *domain.ScoredRow) error {
	if r == nil || r.Mint == "" {
		return storage.ErrInvalidInput
	}

	features, err := json.Marshal(r.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}

	query := `
		INSERT INTO instability_scores (
			mint, timestamp_ms, instability, delta_instability, regime,
			price_usd, market_cap_usd, liquidity_usd, holders, top10_ratio, features
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = s.pool.Exec(ctx, query,
		r.Mint,
		r.TimestampMs,
		r.Instability,
		r.DeltaInstability,
		string(r.Regime),
		r.Metric.PriceUSD,
		r.Metric.MarketCapUSD,
		r.Metric.LiquidityUSD,
		r.Metric.Holders,
		r.Metric.Top10Ratio,
		features,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert score: %w", err)
	}
	return nil
}

// LatestAll retrieves the most recent score per token within the window,
// one row per mint, newest first.
func (s *ScoreStore) LatestAll(ctx context.Context, window time.Duration) ([]*domain.InstabilityPoint, error) {
	query := `
		SELECT mint, instability, price_usd, market_cap_usd, liquidity_usd,
		       holders, top10_ratio, timestamp_ms
		FROM (
			SELECT DISTINCT ON (mint) mint, instability, price_usd, market_cap_usd,
			       liquidity_usd, holders, top10_ratio, timestamp_ms
			FROM instability_scores
			WHERE timestamp_ms >= $1
			ORDER BY mint, timestamp_ms DESC
		) latest
		ORDER BY timestamp_ms DESC, mint ASC
	`

	cutoff := time.Now().Add(-window).UnixMilli()
	rows, err := s.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("latest instability: %w", err)
	}
	defer rows.Close()

	var points []*domain.InstabilityPoint
	for rows.Next() {
		var p domain.InstabilityPoint
		err := rows.Scan(
			&p.Mint,
			&p.Instability,
			&p.PriceUSD,
			&p.MarketCapUSD,
			&p.LiquidityUSD,
			&p.Holders,
			&p.Top10Ratio,
			&p.TimestampMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan score row: %w", err)
		}
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate score rows: %w", err)
	}
	return points, nil
}
