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

// SignalStore implements storage.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

// Insert adds a new signal. Returns ErrDuplicateKey if signal_id exists.
func (s *SignalStore) Insert(ctx context.Context, sig *domain.Signal) error {
	if sig == nil || sig.SignalID == "" || sig.Mint == "" {
		return storage.ErrInvalidInput
	}

	features, err := json.Marshal(sig.Features)
	if err != nil {
		return fmt.Errorf("marshal signal features: %w", err)
	}

	query := `
		INSERT INTO signals (
			signal_id, mint, emitted_at, instability, confidence, size,
			entry_price, stop_loss, take_profit, liquidity_usd, market_cap_usd,
			insider_psi, creator_risk, regime, reasons, summary, features
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	started := time.Now()
	_, err = s.pool.Exec(ctx, query,
		sig.SignalID,
		sig.Mint,
		sig.EmittedAt,
		sig.Instability,
		sig.Confidence,
		sig.Size,
		sig.EntryPrice,
		sig.StopLoss,
		sig.TakeProfit,
		sig.LiquidityUSD,
		sig.MarketCapUSD,
		sig.InsiderPSI,
		sig.CreatorRisk,
		string(sig.Regime),
		sig.Reasons,
		sig.Summary,
		features,
	)
	observability.RecordDBQuery("postgres", "signal_insert", time.Since(started).Seconds(), err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// HasRecent reports whether any signal for the mint was emitted within
// the window ending now.
func (s *SignalStore) HasRecent(ctx context.Context, mint string, window time.Duration) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM signals
			WHERE mint = $1 AND emitted_at >= $2
		)
	`

	cutoff := time.Now().Add(-window).UnixMilli()
	var exists bool
	if err := s.pool.QueryRow(ctx, query, mint, cutoff).Scan(&exists); err != nil {
		return false, fmt.Errorf("has recent signal: %w", err)
	}
	return exists, nil
}

// ListRecent retrieves signals emitted within the window, newest first.
func (s *SignalStore) ListRecent(ctx context.Context, window time.Duration) ([]*domain.Signal, error) {
	query := `
		SELECT signal_id, mint, emitted_at, instability, confidence, size,
		       entry_price, stop_loss, take_profit, liquidity_usd, market_cap_usd,
		       insider_psi, creator_risk, regime, reasons, summary, features
		FROM signals
		WHERE emitted_at >= $1
		ORDER BY emitted_at DESC, signal_id ASC
	`

	cutoff := time.Now().Add(-window).UnixMilli()
	rows, err := s.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list recent signals: %w", err)
	}
	defer rows.Close()

	var signals []*domain.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		signals = append(signals, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal rows: %w", err)
	}
	return signals, nil
}

// scanSignal scans a single row into a Signal.
func scanSignal(row pgx.Row) (*domain.Signal, error) {
	var sig domain.Signal
	var regimeStr string
	var features []byte

	err := row.Scan(
		&sig.SignalID,
		&sig.Mint,
		&sig.EmittedAt,
		&sig.Instability,
		&sig.Confidence,
		&sig.Size,
		&sig.EntryPrice,
		&sig.StopLoss,
		&sig.TakeProfit,
		&sig.LiquidityUSD,
		&sig.MarketCapUSD,
		&sig.InsiderPSI,
		&sig.CreatorRisk,
		&regimeStr,
		&sig.Reasons,
		&sig.Summary,
		&features,
	)
	if err != nil {
		return nil, err
	}

	sig.Regime = domain.Regime(regimeStr)
	if len(features) > 0 {
		if err := json.Unmarshal(features, &sig.Features); err != nil {
			return nil, fmt.Errorf("unmarshal signal features: %w", err)
		}
	}
	return &sig, nil
}
