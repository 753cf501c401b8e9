// Package notify delivers emitted signals to outbound alert channels.
// The radar ships a structured-log channel only; heavier transports
// (webhooks, chat bots) plug in behind the same interface.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"solana-meme-radar/internal/domain"
)

// Notifier publishes one emitted signal. Implementations must be safe for
// concurrent use and must not block past the context.
type Notifier interface {
	Publish(ctx context.Context, sig *domain.Signal) error
}

// LogNotifier writes each signal to the structured log.
type LogNotifier struct {
	log zerolog.Logger
}

var _ Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a notifier writing to the given logger.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notifier").Logger()}
}

// Publish logs the signal at info level. It never fails.
func (n *LogNotifier) Publish(_ context.Context, sig *domain.Signal) error {
	n.log.Info().
		Str("signal_id", sig.SignalID).
		Str("mint", sig.Mint).
		Float64("instability", sig.Instability).
		Float64("confidence", sig.Confidence).
		Float64("size", sig.Size).
		Float64("entry", sig.EntryPrice).
		Float64("stop_loss", sig.StopLoss).
		Float64("take_profit", sig.TakeProfit).
		Str("regime", sig.Regime.String()).
		Strs("reasons", sig.Reasons).
		Msg("signal")
	return nil
}
