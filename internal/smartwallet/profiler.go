package smartwallet

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"solana-meme-radar/internal/config"
	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/solana"
)

const (
	// signatureLimit bounds the history fetched per wallet. Recent
	// behavior is what predicts the next rotation; deep history is noise
	// and RPC budget.
	signatureLimit = 50

	// highVolumeTrades / noiseWinRate flag spray-and-pray bots: enormous
	// position counts with nothing to show for them.
	highVolumeTrades = 100
	noiseWinRate     = 0.25
)

// Profiler rebuilds wallet profiles from on-chain transaction history.
type Profiler struct {
	rpc solana.Client
	cfg config.WalletConfig
	log zerolog.Logger

	now func() time.Time
}

// NewProfiler creates a wallet profiler backed by the given RPC client.
func NewProfiler(rpc solana.Client, cfg config.WalletConfig, log zerolog.Logger) *Profiler {
	return &Profiler{
		rpc: rpc,
		cfg: cfg,
		log: log.With().Str("component", "wallet_profiler").Logger(),
		now: time.Now,
	}
}

// position aggregates one wallet's activity on one mint.
type position struct {
	mint     string
	spentSol float64 // sum of |negative flows|
	netSol   float64 // signed sum of all flows
	sells    int
	lastMs   int64
}

// roi is the return multiple of the position: 1 + net/spent.
func (p *position) roi() float64 {
	if p.spentSol <= 0 {
		return 0
	}
	return 1 + p.netSol/p.spentSol
}

// Profile fetches the wallet's recent history and rebuilds its stats.
// Individual transaction fetch failures degrade the profile rather than
// failing it; only the signature listing is fatal.
func (p *Profiler) Profile(ctx context.Context, address string) (*domain.WalletProfile, error) {
	sigs, err := p.rpc.GetSignaturesForAddress(ctx, address, &solana.SignaturesOpts{Limit: signatureLimit})
	if err != nil {
		return nil, fmt.Errorf("list signatures for %s: %w", address, err)
	}

	var trades []*domain.WalletTrade
	for _, sig := range sigs {
		if sig.Err != nil {
			continue
		}
		tx, err := p.rpc.GetTransaction(ctx, sig.Signature)
		if err != nil {
			p.log.Debug().Err(err).Str("signature", sig.Signature).Msg("transaction fetch failed")
			continue
		}
		if trade, ok := ExtractTrade(tx, address); ok {
			trades = append(trades, trade)
		}
	}

	profile := buildProfile(address, trades, p.cfg)
	profile.RefreshedAt = p.now().UnixMilli()
	return profile, nil
}

// buildProfile folds reconstructed trades into a wallet profile. A
// position is one mint's activity; ROI is realized against the SOL the
// wallet actually put in.
func buildProfile(address string, trades []*domain.WalletTrade, cfg config.WalletConfig) *domain.WalletProfile {
	byMint := make(map[string]*position)
	lastActive := int64(0)
	for _, t := range trades {
		pos, ok := byMint[t.Mint]
		if !ok {
			pos = &position{mint: t.Mint}
			byMint[t.Mint] = pos
		}
		pos.netSol += t.SolDelta
		if t.IsBuy() {
			pos.spentSol += -t.SolDelta
		} else {
			pos.sells++
		}
		if t.TimestampMs > pos.lastMs {
			pos.lastMs = t.TimestampMs
		}
		if t.TimestampMs > lastActive {
			lastActive = t.TimestampMs
		}
	}

	// Positions without a buy are airdrops or inbound transfers; they say
	// nothing about trading skill.
	positions := make([]*position, 0, len(byMint))
	for _, pos := range byMint {
		if pos.spentSol > 0 {
			positions = append(positions, pos)
		}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].mint < positions[j].mint })

	roiSum := 0.0
	closes, wins := 0, 0
	for _, pos := range positions {
		roiSum += pos.roi()
		if pos.sells > 0 {
			closes++
			if pos.roi() > 1 {
				wins++
			}
		}
	}

	profile := &domain.WalletProfile{
		Address:      address,
		TotalTrades:  len(positions),
		Class:        domain.WalletNew,
		Verified:     true,
		LastActiveMs: lastActive,
	}
	if len(positions) > 0 {
		profile.AvgROI = roiSum / float64(len(positions))
	}
	if closes > 0 {
		profile.WinRate = float64(wins) / float64(closes)
	}
	if profile.TotalTrades >= highVolumeTrades && profile.WinRate < noiseWinRate {
		profile.Class = domain.WalletHighVolumeNoise
	}
	profile.Smart = IsSmart(profile, cfg)
	return profile
}

// IsSmart applies the smart-wallet predicate to a profile.
func IsSmart(p *domain.WalletProfile, cfg config.WalletConfig) bool {
	return p.AvgROI > cfg.MinROI &&
		p.TotalTrades >= cfg.MinTrades &&
		p.WinRate > cfg.MinWinRate
}
