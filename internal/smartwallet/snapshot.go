package smartwallet

import (
	"math"

	"solana-meme-radar/internal/domain"
)

// rotationEps keeps the rotation ratio finite when no smart wallet is
// active anywhere in the window.
const rotationEps = 1e-9

// Snapshot is an immutable view of the smart-wallet set taken after a
// profile refresh. Scoring reads only snapshots: a refresh mid-cycle can
// never tear a ratio between numerator and denominator.
type Snapshot struct {
	takenAtMs int64
	smart     map[string]*domain.WalletProfile
}

// NewSnapshot captures the smart subset of the given profiles. The
// profiles are copied; later mutations do not leak in.
func NewSnapshot(profiles []*domain.WalletProfile, takenAtMs int64) *Snapshot {
	smart := make(map[string]*domain.WalletProfile)
	for _, p := range profiles {
		if p != nil && p.Smart {
			cp := *p
			smart[p.Address] = &cp
		}
	}
	return &Snapshot{takenAtMs: takenAtMs, smart: smart}
}

// EmptySnapshot is the cold-start view before the first refresh.
func EmptySnapshot() *Snapshot {
	return &Snapshot{smart: make(map[string]*domain.WalletProfile)}
}

// TakenAt returns the refresh timestamp of the snapshot (ms).
func (s *Snapshot) TakenAt() int64 { return s.takenAtMs }

// Size returns the number of smart wallets in the snapshot.
func (s *Snapshot) Size() int { return len(s.smart) }

// Contains reports whether the address is in the smart set.
func (s *Snapshot) Contains(address string) bool {
	_, ok := s.smart[address]
	return ok
}

// SmartCount returns how many of the given wallets are smart.
func (s *Snapshot) SmartCount(wallets []string) int {
	n := 0
	for _, w := range wallets {
		if s.Contains(w) {
			n++
		}
	}
	return n
}

// Rotation computes the smart-wallet rotation pair for one token:
// the plain ratio |tokenActive ∩ smart| / (|globalActive ∩ smart| + eps)
// and the quality-weighted variant where each wallet contributes
// log1p(max(0, roi-1)) * (winRate + 0.1) to both sides.
func (s *Snapshot) Rotation(tokenActive, globalActive []string) (swr, weighted float64) {
	tokenCount, tokenWeight := s.tally(tokenActive)
	globalCount, globalWeight := s.tally(globalActive)

	swr = float64(tokenCount) / (float64(globalCount) + rotationEps)
	weighted = tokenWeight / (globalWeight + rotationEps)
	return swr, weighted
}

// tally deduplicates the wallet list and sums smart membership and
// contribution weight.
func (s *Snapshot) tally(wallets []string) (count int, weight float64) {
	seen := make(map[string]struct{}, len(wallets))
	for _, w := range wallets {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		p, ok := s.smart[w]
		if !ok {
			continue
		}
		count++
		weight += math.Log1p(math.Max(0, p.AvgROI-1)) * (p.WinRate + 0.1)
	}
	return count, weight
}
