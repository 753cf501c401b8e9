// Package smartwallet profiles trader wallets from on-chain history,
// clusters them into behavioral tiers, and measures how hard the proven
// winners are rotating into a token.
package smartwallet

import (
	"math"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/solana"
)

// minTradeSol filters fee-only and dust transfers out of position
// reconstruction. Anything below this is not an intentional trade.
const minTradeSol = 0.001

const lamportsPerSol = 1e9

// ExtractTrade reconstructs a wallet's position event from one
// transaction: the signed SOL delta paired with the non-SOL token whose
// balance moved for that wallet. Returns false for failed transactions,
// transactions the wallet is not a party to, fee-only transfers, and
// transactions with no token counterparty.
func ExtractTrade(tx *solana.Transaction, wallet string) (*domain.WalletTrade, bool) {
	if tx == nil || tx.Meta == nil || tx.Message == nil || tx.Meta.Err != nil {
		return nil, false
	}

	idx := -1
	for i, key := range tx.Message.AccountKeys {
		if key == wallet {
			idx = i
			break
		}
	}
	if idx < 0 || idx >= len(tx.Meta.PreBalances) || idx >= len(tx.Meta.PostBalances) {
		return nil, false
	}

	solDelta := (float64(tx.Meta.PostBalances[idx]) - float64(tx.Meta.PreBalances[idx])) / lamportsPerSol
	if math.Abs(solDelta) < minTradeSol {
		return nil, false
	}

	mint := movedMint(tx.Meta, wallet)
	if mint == "" {
		return nil, false
	}

	return &domain.WalletTrade{
		Wallet:      wallet,
		Mint:        mint,
		SolDelta:    solDelta,
		TimestampMs: tx.BlockTime * 1000,
		Signature:   tx.Signature,
	}, true
}

// movedMint returns the non-SOL mint with the largest balance change for
// the wallet across the transaction, or "" when no token moved.
func movedMint(meta *solana.TransactionMeta, wallet string) string {
	pre := make(map[string]float64)
	for _, tb := range meta.PreTokenBalances {
		if tb.Owner == wallet && tb.Mint != solana.WSOLMint {
			pre[tb.Mint] += tb.Amount.UIAmount
		}
	}

	post := make(map[string]float64)
	for _, tb := range meta.PostTokenBalances {
		if tb.Owner == wallet && tb.Mint != solana.WSOLMint {
			post[tb.Mint] += tb.Amount.UIAmount
		}
	}

	best, bestDelta := "", 0.0
	for mint := range mergedKeys(pre, post) {
		delta := math.Abs(post[mint] - pre[mint])
		if delta > bestDelta || (delta == bestDelta && best != "" && mint < best) {
			best, bestDelta = mint, delta
		}
	}
	if bestDelta == 0 {
		return ""
	}
	return best
}

func mergedKeys(a, b map[string]float64) map[string]struct{} {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	return keys
}
