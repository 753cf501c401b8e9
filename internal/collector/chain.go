package collector

import (
	"context"
	"math"
	"sort"

	"solana-meme-radar/internal/ingestion"
	"solana-meme-radar/internal/solana"
)

// applyConcentration fills top-10 supply share and a holder estimate from
// the 20 largest accounts. Bonding-curve tokens skip the RPC entirely: the
// curve PDA owns the float, so the concentration reads as total and the
// holder list is meaningless. Downstream gates treat the flagged 1.0
// accordingly.
func (c *Collector) applyConcentration(ctx context.Context, snap *Snapshot, bonding bool) {
	m := snap.Metric
	if bonding {
		m.Top10Ratio = fptr(1.0)
		return
	}

	tctx, cancel := c.callCtx(ctx)
	accounts, err := c.src.Chain.GetTokenLargestAccounts(tctx, m.Mint)
	cancel()
	if err != nil {
		c.log.Debug().Err(err).Str("mint", m.Mint).Msg("largest accounts unavailable")
		return
	}
	if len(accounts) == 0 {
		return
	}

	tctx, cancel = c.callCtx(ctx)
	supply, err := c.src.Chain.GetTokenSupply(tctx, m.Mint)
	cancel()
	if err != nil {
		c.log.Debug().Err(err).Str("mint", m.Mint).Msg("token supply unavailable")
		return
	}
	if supply == nil || supply.UIAmount <= 0 {
		return
	}

	// Accounts arrive sorted by balance descending; zero rows only trail.
	top10, held := 0.0, 0.0
	n := 0
	for _, acc := range accounts {
		if acc.UIAmount <= 0 {
			continue
		}
		if n < 10 {
			top10 += acc.UIAmount
		}
		held += acc.UIAmount
		n++
	}
	if n == 0 {
		return
	}

	ratio := top10 / supply.UIAmount
	if ratio > 1 {
		ratio = 1
	}
	m.Top10Ratio = &ratio

	// The n largest accounts hold `share` of supply; extrapolate the
	// population from that share. Crude, hence the flag.
	share := held / supply.UIAmount
	if share > 1 {
		share = 1
	}
	if share > 0 {
		holders := int(math.Ceil(float64(n) / share))
		if holders < n {
			holders = n
		}
		m.Holders = &holders
		m.Flags.HoldersEstimated = true
	}
}

// applyIdentity fills symbol, name, and creator from DAS metadata when the
// token record is still missing any of them.
func (c *Collector) applyIdentity(ctx context.Context, snap *Snapshot) {
	tok := snap.Token
	if tok.Symbol != nil && tok.Name != nil && tok.Creator != nil {
		return
	}

	tctx, cancel := c.callCtx(ctx)
	defer cancel()

	asset, err := c.src.Chain.GetAsset(tctx, tok.Mint)
	if err != nil {
		c.log.Debug().Err(err).Str("mint", tok.Mint).Msg("asset metadata unavailable")
		return
	}
	if asset == nil {
		return
	}

	if tok.Symbol == nil && asset.Symbol != "" {
		tok.Symbol = sptr(asset.Symbol)
	}
	if tok.Name == nil && asset.Name != "" {
		tok.Name = sptr(asset.Name)
	}
	if tok.Creator == nil && asset.Creator != "" {
		tok.Creator = sptr(asset.Creator)
	}
}

// applyAuthorities reads the mint account once and records its authority
// state. A nil authority after verification means revoked on-chain, which
// the safety gate distinguishes from never-checked.
func (c *Collector) applyAuthorities(ctx context.Context, snap *Snapshot) {
	tok := snap.Token
	if tok.AuthoritiesVerified {
		return
	}

	tctx, cancel := c.callCtx(ctx)
	defer cancel()

	info, err := c.src.Chain.GetAccountInfo(tctx, tok.Mint)
	if err != nil {
		c.log.Debug().Err(err).Str("mint", tok.Mint).Msg("mint account unavailable")
		return
	}
	if info == nil || info.Data == "" {
		return
	}

	mint, err := solana.ParseMintAccount(info.Data)
	if err != nil {
		c.log.Debug().Err(err).Str("mint", tok.Mint).Msg("unparseable mint account")
		return
	}

	tok.MintAuthority = mint.MintAuthority
	tok.FreezeAuthority = mint.FreezeAuthority
	tok.AuthoritiesVerified = true
}

// chainBuyers reconstructs recent buys from the mint's transaction history,
// so the insider gate sees who entered first even when the stream delivered
// nothing for a young token. Best effort: any RPC failure returns what was
// gathered so far.
func (c *Collector) chainBuyers(ctx context.Context, mint string) []ingestion.TradeRecord {
	tctx, cancel := c.callCtx(ctx)
	sigs, err := c.src.Chain.GetSignaturesForAddress(tctx, mint, &solana.SignaturesOpts{Limit: buyerSignatureLimit})
	cancel()
	if err != nil {
		c.log.Debug().Err(err).Str("mint", mint).Msg("signature listing unavailable")
		return nil
	}

	var buys []ingestion.TradeRecord
	for _, sig := range sigs {
		if sig.Err != nil || ctx.Err() != nil {
			continue
		}

		tctx, cancel := c.callCtx(ctx)
		tx, err := c.src.Chain.GetTransaction(tctx, sig.Signature)
		cancel()
		if err != nil || tx == nil {
			continue
		}
		buys = append(buys, buyersFromTransaction(tx, mint)...)
	}
	return buys
}

// buyersFromTransaction returns one record per wallet whose balance of the
// mint grew in the transaction, paired with the SOL it spent.
func buyersFromTransaction(tx *solana.Transaction, mint string) []ingestion.TradeRecord {
	if tx == nil || tx.Meta == nil || tx.Message == nil || tx.Meta.Err != nil {
		return nil
	}

	pre := make(map[string]float64)
	for _, tb := range tx.Meta.PreTokenBalances {
		if tb.Mint == mint {
			pre[tb.Owner] += tb.Amount.UIAmount
		}
	}
	post := make(map[string]float64)
	for _, tb := range tx.Meta.PostTokenBalances {
		if tb.Mint == mint {
			post[tb.Owner] += tb.Amount.UIAmount
		}
	}

	var recs []ingestion.TradeRecord
	for owner, after := range post {
		if owner == "" || after <= pre[owner] {
			continue
		}
		recs = append(recs, ingestion.TradeRecord{
			Trader:      owner,
			SolAmount:   solSpent(tx, owner),
			Buy:         true,
			TimestampMs: tx.BlockTime * 1000,
		})
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Trader < recs[j].Trader })
	return recs
}

// solSpent is the wallet's SOL outflow in the transaction, 0 when its
// account is absent from the key list or SOL flowed in.
func solSpent(tx *solana.Transaction, wallet string) float64 {
	for i, key := range tx.Message.AccountKeys {
		if key != wallet {
			continue
		}
		if i >= len(tx.Meta.PreBalances) || i >= len(tx.Meta.PostBalances) {
			return 0
		}
		out := (float64(tx.Meta.PreBalances[i]) - float64(tx.Meta.PostBalances[i])) / lamportsPerSol
		if out < 0 {
			return 0
		}
		return out
	}
	return 0
}
