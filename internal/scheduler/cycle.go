package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"solana-meme-radar/internal/collector"
	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/features"
	"solana-meme-radar/internal/ingestion"
	"solana-meme-radar/internal/observability"
	"solana-meme-radar/internal/scoring"
	"solana-meme-radar/internal/signals"
	"solana-meme-radar/internal/smartwallet"
	"solana-meme-radar/internal/storage"
)

// holderGrowth parameters: growth is graded over the first two minutes
// after pool creation and saturates at +100 holders.
const (
	holderGrowthWindowMs = 2 * 60 * 1000
	holderGrowthScale    = 100.0
)

// collected pairs a batch token with its snapshot.
type collected struct {
	token *domain.Token
	snap  *collector.Snapshot
}

// rowState carries the per-token context assembled before scoring that
// the cascade consumes after it.
type rowState struct {
	token    *domain.Token
	history  []*domain.TokenMetric
	psi      float64
	verified bool
}

// runCycle executes one scan: gather, collect, persist, score, judge.
// Tokens that fail along the way are dropped for the cycle; they come
// back through the queue or the probe.
func (s *Scheduler) runCycle(ctx context.Context) {
	start := s.now()
	cctx, cancel := context.WithTimeout(ctx, s.scan.Interval*4/5)
	defer cancel()

	s.cycles++
	if n := s.scan.ProfileRefreshCycles; n > 0 && s.cycles%uint64(n) == 0 {
		defer s.refreshProfiles(cctx)
	}

	batch := s.gatherBatch(cctx)
	if len(batch) == 0 {
		observability.RecordScanCycle("empty", s.now().Sub(start).Seconds(), 0)
		return
	}

	rows := s.collectBatch(cctx, batch)
	inputs, states, metrics := s.prepareRows(cctx, rows)
	if len(inputs) == 0 {
		observability.RecordScanCycle("empty", s.now().Sub(start).Seconds(), 0)
		return
	}

	s.persistMetrics(cctx, metrics)

	scored := s.engine.Score(inputs, start.UnixMilli())
	observability.UpdateRegime(scored.Regime == domain.RegimeDegen)

	emitted := s.judgeRows(cctx, scored, states)

	observability.RecordScanCycle("success", s.now().Sub(start).Seconds(), len(inputs))
	s.log.Info().
		Int("batch", len(inputs)).
		Int("signals", emitted).
		Str("regime", scored.Regime.String()).
		Float64("threshold", scored.Threshold).
		Msg("scan cycle complete")
}

// gatherBatch drains the queue first, then tops the cycle up with the
// freshest known tokens. Queue entries are events; the probe keeps tokens
// under watch between events.
func (s *Scheduler) gatherBatch(ctx context.Context) []*domain.Token {
	seen := make(map[string]bool)
	batch := make([]*domain.Token, 0, s.scan.BatchMax)

	for _, mint := range s.queue.Drain(s.scan.BatchMax) {
		if seen[mint] {
			continue
		}
		seen[mint] = true

		tok, err := s.store.Tokens.GetByMint(ctx, mint)
		if errors.Is(err, storage.ErrNotFound) {
			// Queued by a trade before its create event landed.
			now := s.now().UnixMilli()
			tok = &domain.Token{
				Mint:         mint,
				Source:       domain.SourceScan,
				BondingCurve: domain.IsBondingCurveMint(mint),
				FirstSeenAt:  now,
				UpdatedAt:    now,
			}
		} else if err != nil {
			s.log.Warn().Err(err).Str("mint", mint).Msg("token lookup failed")
			continue
		}
		batch = append(batch, tok)
	}

	if len(batch) >= s.scan.BatchMax {
		return batch
	}

	active, err := s.store.Tokens.ListActive(ctx, freshTokenWindow)
	if err != nil {
		s.log.Warn().Err(err).Msg("fresh token probe failed")
		return batch
	}
	for _, tok := range active {
		if len(batch) >= s.scan.BatchMax {
			break
		}
		if seen[tok.Mint] {
			continue
		}
		seen[tok.Mint] = true
		batch = append(batch, tok)
	}
	return batch
}

// collectBatch fans the batch out to the collector with bounded
// concurrency. Tokens whose collection fails or outlives the deadline
// are dropped for the cycle.
func (s *Scheduler) collectBatch(ctx context.Context, batch []*domain.Token) []collected {
	fanout := s.scan.Fanout
	if fanout <= 0 {
		fanout = 1
	}

	var (
		mu  sync.Mutex
		out = make([]collected, 0, len(batch))
		sem = make(chan struct{}, fanout)
		wg  sync.WaitGroup
	)
	for _, tok := range batch {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(tok *domain.Token) {
			defer wg.Done()
			defer func() { <-sem }()

			snap, err := s.collector.Collect(ctx, tok)
			if err != nil {
				s.log.Debug().Err(err).Str("mint", tok.Mint).Msg("collection failed")
				return
			}
			mu.Lock()
			out = append(out, collected{token: snap.Token, snap: snap})
			mu.Unlock()
		}(tok)
	}
	wg.Wait()
	return out
}

// prepareRows persists the refreshed tokens and turns each snapshot into
// a scoring input with the wallet-engine outputs merged in.
func (s *Scheduler) prepareRows(ctx context.Context, rows []collected) ([]scoring.Input, map[string]*rowState, []*domain.TokenMetric) {
	smart := s.smart.Snapshot()
	globalActive := s.globalActive()

	inputs := make([]scoring.Input, 0, len(rows))
	states := make(map[string]*rowState, len(rows))
	metrics := make([]*domain.TokenMetric, 0, len(rows))

	for _, row := range rows {
		tok, metric := row.token, row.snap.Metric
		if err := s.store.Tokens.Upsert(ctx, tok); err != nil {
			s.log.Warn().Err(err).Str("mint", tok.Mint).Msg("token upsert failed")
		}

		history, err := s.store.Metrics.Recent(ctx, tok.Mint, s.metricWindow)
		if err != nil {
			s.log.Warn().Err(err).Str("mint", tok.Mint).Msg("metric history unavailable")
			history = nil
		}

		fv := features.Compute(features.Inputs{
			Current:      metric,
			History:      history,
			BuyerShares:  row.snap.BuyerShares,
			UniqueBuyers: uniqueBuyers(row.snap),
		})

		psi, verified := smartwallet.InsiderScore(smartwallet.InsiderInputs{
			Buys:          buyEvents(row.snap.Buyers),
			PairCreatedMs: row.snap.PairCreatedMs,
			TotalBuys:     totalBuys(metric, row.snap),
			HolderGrowth:  holderGrowth(history, row.snap.PairCreatedMs),
			CoordWindow:   s.wallets.CoordWindow,
			Smart:         smart,
		})
		swr, weighted := smart.Rotation(row.snap.ActiveWallets, globalActive)
		fv.SmartWalletRatio = swr
		fv.WeightedSWR = weighted
		fv.InsiderPSI = psi
		if smart.Size() > 0 {
			n := smart.SmartCount(row.snap.ActiveWallets)
			metric.SmartWallets = &n
		}

		inputs = append(inputs, scoring.Input{Metric: metric, Features: fv})
		metrics = append(metrics, metric)
		states[tok.Mint] = &rowState{token: tok, history: history, psi: psi, verified: verified}
	}
	return inputs, states, metrics
}

// persistMetrics appends the cycle's snapshots, retrying the bulk write
// once. The archive mirror is best effort.
func (s *Scheduler) persistMetrics(ctx context.Context, ms []*domain.TokenMetric) {
	if len(ms) == 0 {
		return
	}
	if err := s.store.Metrics.InsertBulk(ctx, ms); err != nil {
		s.log.Warn().Err(err).Msg("metric bulk insert failed, retrying")
		select {
		case <-ctx.Done():
			return
		case <-time.After(bulkRetryDelay):
		}
		if err := s.store.Metrics.InsertBulk(ctx, ms); err != nil {
			s.log.Error().Err(err).Int("rows", len(ms)).Msg("metric bulk insert dropped")
		}
	}
	if s.archive != nil {
		if err := s.archive.InsertBulk(ctx, ms); err != nil {
			s.log.Warn().Err(err).Msg("metric archive write failed")
		}
	}
}

// judgeRows walks every scored row through the cascade, publishes
// accepted signals and persists the scores for warm starts.
func (s *Scheduler) judgeRows(ctx context.Context, batch *scoring.Batch, states map[string]*rowState) int {
	emitted := 0
	for _, row := range batch.Rows {
		st := states[row.Mint]
		if st == nil {
			continue
		}

		var creatorRisk float64
		var creatorKnown bool
		if st.token.Creator != nil {
			creatorRisk, creatorKnown = s.creators.Risk(ctx, *st.token.Creator)
		}

		verdict, err := s.cascade.Decide(ctx, &signals.Candidate{
			Row:             row,
			Token:           st.token,
			History:         st.history,
			Threshold:       batch.Threshold,
			InsiderPSI:      st.psi,
			InsiderVerified: st.verified,
			CreatorRisk:     creatorRisk,
			CreatorKnown:    creatorKnown,
		})
		if err != nil {
			s.log.Error().Err(err).Str("mint", row.Mint).Msg("gate cascade failed")
		} else if verdict.Accepted {
			emitted++
			if err := s.notifier.Publish(ctx, verdict.Signal); err != nil {
				s.log.Warn().Err(err).Str("mint", row.Mint).Msg("notify failed")
			}
		}

		if err := s.store.Scores.Insert(ctx, row); err != nil {
			s.log.Warn().Err(err).Str("mint", row.Mint).Msg("score insert failed")
		}
	}
	return emitted
}

// uniqueBuyers counts distinct 5m buyers, preferring the stream's share
// map over the chain-reconstructed buy list.
func uniqueBuyers(snap *collector.Snapshot) int {
	if n := len(snap.BuyerShares); n > 0 {
		return n
	}
	seen := make(map[string]bool)
	for _, b := range snap.Buyers {
		if b.Buy {
			seen[b.Trader] = true
		}
	}
	return len(seen)
}

func buyEvents(recs []ingestion.TradeRecord) []smartwallet.BuyEvent {
	events := make([]smartwallet.BuyEvent, 0, len(recs))
	for _, r := range recs {
		if !r.Buy {
			continue
		}
		events = append(events, smartwallet.BuyEvent{Wallet: r.Trader, TimestampMs: r.TimestampMs})
	}
	return events
}

// totalBuys is the early-buy-ratio denominator: the tally when present,
// else the reconstructed buy list.
func totalBuys(m *domain.TokenMetric, snap *collector.Snapshot) int {
	if m.Buys5m != nil && *m.Buys5m > 0 {
		return *m.Buys5m
	}
	return len(snap.Buyers)
}

// holderGrowth grades holder growth across the first two minutes after
// pool creation in [0,1]. Without snapshots from inside that window the
// growth is unknown and reads zero.
func holderGrowth(history []*domain.TokenMetric, pairCreatedMs int64) float64 {
	if pairCreatedMs <= 0 {
		return 0
	}
	cutoff := pairCreatedMs + holderGrowthWindowMs

	// History is newest first: the first qualifying row closes the
	// window, the last one opens it.
	var late, early *int
	for _, m := range history {
		if m == nil || m.Holders == nil || m.TimestampMs > cutoff || m.TimestampMs < pairCreatedMs {
			continue
		}
		if late == nil {
			late = m.Holders
		}
		early = m.Holders
	}
	if late == nil || early == nil {
		return 0
	}
	growth := float64(*late - *early)
	if growth <= 0 {
		return 0
	}
	return clamp01(growth / holderGrowthScale)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
