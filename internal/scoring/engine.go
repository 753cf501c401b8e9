// Package scoring turns one scan cycle's feature vectors into
// cross-sectional instability scores. All statistics are computed within
// the batch: a token is only ever unstable relative to what the rest of
// the market is doing in the same cycle.
package scoring

import (
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"solana-meme-radar/internal/config"
	"solana-meme-radar/internal/domain"
)

const (
	// velocityFloor is the turnover above which the absolute velocity
	// bonus kicks in; below it z-scores carry the whole signal.
	velocityFloor = 0.5
	// presenceEps is the maximum data-presence bonus. It is small enough
	// to never flip a real ranking, large enough to break ties between
	// informed and all-missing rows.
	presenceEps = 0.05
	// degenZMean is the mean volume z-score above which the batch is
	// treated as market-wide frenzy.
	degenZMean = 1.5
	// volHistoryMax bounds the trailing batch-volume window used for
	// regime detection.
	volHistoryMax = 64
	// sessionTTLMs drops per-mint delta memory not refreshed for two
	// hours, so dead tokens do not pin the map forever.
	sessionTTLMs = 2 * 60 * 60 * 1000
)

// Input is one token entering the cross-sectional batch.
type Input struct {
	Metric   *domain.TokenMetric
	Features domain.FeatureVector
}

// Batch is the scored result of one cycle.
type Batch struct {
	Rows       []*domain.ScoredRow // sorted by instability, highest first
	Regime     domain.Regime
	Threshold  float64
	TotalVol5m float64
}

type prevScore struct {
	instability float64
	tsMs        int64
}

// Engine scores cycle batches. It keeps two pieces of session state:
// each token's previous instability (for delta computation) and the
// trailing batch volume history (for regime detection).
type Engine struct {
	cfg config.ScoringConfig
	log zerolog.Logger

	mu      sync.Mutex
	prev    map[string]prevScore
	volHist []float64
}

// NewEngine creates a scoring engine with empty session memory.
func NewEngine(cfg config.ScoringConfig, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:  cfg,
		log:  log.With().Str("component", "scoring").Logger(),
		prev: make(map[string]prevScore),
	}
}

// Score computes the instability index for every row of one cycle batch
// and derives the batch regime and signal threshold. nowMs stamps the
// scored rows.
func (e *Engine) Score(inputs []Input, nowMs int64) *Batch {
	rows := make([]Input, 0, len(inputs))
	for _, in := range inputs {
		if in.Metric != nil {
			rows = append(rows, in)
		}
	}
	if len(rows) == 0 {
		return &Batch{Regime: domain.RegimeStable, Threshold: e.cfg.AbsFloor}
	}

	n := len(rows)
	sa := make([]float64, n)
	ha := make([]float64, n)
	vs := make([]float64, n)
	swr := make([]float64, n)
	vi := make([]float64, n)
	sp := make([]float64, n)
	vol := make([]float64, n)
	for i, in := range rows {
		sa[i] = in.Features.StealthAccum
		ha[i] = in.Features.HolderAccel
		vs[i] = in.Features.VolatilityShift
		swr[i] = in.Features.SmartWalletRatio
		vi[i] = in.Features.VolumeIntensity
		sp[i] = in.Features.SellPressure
		if in.Metric.Volume5mUSD != nil {
			vol[i] = *in.Metric.Volume5mUSD
		}
	}

	zSA := robustZ(sa)
	zHA := robustZ(ha)
	zVS := robustZ(vs)
	zSWR := robustZ(swr)
	zVI := robustZ(vi)
	zSP := robustZ(sp)
	zVol := robustZ(vol)

	totalVol := 0.0
	for _, v := range vol {
		totalVol += v
	}

	regime := e.detectRegime(totalVol, zVol)

	wSA := e.cfg.WeightStealth
	wHA := e.cfg.WeightHolder
	wVS := e.cfg.WeightVolat
	wSWR := e.cfg.WeightSWR
	wVI := e.cfg.WeightVI
	wSell := e.cfg.WeightSell
	if regime == domain.RegimeDegen {
		wSWR *= 1.5
		wVI *= 1.8
		wSA *= 1.2
		wHA *= 0.8
	}

	scored := make([]*domain.ScoredRow, n)
	instabilities := make([]float64, n)

	e.mu.Lock()
	for i, in := range rows {
		inst := wSA*zSA[i] +
			wHA*zHA[i] +
			wVS*zVS[i] +
			wSWR*zSWR[i] +
			wVI*zVI[i] -
			wSell*zSP[i]

		// Absolute turnover bonus: small batches flatten z-scores, but a
		// token churning its own pool is unstable regardless of peers.
		// Uses the configured base weight, not the regime-scaled one.
		if in.Features.VolumeIntensity > velocityFloor {
			inst += math.Log1p(in.Features.VolumeIntensity) * e.cfg.WeightVI * 1.5
		}

		if in.Features.DataPresence > 0 {
			inst += presenceEps * in.Features.DataPresence
		}

		delta := 0.0
		if p, ok := e.prev[in.Metric.Mint]; ok {
			delta = inst - p.instability
		}
		e.prev[in.Metric.Mint] = prevScore{instability: inst, tsMs: nowMs}

		scored[i] = &domain.ScoredRow{
			Mint:        in.Metric.Mint,
			TimestampMs: nowMs,
			Features:    in.Features,
			Metric:      *in.Metric,
			ZScores: map[string]float64{
				"stealth_accum":    zSA[i],
				"holder_accel":     zHA[i],
				"volatility_shift": zVS[i],
				"swr":              zSWR[i],
				"volume_intensity": zVI[i],
				"sell_pressure":    zSP[i],
				"vol5m":            zVol[i],
			},
			Instability:      inst,
			DeltaInstability: delta,
			Regime:           regime,
		}
		instabilities[i] = inst
	}
	e.pruneLocked(nowMs)
	e.mu.Unlock()

	threshold := signalThreshold(instabilities, e.cfg.Percentile, e.cfg.AbsFloor, e.cfg.MinBatch)

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Instability != scored[j].Instability {
			return scored[i].Instability > scored[j].Instability
		}
		return scored[i].Mint < scored[j].Mint
	})

	e.log.Debug().
		Int("batch", n).
		Str("regime", regime.String()).
		Float64("threshold", threshold).
		Float64("total_vol_5m", totalVol).
		Msg("batch scored")

	return &Batch{
		Rows:       scored,
		Regime:     regime,
		Threshold:  threshold,
		TotalVol5m: totalVol,
	}
}

// detectRegime classifies the batch and records its total volume for the
// next cycles. The trailing-average test abstains until at least one
// prior batch exists.
func (e *Engine) detectRegime(totalVol float64, zVol []float64) domain.Regime {
	e.mu.Lock()
	defer e.mu.Unlock()

	degen := false
	if len(e.volHist) > 0 && totalVol > 2*computeMean(e.volHist) {
		degen = true
	}
	if computeMean(zVol) > degenZMean {
		degen = true
	}
	if totalVol > e.cfg.DegenVolume {
		degen = true
	}

	e.volHist = append(e.volHist, totalVol)
	if len(e.volHist) > volHistoryMax {
		e.volHist = e.volHist[len(e.volHist)-volHistoryMax:]
	}

	if degen {
		return domain.RegimeDegen
	}
	return domain.RegimeStable
}

// pruneLocked drops session deltas not refreshed within the TTL.
// Caller holds e.mu.
func (e *Engine) pruneLocked(nowMs int64) {
	for mint, p := range e.prev {
		if nowMs-p.tsMs > sessionTTLMs {
			delete(e.prev, mint)
		}
	}
}
