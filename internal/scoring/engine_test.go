package scoring

import (
	"fmt"
	"math"
	"sort"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-meme-radar/internal/config"
	"solana-meme-radar/internal/domain"
)

func ptr[T any](v T) *T { return &v }

const nowMs = int64(1_750_000_000_000)

func newTestEngine() *Engine {
	return NewEngine(config.Default().Scoring, zerolog.Nop())
}

// input builds a batch row with the given 5m volume and features.
func input(mint string, vol5m float64, fv domain.FeatureVector) Input {
	fv.Mint = mint
	return Input{
		Metric:   &domain.TokenMetric{Mint: mint, TimestampMs: nowMs, PriceUSD: 1, Volume5mUSD: ptr(vol5m)},
		Features: fv,
	}
}

func findRow(t *testing.T, b *Batch, mint string) *domain.ScoredRow {
	t.Helper()
	for _, r := range b.Rows {
		if r.Mint == mint {
			return r
		}
	}
	t.Fatalf("mint %s not in batch", mint)
	return nil
}

func TestScore_EmptyBatch(t *testing.T) {
	e := newTestEngine()

	out := e.Score(nil, nowMs)
	assert.Empty(t, out.Rows)
	assert.Equal(t, domain.RegimeStable, out.Regime)
	assert.Equal(t, 4.0, out.Threshold)
}

func TestScore_VelocityBoost(t *testing.T) {
	e := newTestEngine()

	// Single-row batches zero out every z-score, isolating the bonus.
	quiet := e.Score([]Input{input("m-quiet", 0, domain.FeatureVector{VolumeIntensity: 0.4})}, nowMs)
	assert.Zero(t, findRow(t, quiet, "m-quiet").Instability,
		"below the velocity floor there is no bonus")

	hot := e.Score([]Input{input("m-hot", 0, domain.FeatureVector{VolumeIntensity: 0.6})}, nowMs)
	want := math.Log1p(0.6) * 1.0 * 1.5
	assert.InDelta(t, want, findRow(t, hot, "m-hot").Instability, 1e-9)
}

func TestScore_PresenceEpsilon(t *testing.T) {
	e := newTestEngine()

	blind := e.Score([]Input{input("m-blind", 0, domain.FeatureVector{})}, nowMs)
	assert.Zero(t, findRow(t, blind, "m-blind").Instability)

	informed := e.Score([]Input{input("m-full", 0, domain.FeatureVector{DataPresence: 1})}, nowMs)
	assert.InDelta(t, 0.05, findRow(t, informed, "m-full").Instability, 1e-9)
}

func TestScore_DeltaSessionMemory(t *testing.T) {
	e := newTestEngine()

	first := e.Score([]Input{input("m1", 0, domain.FeatureVector{VolumeIntensity: 1.2, DataPresence: 1})}, nowMs)
	r1 := findRow(t, first, "m1")
	assert.Zero(t, r1.DeltaInstability, "first sight has no delta")

	second := e.Score([]Input{input("m1", 0, domain.FeatureVector{VolumeIntensity: 3.0, DataPresence: 1})}, nowMs+30_000)
	r2 := findRow(t, second, "m1")

	wantDelta := 1.5*math.Log1p(3.0) - 1.5*math.Log1p(1.2)
	assert.InDelta(t, wantDelta, r2.DeltaInstability, 1e-9)
	assert.InDelta(t, r2.Instability-r1.Instability, r2.DeltaInstability, 1e-9)
}

func TestScore_SellPressureCutsInstability(t *testing.T) {
	e := newTestEngine()

	var inputs []Input
	for i := 0; i < 5; i++ {
		inputs = append(inputs, input(fmt.Sprintf("calm-%d", i), 100, domain.FeatureVector{SellPressure: 0.1}))
	}
	inputs = append(inputs, input("dumped", 100, domain.FeatureVector{SellPressure: 0.9}))

	out := e.Score(inputs, nowMs)

	dumped := findRow(t, out, "dumped")
	calm := findRow(t, out, "calm-0")
	assert.Less(t, dumped.Instability, calm.Instability)
	assert.Equal(t, "dumped", out.Rows[len(out.Rows)-1].Mint,
		"heaviest selling sorts last")
	assert.Positive(t, dumped.ZScores["sell_pressure"])
}

func TestScore_RowsSortedByInstabilityDesc(t *testing.T) {
	e := newTestEngine()

	var inputs []Input
	for i, vi := range []float64{0.1, 5, 1, 9, 3, 0.7} {
		inputs = append(inputs, input(fmt.Sprintf("m%d", i), 0, domain.FeatureVector{VolumeIntensity: vi}))
	}

	out := e.Score(inputs, nowMs)
	require.Len(t, out.Rows, 6)
	for i := 1; i < len(out.Rows); i++ {
		assert.GreaterOrEqual(t, out.Rows[i-1].Instability, out.Rows[i].Instability)
	}
}

func TestScore_ThresholdMatchesPercentile(t *testing.T) {
	e := newTestEngine()

	var inputs []Input
	for i, vi := range []float64{10, 20, 30, 40, 50, 60} {
		inputs = append(inputs, input(fmt.Sprintf("m%d", i), 0, domain.FeatureVector{VolumeIntensity: vi}))
	}

	out := e.Score(inputs, nowMs)

	insts := make([]float64, len(out.Rows))
	for i, r := range out.Rows {
		insts[i] = r.Instability
	}
	sort.Float64s(insts)
	want := math.Max(computePercentile(insts, 0.85), 4.0)
	assert.InDelta(t, want, out.Threshold, 1e-9)
}

func TestScore_SmallBatchUsesFloor(t *testing.T) {
	e := newTestEngine()

	out := e.Score([]Input{
		input("m1", 0, domain.FeatureVector{VolumeIntensity: 50}),
		input("m2", 0, domain.FeatureVector{VolumeIntensity: 60}),
	}, nowMs)

	assert.Equal(t, 4.0, out.Threshold)
}

func TestScore_DegenByTotalVolume(t *testing.T) {
	e := newTestEngine()

	out := e.Score([]Input{input("m1", 600_000, domain.FeatureVector{})}, nowMs)
	assert.Equal(t, domain.RegimeDegen, out.Regime)
	assert.Equal(t, domain.RegimeDegen, out.Rows[0].Regime)
	assert.InDelta(t, 600_000, out.TotalVol5m, 1e-9)
}

func TestScore_DegenByTrailingAverage(t *testing.T) {
	e := newTestEngine()

	// First batch ever: the trailing-average test abstains.
	out := e.Score([]Input{input("a", 300_000, domain.FeatureVector{})}, nowMs)
	assert.Equal(t, domain.RegimeStable, out.Regime,
		"no volume history yet, volume below the hard cap")

	out = e.Score([]Input{input("b", 100_000, domain.FeatureVector{})}, nowMs+30_000)
	assert.Equal(t, domain.RegimeStable, out.Regime)

	// Trailing average is 200k; 450k breaches 2x.
	out = e.Score([]Input{input("c", 450_000, domain.FeatureVector{})}, nowMs+60_000)
	assert.Equal(t, domain.RegimeDegen, out.Regime)
}

func TestScore_DegenReweightsComponents(t *testing.T) {
	stableE := newTestEngine()
	degenE := newTestEngine()

	build := func(extra float64) []Input {
		var inputs []Input
		for i := 0; i < 5; i++ {
			inputs = append(inputs, input(fmt.Sprintf("m%d", i), extra, domain.FeatureVector{SmartWalletRatio: 0.01}))
		}
		// One token with strong smart-wallet rotation.
		inputs = append(inputs, input("smart", extra, domain.FeatureVector{SmartWalletRatio: 0.5}))
		return inputs
	}

	stable := stableE.Score(build(1_000), nowMs)
	require.Equal(t, domain.RegimeStable, stable.Regime)

	degen := degenE.Score(build(100_000), nowMs)
	require.Equal(t, domain.RegimeDegen, degen.Regime)

	// Same z-scores, 1.5x the SWR weight.
	assert.Greater(t,
		findRow(t, degen, "smart").Instability,
		findRow(t, stable, "smart").Instability)
}

func TestScore_ZScoreColumns(t *testing.T) {
	e := newTestEngine()

	out := e.Score([]Input{input("m1", 100, domain.FeatureVector{})}, nowMs)
	row := out.Rows[0]
	for _, key := range []string{
		"stealth_accum", "holder_accel", "volatility_shift",
		"swr", "volume_intensity", "sell_pressure", "vol5m",
	} {
		_, ok := row.ZScores[key]
		assert.True(t, ok, "missing z column %s", key)
	}
}

func TestScore_SkipsNilMetrics(t *testing.T) {
	e := newTestEngine()

	out := e.Score([]Input{
		{Metric: nil},
		input("m1", 0, domain.FeatureVector{}),
	}, nowMs)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, "m1", out.Rows[0].Mint)
}
