package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 512, cfg.Stream.QueueSize)
	assert.Equal(t, 10*time.Second, cfg.Stream.RequeueCooldown)
	assert.Equal(t, 5*time.Second, cfg.Stream.BackoffBase)
	assert.Equal(t, 120*time.Second, cfg.Stream.BackoffMax)
	assert.Equal(t, 30*time.Second, cfg.Scan.Interval)
	assert.Equal(t, 0.85, cfg.Scoring.Percentile)
	assert.Equal(t, 4.0, cfg.Scoring.AbsFloor)
	assert.Equal(t, 60*time.Minute, cfg.Gates.DedupWindow)
	assert.Equal(t, 0.15, cfg.Gates.MaxKellyMicrocap)
	assert.True(t, cfg.Gates.CandleFailOpen)
	assert.Equal(t, 60*time.Second, cfg.RPC.Cooldown)
	assert.Equal(t, 300*time.Second, cfg.RPC.HeliusCooldown)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SCAN_INTERVAL", "45s")
	t.Setenv("SIGNAL_PERCENTILE", "0.9")
	t.Setenv("LIQUIDITY_MIN", "2500")
	t.Setenv("DEDUP_WINDOW_MIN", "30")
	t.Setenv("RPC_ENDPOINTS", "https://a.example, https://b.example ,")
	t.Setenv("RPC_COOLDOWN_SEC", "90")
	t.Setenv("SW_MIN_TRADES", "3")
	t.Setenv("CANDLE_FAIL_OPEN", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Scan.Interval)
	assert.Equal(t, 0.9, cfg.Scoring.Percentile)
	assert.Equal(t, 2500.0, cfg.Safety.LiquidityMin)
	assert.Equal(t, 30*time.Minute, cfg.Gates.DedupWindow)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.RPC.Endpoints)
	assert.Equal(t, 90*time.Second, cfg.RPC.Cooldown)
	assert.Equal(t, 3, cfg.Wallets.MinTrades)
	assert.False(t, cfg.Gates.CandleFailOpen)
}

func TestLoadBareSecondsDuration(t *testing.T) {
	t.Setenv("SCAN_INTERVAL", "60")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.Scan.Interval)
}

func TestLoadInvalidEnv(t *testing.T) {
	t.Setenv("SIGNAL_PERCENTILE", "not-a-number")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SIGNAL_PERCENTILE")
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "radar.yaml")
	body := []byte("scan:\n  interval: 15s\n  fanout: 4\nsafety:\n  holders_min: 25\n")
	require.NoError(t, os.WriteFile(path, body, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.Scan.Interval)
	assert.Equal(t, 4, cfg.Scan.Fanout)
	assert.Equal(t, 25, cfg.Safety.HoldersMin)
	// untouched sections keep defaults
	assert.Equal(t, 0.85, cfg.Scoring.Percentile)
}

func TestEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "radar.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan:\n  interval: 15s\n"), 0o644))
	t.Setenv("SCAN_INTERVAL", "90s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Scan.Interval)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero queue", func(c *Config) { c.Stream.QueueSize = 0 }},
		{"percentile out of range", func(c *Config) { c.Scoring.Percentile = 1.5 }},
		{"mcap bounds inverted", func(c *Config) { c.Safety.McapMin = 100; c.Safety.McapMax = 50 }},
		{"confidence out of range", func(c *Config) { c.Gates.ConfidenceMin = 0 }},
		{"kelly fraction zero", func(c *Config) { c.Gates.KellyFraction = 0 }},
		{"stop loss above entry", func(c *Config) { c.Gates.StopLossMult = 1.2 }},
		{"dedup window zero", func(c *Config) { c.Gates.DedupWindow = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
