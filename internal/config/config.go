// Package config loads radar configuration from defaults, an optional
// YAML file, and environment variable overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete radar configuration.
type Config struct {
	Stream    StreamConfig    `yaml:"stream"`
	RPC       RPCConfig       `yaml:"rpc"`
	Market    MarketConfig    `yaml:"market"`
	Database  DatabaseConfig  `yaml:"database"`
	Scan      ScanConfig      `yaml:"scan"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Safety    SafetyConfig    `yaml:"safety"`
	Wallets   WalletConfig    `yaml:"wallets"`
	Gates     GateConfig      `yaml:"gates"`
	Collector CollectorConfig `yaml:"collector"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// StreamConfig holds stream source connection settings.
type StreamConfig struct {
	URL             string        `yaml:"url"`
	QueueSize       int           `yaml:"queue_size"`
	RequeueCooldown time.Duration `yaml:"requeue_cooldown"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	BackoffBase     time.Duration `yaml:"backoff_base"`
	BackoffMax      time.Duration `yaml:"backoff_max"`
	DriftRefresh    time.Duration `yaml:"drift_refresh"`
}

// RPCConfig holds the rotating JSON-RPC pool settings.
type RPCConfig struct {
	Endpoints       []string      `yaml:"endpoints"`
	Cooldown        time.Duration `yaml:"cooldown"`
	HeliusCooldown  time.Duration `yaml:"helius_cooldown"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	RatePerSec      float64       `yaml:"rate_per_sec"`
	Burst           int           `yaml:"burst"`
	BreakerFailures int           `yaml:"breaker_failures"`
}

// MarketConfig holds market data API settings.
type MarketConfig struct {
	AggregatorURL  string        `yaml:"aggregator_url"`
	OracleURL      string        `yaml:"oracle_url"`
	LaunchpadURL   string        `yaml:"launchpad_url"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
	SolPriceTTL    time.Duration `yaml:"sol_price_ttl"`
	MetricWindow   time.Duration `yaml:"metric_window"`
	CandleInterval time.Duration `yaml:"candle_interval"`
}

// DatabaseConfig holds storage backends.
type DatabaseConfig struct {
	URL           string `yaml:"url"`            // PostgreSQL DSN
	ClickhouseDSN string `yaml:"clickhouse_dsn"` // optional metric archive
}

// ScanConfig holds scan cycle settings.
type ScanConfig struct {
	Interval             time.Duration `yaml:"interval"`
	Fanout               int           `yaml:"fanout"`
	BatchMax             int           `yaml:"batch_max"`
	ProfileRefreshCycles int           `yaml:"profile_refresh_cycles"`
}

// ScoringConfig holds instability scoring settings.
type ScoringConfig struct {
	Percentile    float64 `yaml:"percentile"`
	AbsFloor      float64 `yaml:"abs_floor"`
	MinBatch      int     `yaml:"min_batch"`
	DegenVolume   float64 `yaml:"degen_volume_usd"`
	WeightStealth float64 `yaml:"weight_sa"`
	WeightHolder  float64 `yaml:"weight_holder"`
	WeightVolat   float64 `yaml:"weight_vs"`
	WeightSWR     float64 `yaml:"weight_swr"`
	WeightVI      float64 `yaml:"weight_vi"`
	WeightSell    float64 `yaml:"weight_sell"`
}

// SafetyConfig holds hard bounds checked by the safety gate.
type SafetyConfig struct {
	LiquidityMin  float64 `yaml:"liquidity_min"`
	McapMin       float64 `yaml:"mcap_min"`
	McapMax       float64 `yaml:"mcap_max"`
	Top10MaxRatio float64 `yaml:"top10_max_ratio"`
	HoldersMin    int     `yaml:"holders_min"`
}

// WalletConfig holds smart wallet engine settings.
type WalletConfig struct {
	MinROI      float64       `yaml:"min_roi"`
	MinTrades   int           `yaml:"min_trades"`
	MinWinRate  float64       `yaml:"min_win_rate"`
	CoordWindow time.Duration `yaml:"coord_window"`
	MaxTracked  int           `yaml:"max_tracked"`
}

// GateConfig holds signal cascade settings.
type GateConfig struct {
	ConfidenceMin     float64       `yaml:"confidence_min"`
	DedupWindow       time.Duration `yaml:"dedup_window"`
	KellyFraction     float64       `yaml:"kelly_fraction"`
	KellyWin          float64       `yaml:"kelly_win"`
	KellyLoss         float64       `yaml:"kelly_loss"`
	MaxKellyMicrocap  float64       `yaml:"max_kelly_microcap"`
	MicrocapThreshold float64       `yaml:"microcap_threshold"`
	CandleFailOpen    bool          `yaml:"candle_fail_open"`
	StopLossMult      float64       `yaml:"stop_loss_mult"`
	TakeProfitMult    float64       `yaml:"take_profit_mult"`
}

// CollectorConfig holds metric collection settings.
type CollectorConfig struct {
	CallTimeout     time.Duration `yaml:"call_timeout"`
	VirtualLiqRatio float64       `yaml:"virtual_liq_ratio"`
	VirtualLiqCap   float64       `yaml:"virtual_liq_cap"`
}

// MetricsConfig holds the observability endpoint settings.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration with all defaults applied.
func Default() Config {
	return Config{
		Stream: StreamConfig{
			QueueSize:       512,
			RequeueCooldown: 10 * time.Second,
			SweepInterval:   10 * time.Second,
			BackoffBase:     5 * time.Second,
			BackoffMax:      120 * time.Second,
			DriftRefresh:    5 * time.Minute,
		},
		RPC: RPCConfig{
			Cooldown:        60 * time.Second,
			HeliusCooldown:  300 * time.Second,
			RequestTimeout:  10 * time.Second,
			RatePerSec:      8,
			Burst:           16,
			BreakerFailures: 5,
		},
		Market: MarketConfig{
			AggregatorURL:  "https://api.dexscreener.com",
			OracleURL:      "https://api.jup.ag/price/v2",
			LaunchpadURL:   "https://frontend-api.pump.fun",
			CallTimeout:    8 * time.Second,
			SolPriceTTL:    60 * time.Second,
			MetricWindow:   30 * time.Minute,
			CandleInterval: 5 * time.Minute,
		},
		Scan: ScanConfig{
			Interval:             30 * time.Second,
			Fanout:               8,
			BatchMax:             64,
			ProfileRefreshCycles: 10,
		},
		Scoring: ScoringConfig{
			Percentile:    0.85,
			AbsFloor:      4.0,
			MinBatch:      5,
			DegenVolume:   500_000,
			WeightStealth: 1.0,
			WeightHolder:  1.0,
			WeightVolat:   0.8,
			WeightSWR:     1.2,
			WeightVI:      1.0,
			WeightSell:    0.8,
		},
		Safety: SafetyConfig{
			LiquidityMin:  1000,
			McapMin:       2000,
			McapMax:       30_000_000,
			Top10MaxRatio: 0.50,
			HoldersMin:    15,
		},
		Wallets: WalletConfig{
			MinROI:      1.3,
			MinTrades:   2,
			MinWinRate:  0.35,
			CoordWindow: 15 * time.Second,
			MaxTracked:  5000,
		},
		Gates: GateConfig{
			ConfidenceMin:     0.55,
			DedupWindow:       60 * time.Minute,
			KellyFraction:     0.25,
			KellyWin:          0.40,
			KellyLoss:         0.15,
			MaxKellyMicrocap:  0.15,
			MicrocapThreshold: 50_000,
			CandleFailOpen:    true,
			StopLossMult:      0.85,
			TakeProfitMult:    1.40,
		},
		Collector: CollectorConfig{
			CallTimeout:     8 * time.Second,
			VirtualLiqRatio: 0.20,
			VirtualLiqCap:   2000,
		},
		Metrics: MetricsConfig{Addr: ":9109"},
		Log:     LogConfig{Level: "info"},
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty), then environment overrides, then
// validation. Invalid values fail here rather than at first use.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []string

	setStr := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = b
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}
	setFloat := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = f
		}
	}
	// Durations accept Go syntax ("30s") or a bare number of seconds.
	setDur := func(key string, dst *time.Duration) {
		v, ok := os.LookupEnv(key)
		if !ok {
			return
		}
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
			return
		}
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Second
			return
		}
		errs = append(errs, fmt.Sprintf("%s: not a duration: %q", key, v))
	}
	// Minutes-denominated keys keep their historical unit.
	setMin := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = time.Duration(n) * time.Minute
		}
	}

	setStr("WS_URL", &c.Stream.URL)
	setStr("STREAM_URL", &c.Stream.URL)
	setInt("QUEUE_SIZE", &c.Stream.QueueSize)

	if v, ok := os.LookupEnv("RPC_ENDPOINTS"); ok {
		c.RPC.Endpoints = c.RPC.Endpoints[:0]
		for _, e := range strings.Split(v, ",") {
			if e = strings.TrimSpace(e); e != "" {
				c.RPC.Endpoints = append(c.RPC.Endpoints, e)
			}
		}
	}
	if v, ok := os.LookupEnv("RPC_COOLDOWN_SEC"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("RPC_COOLDOWN_SEC: %v", err))
		} else {
			c.RPC.Cooldown = time.Duration(n) * time.Second
		}
	}

	setStr("AGGREGATOR_URL", &c.Market.AggregatorURL)
	setStr("PRICE_ORACLE_URL", &c.Market.OracleURL)
	setStr("LAUNCHPAD_URL", &c.Market.LaunchpadURL)

	setStr("DATABASE_URL", &c.Database.URL)
	setStr("CLICKHOUSE_DSN", &c.Database.ClickhouseDSN)

	setDur("SCAN_INTERVAL", &c.Scan.Interval)
	setInt("FANOUT", &c.Scan.Fanout)
	setInt("PROFILE_REFRESH_CYCLES", &c.Scan.ProfileRefreshCycles)

	setFloat("SIGNAL_PERCENTILE", &c.Scoring.Percentile)
	setFloat("ABS_FLOOR", &c.Scoring.AbsFloor)
	setFloat("WEIGHT_SA", &c.Scoring.WeightStealth)
	setFloat("WEIGHT_HOLDER", &c.Scoring.WeightHolder)
	setFloat("WEIGHT_VS", &c.Scoring.WeightVolat)
	setFloat("WEIGHT_SWR", &c.Scoring.WeightSWR)
	setFloat("WEIGHT_VI", &c.Scoring.WeightVI)
	setFloat("WEIGHT_SELL", &c.Scoring.WeightSell)

	setFloat("LIQUIDITY_MIN", &c.Safety.LiquidityMin)
	setFloat("MCAP_MIN", &c.Safety.McapMin)
	setFloat("MCAP_MAX", &c.Safety.McapMax)
	setFloat("TOP10_MAX_RATIO", &c.Safety.Top10MaxRatio)
	setInt("HOLDERS_MIN", &c.Safety.HoldersMin)

	setFloat("SW_MIN_ROI", &c.Wallets.MinROI)
	setInt("SW_MIN_TRADES", &c.Wallets.MinTrades)
	setFloat("SW_MIN_WIN_RATE", &c.Wallets.MinWinRate)

	setFloat("CONFIDENCE_MIN", &c.Gates.ConfidenceMin)
	setMin("DEDUP_WINDOW_MIN", &c.Gates.DedupWindow)
	setFloat("MAX_KELLY_MICROCAP", &c.Gates.MaxKellyMicrocap)
	setFloat("MICROCAP_THRESHOLD", &c.Gates.MicrocapThreshold)
	setBool("CANDLE_FAIL_OPEN", &c.Gates.CandleFailOpen)

	setFloat("VIRTUAL_LIQ_RATIO", &c.Collector.VirtualLiqRatio)
	setFloat("VIRTUAL_LIQ_CAP", &c.Collector.VirtualLiqCap)

	setStr("METRICS_ADDR", &c.Metrics.Addr)
	setStr("LOG_LEVEL", &c.Log.Level)
	setBool("LOG_PRETTY", &c.Log.Pretty)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment overrides: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks cross-field consistency and rejects values that would
// make the pipeline misbehave silently.
func (c *Config) Validate() error {
	if c.Stream.QueueSize < 1 {
		return fmt.Errorf("stream queue_size must be positive, got %d", c.Stream.QueueSize)
	}
	if c.Scan.Interval <= 0 {
		return fmt.Errorf("scan interval must be positive, got %s", c.Scan.Interval)
	}
	if c.Scan.Fanout < 1 {
		return fmt.Errorf("scan fanout must be positive, got %d", c.Scan.Fanout)
	}
	if c.Scoring.Percentile <= 0 || c.Scoring.Percentile >= 1 {
		return fmt.Errorf("signal percentile must be in (0,1), got %v", c.Scoring.Percentile)
	}
	if c.Scoring.MinBatch < 1 {
		return fmt.Errorf("scoring min_batch must be positive, got %d", c.Scoring.MinBatch)
	}
	if c.Safety.McapMin >= c.Safety.McapMax {
		return fmt.Errorf("mcap_min %v must be below mcap_max %v", c.Safety.McapMin, c.Safety.McapMax)
	}
	if c.Safety.Top10MaxRatio <= 0 || c.Safety.Top10MaxRatio > 1 {
		return fmt.Errorf("top10_max_ratio must be in (0,1], got %v", c.Safety.Top10MaxRatio)
	}
	if c.Gates.ConfidenceMin <= 0 || c.Gates.ConfidenceMin >= 1 {
		return fmt.Errorf("confidence_min must be in (0,1), got %v", c.Gates.ConfidenceMin)
	}
	if c.Gates.KellyFraction <= 0 || c.Gates.KellyFraction > 1 {
		return fmt.Errorf("kelly_fraction must be in (0,1], got %v", c.Gates.KellyFraction)
	}
	if c.Gates.KellyWin <= 0 || c.Gates.KellyLoss <= 0 {
		return fmt.Errorf("kelly win/loss must be positive, got %v/%v", c.Gates.KellyWin, c.Gates.KellyLoss)
	}
	if c.Gates.DedupWindow <= 0 {
		return fmt.Errorf("dedup window must be positive, got %s", c.Gates.DedupWindow)
	}
	if c.Gates.StopLossMult <= 0 || c.Gates.StopLossMult >= 1 {
		return fmt.Errorf("stop_loss_mult must be in (0,1), got %v", c.Gates.StopLossMult)
	}
	if c.Gates.TakeProfitMult <= 1 {
		return fmt.Errorf("take_profit_mult must exceed 1, got %v", c.Gates.TakeProfitMult)
	}
	if c.Collector.VirtualLiqRatio <= 0 || c.Collector.VirtualLiqRatio > 1 {
		return fmt.Errorf("virtual_liq_ratio must be in (0,1], got %v", c.Collector.VirtualLiqRatio)
	}
	if c.Wallets.MinTrades < 1 {
		return fmt.Errorf("sw min_trades must be positive, got %d", c.Wallets.MinTrades)
	}
	return nil
}
