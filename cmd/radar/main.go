package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"solana-meme-radar/internal/candles"
	"solana-meme-radar/internal/collector"
	"solana-meme-radar/internal/config"
	"solana-meme-radar/internal/ingestion"
	"solana-meme-radar/internal/market"
	"solana-meme-radar/internal/notify"
	"solana-meme-radar/internal/observability"
	"solana-meme-radar/internal/scheduler"
	"solana-meme-radar/internal/scoring"
	"solana-meme-radar/internal/signals"
	"solana-meme-radar/internal/smartwallet"
	"solana-meme-radar/internal/solana"
	"solana-meme-radar/internal/storage"
	chstore "solana-meme-radar/internal/storage/clickhouse"
	"solana-meme-radar/internal/storage/memory"
	"solana-meme-radar/internal/storage/migrations"
	pgstore "solana-meme-radar/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (env still overrides)")
	dev := flag.Bool("dev", false, "Use in-memory storage instead of PostgreSQL")
	pretty := flag.Bool("pretty", false, "Human-readable console logging instead of JSON")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log, *pretty)

	// Start metrics server if enabled
	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics server listening")
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to signal main goroutine completion
	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("second signal received, forcing exit")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error().Msg("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = run(ctx, cfg, *dev, logger)

	// Signal completion to shutdown handler
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("radar exited")
	}

	logger.Info().Msg("shutdown complete")
}

// newLogger builds the root logger. JSON to stdout by default; the -pretty
// flag (or log.pretty in config) switches to the console writer.
func newLogger(cfg config.LogConfig, pretty bool) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if pretty || cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// run wires the pipeline and blocks until the context is cancelled or a
// component fails.
func run(ctx context.Context, cfg config.Config, dev bool, logger zerolog.Logger) error {
	if cfg.Stream.URL == "" {
		return errors.New("stream url is required (stream.url in config, or WS_URL)")
	}
	if len(cfg.RPC.Endpoints) == 0 {
		return errors.New("at least one rpc endpoint is required (rpc.endpoints in config, or RPC_ENDPOINTS)")
	}
	if !dev && cfg.Database.URL == "" {
		return errors.New("postgres dsn is required (database.url in config, or DATABASE_URL; use -dev for in-memory storage)")
	}

	store := memory.NewStore()
	if !dev {
		pool, err := pgstore.NewPool(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}

		store = &storage.Store{
			Tokens:   pgstore.NewTokenStore(pool),
			Metrics:  pgstore.NewMetricStore(pool),
			Scores:   pgstore.NewScoreStore(pool),
			Signals:  pgstore.NewSignalStore(pool),
			Wallets:  pgstore.NewWalletStore(pool),
			Creators: pgstore.NewCreatorStore(pool),
		}
	} else {
		logger.Info().Msg("using in-memory storage")
	}

	// Optional clickhouse metric mirror. Failure to reach it is fatal only
	// when a DSN was actually configured.
	var archive storage.MetricStore
	if cfg.Database.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Database.ClickhouseDSN)
		if err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		defer conn.Close()
		archive = chstore.NewMetricArchiveStore(conn)
		logger.Info().Msg("clickhouse metric archive enabled")
	}

	rpc, err := solana.NewPool(cfg.RPC.Endpoints, &solana.PoolConfig{
		Cooldown:        cfg.RPC.Cooldown,
		HeliusCooldown:  cfg.RPC.HeliusCooldown,
		RatePerSec:      cfg.RPC.RatePerSec,
		Burst:           cfg.RPC.Burst,
		BreakerFailures: cfg.RPC.BreakerFailures,
		RequestTimeout:  cfg.RPC.RequestTimeout,
	})
	if err != nil {
		return fmt.Errorf("rpc pool: %w", err)
	}

	pairs := market.NewPairClient(cfg.Market.AggregatorURL, market.WithTimeout(cfg.Market.CallTimeout))
	oracle := market.NewOracleClient(cfg.Market.OracleURL, market.WithTimeout(cfg.Market.CallTimeout))
	curve := market.NewCurveClient(cfg.Market.LaunchpadURL, market.WithTimeout(cfg.Market.CallTimeout))
	sol := market.NewSolPricer(oracle, cfg.Market.SolPriceTTL)

	queue := ingestion.NewWorkQueue(cfg.Stream.QueueSize, cfg.Stream.RequeueCooldown)
	book := ingestion.NewTradeBook(cfg.Market.MetricWindow, ingestion.DefaultMaxPerMint)

	streamCfg := ingestion.DefaultStreamConfig()
	streamCfg.ReconnectDelay = cfg.Stream.BackoffBase
	streamCfg.MaxReconnectDelay = cfg.Stream.BackoffMax
	if cfg.Stream.DriftRefresh > 0 {
		streamCfg.DriftRefresh = cfg.Stream.DriftRefresh
	}

	stream, err := ingestion.NewStreamClient(ctx, cfg.Stream.URL, &streamCfg, logger)
	if err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}
	defer stream.Close()

	ingestor := ingestion.NewIngestor(stream, queue, book, store, cfg.Stream.SweepInterval, logger)

	profiler := smartwallet.NewProfiler(rpc, cfg.Wallets, logger)
	refresher := smartwallet.NewRefresher(profiler, store.Wallets, cfg.Wallets, logger)
	creators := smartwallet.NewCreatorEvaluator(store.Tokens, store.Metrics, store.Creators, logger)

	col := collector.New(collector.Sources{
		Pairs:  pairs,
		Oracle: oracle,
		Curve:  curve,
		Sol:    sol,
		Chain:  rpc,
		Book:   book,
	}, cfg.Collector, cfg.Scan.Interval, logger)

	engine := scoring.NewEngine(cfg.Scoring, logger)
	cascade := signals.NewCascade(
		store.Signals,
		candles.NewGate(cfg.Market.CandleInterval, cfg.Gates.CandleFailOpen),
		cfg.Gates,
		cfg.Safety,
		logger,
	)

	sched := scheduler.New(scheduler.Options{
		Store:        store,
		Archive:      archive,
		Queue:        queue,
		Book:         book,
		Collector:    col,
		Engine:       engine,
		Cascade:      cascade,
		Smart:        refresher,
		Creators:     creators,
		Notifier:     notify.NewLogNotifier(logger),
		Subs:         ingestor,
		Scan:         cfg.Scan,
		Wallets:      cfg.Wallets,
		MetricWindow: cfg.Market.MetricWindow,
		Log:          logger,
	})

	logger.Info().
		Str("stream", cfg.Stream.URL).
		Int("rpc_endpoints", len(cfg.RPC.Endpoints)).
		Dur("scan_interval", cfg.Scan.Interval).
		Msg("radar starting")

	// The ingestor and the scheduler run side by side; whichever stops
	// first takes the other down with it.
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		errCh <- ingestor.Run(runCtx)
		stop()
	}()
	go func() {
		errCh <- sched.Run(runCtx)
		stop()
	}()

	first := <-errCh
	stop()
	second := <-errCh

	if first != nil && !errors.Is(first, context.Canceled) {
		return first
	}
	if second != nil && !errors.Is(second, context.Canceled) {
		return second
	}
	return first
}
