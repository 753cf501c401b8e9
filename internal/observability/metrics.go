// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Stream metrics
	StreamEventsReceived *prometheus.CounterVec
	StreamReconnects     prometheus.Counter
	StreamQueueDepth     prometheus.Gauge
	StreamQueueDrops     prometheus.Counter
	StreamRequeues       prometheus.Counter

	// Collector metrics
	CollectorOutcomes *prometheus.CounterVec
	CollectorDuration prometheus.Histogram
	PartialMetrics    *prometheus.CounterVec

	// RPC metrics
	RPCCallLatency   *prometheus.HistogramVec
	RPCCallErrors    *prometheus.CounterVec
	RPCEndpointState *prometheus.GaugeVec

	// Scan metrics
	ScanCycles        *prometheus.CounterVec
	ScanDuration      prometheus.Histogram
	ScanBatchSize     prometheus.Gauge
	RegimeDegen       prometheus.Gauge
	ProfilesRefreshed prometheus.Counter

	// Gate metrics
	GateRejections *prometheus.CounterVec
	SignalsEmitted prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulScan prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "meme_radar"
	}

	return &Metrics{
		// Stream metrics
		StreamEventsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_received_total",
			Help:      "Total number of stream events received by transaction type",
		}, []string{"tx_type"}),
		StreamReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Total number of websocket reconnect attempts",
		}),
		StreamQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "queue_depth",
			Help:      "Current number of mints waiting in the evaluation queue",
		}),
		StreamQueueDrops: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "queue_drops_total",
			Help:      "Total number of oldest-entry evictions from the full queue",
		}),
		StreamRequeues: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "requeues_total",
			Help:      "Total number of mints re-admitted after requeue cooldown",
		}),

		// Collector metrics
		CollectorOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "outcomes_total",
			Help:      "Total number of metric collection attempts by outcome",
		}, []string{"outcome"}),
		CollectorDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "duration_seconds",
			Help:      "Metric collection duration per token in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		PartialMetrics: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "partial_metrics_total",
			Help:      "Total number of metric snapshots carrying a degradation flag",
		}, []string{"flag"}),

		// RPC metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_errors_total",
			Help:      "Total number of failed RPC calls by method",
		}, []string{"method"}),
		RPCEndpointState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "endpoint_open",
			Help:      "Circuit breaker state per endpoint (1 = open, 0 = closed)",
		}, []string{"endpoint"}),

		// Scan metrics
		ScanCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "cycles_total",
			Help:      "Total number of scan cycles by status",
		}, []string{"status"}),
		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Scan cycle duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		ScanBatchSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "batch_size",
			Help:      "Number of tokens evaluated in the latest cycle",
		}),
		RegimeDegen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "regime_degen",
			Help:      "Whether the latest cycle classified the market as DEGEN (1) or STABLE (0)",
		}),
		ProfilesRefreshed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "profiles_refreshed_total",
			Help:      "Total number of wallet profile refresh runs",
		}),

		// Gate metrics
		GateRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gates",
			Name:      "rejections_total",
			Help:      "Total number of candidates rejected by gate stage",
		}, []string{"stage"}),
		SignalsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gates",
			Name:      "signals_emitted_total",
			Help:      "Total number of instability signals emitted",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulScan: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_scan_timestamp",
			Help:      "Unix timestamp of last successful scan cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordStreamEvent increments the stream event counter for a transaction type.
func RecordStreamEvent(txType string) {
	DefaultMetrics.StreamEventsReceived.WithLabelValues(txType).Inc()
}

// RecordStreamReconnect increments the websocket reconnect counter.
func RecordStreamReconnect() {
	DefaultMetrics.StreamReconnects.Inc()
}

// UpdateQueueDepth updates the evaluation queue depth gauge.
func UpdateQueueDepth(depth int) {
	DefaultMetrics.StreamQueueDepth.Set(float64(depth))
}

// RecordQueueDrop increments the queue eviction counter.
func RecordQueueDrop() {
	DefaultMetrics.StreamQueueDrops.Inc()
}

// RecordRequeue increments the requeue counter.
func RecordRequeue() {
	DefaultMetrics.StreamRequeues.Inc()
}

// RecordCollection records a collection attempt outcome and its duration.
func RecordCollection(outcome string, seconds float64) {
	DefaultMetrics.CollectorOutcomes.WithLabelValues(outcome).Inc()
	DefaultMetrics.CollectorDuration.Observe(seconds)
}

// RecordPartialMetric increments the degradation flag counter.
func RecordPartialMetric(flag string) {
	DefaultMetrics.PartialMetrics.WithLabelValues(flag).Inc()
}

// RecordRPCCall records RPC call latency and an optional error.
func RecordRPCCall(method string, seconds float64, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// UpdateEndpointState records whether an endpoint's circuit breaker is open.
func UpdateEndpointState(endpoint string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	DefaultMetrics.RPCEndpointState.WithLabelValues(endpoint).Set(v)
}

// RecordScanCycle records a scan cycle outcome, its duration and batch size.
func RecordScanCycle(status string, seconds float64, batchSize int) {
	DefaultMetrics.ScanCycles.WithLabelValues(status).Inc()
	DefaultMetrics.ScanDuration.Observe(seconds)
	DefaultMetrics.ScanBatchSize.Set(float64(batchSize))
	if status == "success" {
		DefaultMetrics.LastSuccessfulScan.SetToCurrentTime()
	}
}

// UpdateRegime records the market regime of the latest cycle.
func UpdateRegime(degen bool) {
	v := 0.0
	if degen {
		v = 1.0
	}
	DefaultMetrics.RegimeDegen.Set(v)
}

// RecordProfileRefresh increments the wallet profile refresh counter.
func RecordProfileRefresh() {
	DefaultMetrics.ProfilesRefreshed.Inc()
}

// RecordGateRejection increments the rejection counter for a gate stage.
func RecordGateRejection(stage string) {
	DefaultMetrics.GateRejections.WithLabelValues(stage).Inc()
}

// RecordSignalEmitted increments the emitted signal counter.
func RecordSignalEmitted() {
	DefaultMetrics.SignalsEmitted.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
