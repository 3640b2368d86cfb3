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
	// Transaction lifecycle metrics
	TransactionsSubmitted *prometheus.CounterVec
	TransactionsConfirmed *prometheus.CounterVec
	TransactionsFailed    *prometheus.CounterVec
	ConfirmationLatency   *prometheus.HistogramVec

	// Reconciliation metrics
	ReconcilePassesTotal   *prometheus.CounterVec
	ReconcileDuration      *prometheus.HistogramVec
	OwnedViewSize          prometheus.Gauge
	SaleViewSize           prometheus.Gauge
	MetadataFetchErrors    prometheus.Counter
	TokenReadErrorsSkipped prometheus.Counter

	// Ledger RPC metrics
	RPCCallLatency *prometheus.HistogramVec

	// Session metrics
	SessionConnects    prometheus.Counter
	SessionDisconnects prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "nft_market_client"
	}

	return &Metrics{
		TransactionsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "transactions_submitted_total",
			Help:      "Total number of mutating transactions submitted by action kind",
		}, []string{"kind"}),
		TransactionsConfirmed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "transactions_confirmed_total",
			Help:      "Total number of transactions confirmed by action kind",
		}, []string{"kind"}),
		TransactionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "transactions_failed_total",
			Help:      "Total number of transactions failed by action kind and stage",
		}, []string{"kind", "stage"}),
		ConfirmationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "confirmation_latency_seconds",
			Help:      "Time from submission to terminal status by action kind",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"kind"}),

		ReconcilePassesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "passes_total",
			Help:      "Total number of reconciliation passes by view and status",
		}, []string{"view", "status"}),
		ReconcileDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "pass_duration_seconds",
			Help:      "Reconciliation pass duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"view"}),
		OwnedViewSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "owned_view_size",
			Help:      "Number of tokens in the current owned view",
		}),
		SaleViewSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "sale_view_size",
			Help:      "Number of tokens in the current sale view",
		}),
		MetadataFetchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "metadata_fetch_errors_total",
			Help:      "Total number of per-token metadata fetch failures",
		}),
		TokenReadErrorsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "token_read_errors_skipped_total",
			Help:      "Total number of tokens skipped due to per-token read failures",
		}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "rpc_call_latency_seconds",
			Help:      "Ledger RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		SessionConnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "connects_total",
			Help:      "Total number of successful wallet connects",
		}),
		SessionDisconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "disconnects_total",
			Help:      "Total number of disconnects",
		}),

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
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSubmission increments the submitted counter for an action kind.
func RecordSubmission(kind string) {
	DefaultMetrics.TransactionsSubmitted.WithLabelValues(kind).Inc()
}

// RecordConfirmed records a confirmed transaction and its latency.
func RecordConfirmed(kind string, seconds float64) {
	DefaultMetrics.TransactionsConfirmed.WithLabelValues(kind).Inc()
	DefaultMetrics.ConfirmationLatency.WithLabelValues(kind).Observe(seconds)
}

// RecordFailed records a failed transaction by lifecycle stage.
func RecordFailed(kind, stage string) {
	DefaultMetrics.TransactionsFailed.WithLabelValues(kind, stage).Inc()
}

// RecordReconcilePass records one reconciliation pass.
func RecordReconcilePass(view, status string, seconds float64) {
	DefaultMetrics.ReconcilePassesTotal.WithLabelValues(view, status).Inc()
	DefaultMetrics.ReconcileDuration.WithLabelValues(view).Observe(seconds)
}

// UpdateViewSizes updates the view size gauges.
func UpdateViewSizes(owned, sale int) {
	if owned >= 0 {
		DefaultMetrics.OwnedViewSize.Set(float64(owned))
	}
	if sale >= 0 {
		DefaultMetrics.SaleViewSize.Set(float64(sale))
	}
}

// RecordMetadataFetchError increments the metadata failure counter.
func RecordMetadataFetchError() {
	DefaultMetrics.MetadataFetchErrors.Inc()
}

// RecordTokenSkipped increments the skipped-token counter.
func RecordTokenSkipped() {
	DefaultMetrics.TokenReadErrorsSkipped.Inc()
}

// RecordRPCLatency records ledger RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordConnect increments the connect counter.
func RecordConnect() {
	DefaultMetrics.SessionConnects.Inc()
}

// RecordDisconnect increments the disconnect counter.
func RecordDisconnect() {
	DefaultMetrics.SessionDisconnects.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
