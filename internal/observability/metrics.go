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
	// Swap pipeline metrics
	SwapsStarted    prometheus.Counter
	SwapsCompleted  *prometheus.CounterVec
	SwapDuration    *prometheus.HistogramVec
	SwapStageErrors *prometheus.CounterVec
	SwapsInFlight   prometheus.Gauge

	// Usage gating metrics
	AccessDecisions  *prometheus.CounterVec
	UsageRecorded    prometheus.Counter
	UsageWriteErrors prometheus.Counter

	// Provider metrics
	QuoteLatency      prometheus.Histogram
	RPCCallLatency    *prometheus.HistogramVec
	ConfirmationWaits *prometheus.HistogramVec

	// Gateway metrics
	UpdatesReceived *prometheus.CounterVec
	MintsDiscovered prometheus.Counter
	PromptsExpired  prometheus.Counter

	// Health metrics
	UptimeSeconds prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_swapbot"
	}

	return &Metrics{
		SwapsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "swaps_started_total",
			Help:      "Total number of swap requests admitted by the engine",
		}),
		SwapsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "swaps_completed_total",
			Help:      "Total number of swap requests by terminal status",
		}, []string{"status"}),
		SwapDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "swap_duration_seconds",
			Help:      "End-to-end swap execution latency by terminal status",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"status"}),
		SwapStageErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "stage_errors_total",
			Help:      "Total number of swap failures by pipeline stage",
		}, []string{"stage"}),
		SwapsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "swaps_in_flight",
			Help:      "Number of swap requests currently executing",
		}),

		AccessDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "access_decisions_total",
			Help:      "Total number of access check outcomes by decision",
		}, []string{"decision"}),
		UsageRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "requests_recorded_total",
			Help:      "Total number of usage increments persisted",
		}),
		UsageWriteErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "write_errors_total",
			Help:      "Total number of failed usage record writes",
		}),

		QuoteLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "quote_latency_seconds",
			Help:      "Quote provider request latency",
			Buckets:   prometheus.DefBuckets,
		}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency by method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		ConfirmationWaits: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "confirmation_wait_seconds",
			Help:      "Time spent awaiting transaction confirmation by outcome",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"outcome"}),

		UpdatesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "updates_received_total",
			Help:      "Total number of chat updates by kind",
		}, []string{"kind"}),
		MintsDiscovered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "mints_discovered_total",
			Help:      "Total number of mint addresses scraped from chat text",
		}),
		PromptsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "prompts_expired_total",
			Help:      "Total number of amount prompts that lapsed unanswered",
		}),

		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
