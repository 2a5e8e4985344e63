package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Asset lookups by side (from/to) and result (hit, miss, error)
	resolverLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "resolver",
			Name:      "lookups_total",
			Help:      "Total number of supported asset lookups",
		},
		[]string{"side", "result"},
	)

	resolverAssetsReturned = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "resolver",
			Name:      "assets_returned",
			Help:      "Number of distinct assets in a resolved asset map",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
		[]string{"side"},
	)

	// Executions by final state and failure reason
	executorExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "executor",
			Name:      "executions_total",
			Help:      "Total number of settled transfer executions",
		},
		[]string{"state", "reason"},
	)

	executorExecutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "executor",
			Name:      "execution_duration_seconds",
			Help:      "Time from submission to settlement of a transfer",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	executorProgressEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "executor",
			Name:      "progress_events_total",
			Help:      "Total number of progress events reported by the router",
		},
		[]string{"kind"},
	)

	executorValidationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "executor",
			Name:      "validation_failures_total",
			Help:      "Total number of transfer requests rejected before execution",
		},
		[]string{"field"},
	)

	// Router API client
	routerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "router_client",
			Name:      "requests_total",
			Help:      "Total number of requests sent to the routing service",
		},
		[]string{"endpoint", "status"},
	)

	routerFailoversTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "router_client",
			Name:      "failovers_total",
			Help:      "Total number of switches to a backup routing endpoint",
		},
	)

	// Websocket sessions
	streamSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "portal",
			Subsystem: "stream",
			Name:      "sessions_active",
			Help:      "Number of open transfer websocket sessions",
		},
	)
)

// RecordLookup records one resolver lookup.
func RecordLookup(side, result string) {
	resolverLookupsTotal.WithLabelValues(side, result).Inc()
}

// RecordAssetCount records the size of a freshly built asset map.
func RecordAssetCount(side string, n int) {
	resolverAssetsReturned.WithLabelValues(side).Observe(float64(n))
}

// RecordExecution records a settled execution.
func RecordExecution(state, reason string, seconds float64) {
	executorExecutionsTotal.WithLabelValues(state, reason).Inc()
	executorExecutionDuration.Observe(seconds)
}

// RecordProgress records a progress event delivered to the caller.
func RecordProgress(kind string) {
	executorProgressEventsTotal.WithLabelValues(kind).Inc()
}

// RecordValidationFailure records a request rejected by the builder.
func RecordValidationFailure(field string) {
	executorValidationFailuresTotal.WithLabelValues(field).Inc()
}

// RecordRouterRequest records one request to the routing service.
func RecordRouterRequest(endpoint, status string) {
	routerRequestsTotal.WithLabelValues(endpoint, status).Inc()
}

// RecordFailover records a switch to a backup endpoint.
func RecordFailover() {
	routerFailoversTotal.Inc()
}

// SessionOpened and SessionClosed track open websocket sessions.
func SessionOpened() {
	streamSessionsActive.Inc()
}

func SessionClosed() {
	streamSessionsActive.Dec()
}
