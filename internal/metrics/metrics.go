// Package metrics holds the Prometheus collectors shared by the sync store,
// the services and the gateway decorators.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TitleEvents counts change events by type and by what the store did with them.
	TitleEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "titlesync_events_total",
			Help: "Title change events processed by the sync store",
		},
		[]string{"type", "outcome"},
	)

	TitlesVisible = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "titlesync_titles_visible",
			Help: "Number of titles in the current snapshot",
		},
	)

	InitializeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "titlesync_initialize_duration_seconds",
			Help:    "Duration of the bulk title load",
			Buckets: prometheus.DefBuckets,
		},
	)

	InitializeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "titlesync_initialize_failures_total",
			Help: "Bulk title loads that failed",
		},
	)

	Resyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "titlesync_resyncs_total",
			Help: "Resubscribe and reload cycles after a change-feed disconnect",
		},
		[]string{"result"},
	)

	RatingSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rating_submissions_total",
			Help: "Rating submissions by result (saved, stale_aggregate, failed)",
		},
		[]string{"result"},
	)

	CollectionMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collection_mutations_total",
			Help: "Watchlist and list mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	GatewayBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_circuit_breaker_state",
			Help: "Gateway circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	GatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Gateway calls through the circuit breaker by result",
		},
		[]string{"operation", "result"},
	)

	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Connected title stream websocket clients",
		},
	)
)
