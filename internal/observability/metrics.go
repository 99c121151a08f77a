package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce                sync.Once
	httpRequestsTotal           *prometheus.CounterVec
	httpLatencySeconds          *prometheus.HistogramVec
	chainsGeneratedTotal        prometheus.Counter
	reviewSubmissionsTotal      *prometheus.CounterVec
	sweepTransitionsTotal       *prometheus.CounterVec
	notificationsPublished      *prometheus.CounterVec
	notificationsFailedTotal    prometheus.Counter
	activityEventsRejectedTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the review service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		chainsGeneratedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "review_chains_generated_total",
			Help: "Total number of review chains generated for completed activities.",
		})

		reviewSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "review_submissions_total",
			Help: "Total number of accepted review submissions by rating.",
		}, []string{"rating"})

		sweepTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "review_sweep_transitions_total",
			Help: "Total number of chain status transitions applied by the sweeper.",
		}, []string{"transition"})

		notificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Total number of notifications published by type.",
		}, []string{"type"})

		notificationsFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "review_notifications_failed_total",
			Help: "Total number of review due notifications that could not be delivered.",
		})

		activityEventsRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_events_rejected_total",
			Help: "Total number of activity completion events that did not produce a chain.",
		}, []string{"reason"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			chainsGeneratedTotal,
			reviewSubmissionsTotal,
			sweepTransitionsTotal,
			notificationsPublished,
			notificationsFailedTotal,
			activityEventsRejectedTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// ChainsGenerated exposes the counter of generated chains.
func ChainsGenerated() prometheus.Counter {
	RegisterMetrics()
	return chainsGeneratedTotal
}

// ReviewSubmissions exposes the counter of accepted submissions.
func ReviewSubmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return reviewSubmissionsTotal
}

// SweepTransitions exposes the counter of sweeper transitions, labelled "activated" or "expired".
func SweepTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return sweepTransitionsTotal
}

// NotificationsPublishedTotal exposes the counter of published notifications.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublished
}

// NotificationsFailed exposes the counter of swallowed notification failures.
func NotificationsFailed() prometheus.Counter {
	RegisterMetrics()
	return notificationsFailedTotal
}

// ActivityEventsRejected exposes the counter of dropped activity events.
func ActivityEventsRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return activityEventsRejectedTotal
}
