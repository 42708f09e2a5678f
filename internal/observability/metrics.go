package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce       sync.Once
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	errorsTotal        *prometheus.CounterVec
	ticketMutations    *prometheus.CounterVec
	mutationConflicts  prometheus.Counter
	analyticsCacheHits *prometheus.CounterVec
	notificationsSent  *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors. Safe to call repeatedly.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency distribution for HTTP requests.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"method", "route"})

		errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Error responses by domain error code.",
		}, []string{"method", "route", "code"})

		ticketMutations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_mutations_total",
			Help: "Committed ticket mutations by activity action.",
		}, []string{"action"})

		mutationConflicts = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ticket_mutation_conflicts_total",
			Help: "Ticket mutations rejected by the version check.",
		})

		analyticsCacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_cache_lookups_total",
			Help: "Analytics snapshot cache lookups by result.",
		}, []string{"result"})

		notificationsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_enqueued_total",
			Help: "Notification jobs handed to the outbox by result.",
		}, []string{"action", "result"})

		prometheus.MustRegister(
			requestsTotal,
			requestDuration,
			errorsTotal,
			ticketMutations,
			mutationConflicts,
			analyticsCacheHits,
			notificationsSent,
		)
	})
}

// RecordMutation counts a committed ticket mutation.
func RecordMutation(action string) {
	RegisterMetrics()
	ticketMutations.WithLabelValues(action).Inc()
}

// RecordConflict counts a mutation lost to a concurrent writer.
func RecordConflict() {
	RegisterMetrics()
	mutationConflicts.Inc()
}

// RecordCacheLookup counts an analytics cache hit or miss.
func RecordCacheLookup(hit bool) {
	RegisterMetrics()
	result := "miss"
	if hit {
		result = "hit"
	}
	analyticsCacheHits.WithLabelValues(result).Inc()
}

// RecordNotification counts an outbox handoff.
func RecordNotification(action string, err error) {
	RegisterMetrics()
	result := "ok"
	if err != nil {
		result = "error"
	}
	notificationsSent.WithLabelValues(action, result).Inc()
}
