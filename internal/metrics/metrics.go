package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, route, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "route", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route", "status"},
	)

	// WebhookAttempts counts delivery attempts by event type and outcome
	WebhookAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_attempts_total", Help: "Webhook delivery attempts by event type and outcome."},
		[]string{"event_type", "outcome"},
	)
	// WebhookJobs counts jobs by final state (delivered, failed, discarded)
	WebhookJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_jobs_total", Help: "Webhook jobs by terminal state."},
		[]string{"event_type", "state"},
	)
	// WebhookRetries counts scheduled retries
	WebhookRetries = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "webhook_retries_total", Help: "Webhook retries scheduled."},
	)
	// WebhookTests counts synchronous test deliveries by outcome
	WebhookTests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_tests_total", Help: "Webhook test deliveries by outcome."},
		[]string{"outcome"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 30000}},
		[]string{"event_type", "outcome"},
	)
	// WebhookQueueDepth is the number of queued jobs across sessions
	WebhookQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "webhook_queue_depth", Help: "Webhook jobs waiting in session queues."},
	)
	// WebhookInFlight is the number of deliveries currently running
	WebhookInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "webhook_in_flight", Help: "Webhook deliveries in flight."},
	)
)

// RegisterDefault registers collectors to the service registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(
			HTTPRequests,
			HTTPDuration,
			WebhookAttempts,
			WebhookJobs,
			WebhookRetries,
			WebhookTests,
			WebhookLatency,
			WebhookQueueDepth,
			WebhookInFlight,
		)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	RegisterDefault()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
