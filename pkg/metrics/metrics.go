package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sink receives the per-request observations made by the HTTP layer and the
// ingestion service. Implementations must be safe for concurrent use.
type Sink interface {
	ObserveHTTPRequest(path string, status int, latency time.Duration)
	IncWebhookResult(result string)
}

// Metrics owns a private registry so every App (and every test) exports an
// isolated, consistent snapshot.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	WebhookRequestsTotal *prometheus.CounterVec
	RequestLatency       prometheus.Histogram

	DatabaseQueriesTotal  *prometheus.CounterVec
	DatabaseQueryDuration *prometheus.HistogramVec

	EventsPublishedTotal *prometheus.CounterVec

	CircuitBreakerState    *prometheus.GaugeVec
	CircuitBreakerRequests *prometheus.CounterVec
	CircuitBreakerFailures *prometheus.CounterVec

	RateLimitRequestsTotal *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "status"},
		),

		WebhookRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_requests_total",
				Help: "Total number of webhook requests by result",
			},
			[]string{"result"},
		),

		RequestLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "request_latency_ms",
				Help:    "HTTP request latency in milliseconds",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
			},
		),

		DatabaseQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_queries_total",
				Help: "Total number of message store queries (count)",
			},
			[]string{"operation", "status"},
		),

		DatabaseQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "database_query_duration_ms",
				Help:    "Duration of message store queries in milliseconds",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"operation"},
		),

		EventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "message_events_published_total",
				Help: "Total number of message.created events handed to the broker (count)",
			},
			[]string{"status"},
		),

		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
			},
			[]string{"name"},
		),

		CircuitBreakerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circuit_breaker_requests_total",
				Help: "Total number of requests through circuit breaker (count)",
			},
			[]string{"name", "state"},
		),

		CircuitBreakerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circuit_breaker_failures_total",
				Help: "Total number of failures through circuit breaker (count)",
			},
			[]string{"name"},
		),

		RateLimitRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limit_requests_total",
				Help: "Total number of requests checked against rate limit (count)",
			},
			[]string{"status"},
		),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.WebhookRequestsTotal,
		m.RequestLatency,
		m.DatabaseQueriesTotal,
		m.DatabaseQueryDuration,
		m.EventsPublishedTotal,
		m.CircuitBreakerState,
		m.CircuitBreakerRequests,
		m.CircuitBreakerFailures,
		m.RateLimitRequestsTotal,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the text exposition of this registry only.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTPRequest(path string, status int, latency time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(path, strconv.Itoa(status)).Inc()
	m.RequestLatency.Observe(float64(latency.Microseconds()) / 1000.0)
}

func (m *Metrics) IncWebhookResult(result string) {
	if m == nil {
		return
	}
	m.WebhookRequestsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncDatabaseQuery(operation, status string) {
	if m == nil {
		return
	}
	m.DatabaseQueriesTotal.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) ObserveDatabaseQueryDuration(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DatabaseQueryDuration.WithLabelValues(operation).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *Metrics) IncEventPublished(status string) {
	if m == nil {
		return
	}
	m.EventsPublishedTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) SetCircuitBreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(state)
}

func (m *Metrics) IncCircuitBreakerRequest(name, state string, success bool) {
	if m == nil {
		return
	}
	m.CircuitBreakerRequests.WithLabelValues(name, state).Inc()
	if !success {
		m.CircuitBreakerFailures.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) IncRateLimitRequest(status string) {
	if m == nil {
		return
	}
	m.RateLimitRequestsTotal.WithLabelValues(status).Inc()
}

var _ Sink = (*Metrics)(nil)
