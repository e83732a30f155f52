package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the rate service.
type Metrics struct {
	// Conversion metrics
	ConversionsTotal *prometheus.CounterVec

	// Table request metrics
	RateRequestsTotal   *prometheus.CounterVec
	RateRequestDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Provider metrics
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderErrorsTotal     *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec
	ProviderRetriesTotal    *prometheus.CounterVec

	// Circuit breaker state per provider (0=closed, 1=open, 2=half-open)
	CircuitState *prometheus.GaugeVec
}

// NewMetrics creates and registers all metrics.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "fx_rate_service"
	}

	return &Metrics{
		ConversionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversions_total",
				Help:      "Total number of conversion requests",
			},
			[]string{"from", "to", "status"},
		),

		RateRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_requests_total",
				Help:      "Total number of rate table requests",
			},
			[]string{"operation", "status"},
		),

		RateRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rate_request_duration_seconds",
				Help:      "Duration of rate table requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		CacheHitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"cache_type"}, // "table" or "pair"
		),

		CacheMissesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"cache_type"},
		),

		ProviderRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Total number of requests to rate providers",
			},
			[]string{"provider", "status"},
		),

		ProviderErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_errors_total",
				Help:      "Total number of errors from rate providers",
			},
			[]string{"provider", "error_type"},
		),

		ProviderRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_request_duration_seconds",
				Help:      "Duration of provider requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider"},
		),

		ProviderRetriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_retries_total",
				Help:      "Total number of provider call retries",
			},
			[]string{"provider"},
		),

		CircuitState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Circuit breaker state per provider (0=closed, 1=open, 2=half-open)",
			},
			[]string{"provider"},
		),
	}
}

// RecordConversion records a conversion request outcome.
func (m *Metrics) RecordConversion(from, to, status string) {
	m.ConversionsTotal.WithLabelValues(from, to, status).Inc()
}

// RecordRateRequest records a table-level request outcome.
func (m *Metrics) RecordRateRequest(operation, status string, durationSeconds float64) {
	m.RateRequestsTotal.WithLabelValues(operation, status).Inc()
	m.RateRequestDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit(cacheType string) {
	m.CacheHitsTotal.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss(cacheType string) {
	m.CacheMissesTotal.WithLabelValues(cacheType).Inc()
}

// RecordProviderRequest records a provider request.
func (m *Metrics) RecordProviderRequest(provider, status string, durationSeconds float64) {
	m.ProviderRequestsTotal.WithLabelValues(provider, status).Inc()
	m.ProviderRequestDuration.WithLabelValues(provider).Observe(durationSeconds)
}

// RecordProviderError records a provider error by type.
func (m *Metrics) RecordProviderError(provider, errorType string) {
	m.ProviderErrorsTotal.WithLabelValues(provider, errorType).Inc()
}

// RecordRetry records one retry of a provider call.
func (m *Metrics) RecordRetry(provider string) {
	m.ProviderRetriesTotal.WithLabelValues(provider).Inc()
}

// SetCircuitState records a circuit breaker state change.
func (m *Metrics) SetCircuitState(provider string, state float64) {
	m.CircuitState.WithLabelValues(provider).Set(state)
}
