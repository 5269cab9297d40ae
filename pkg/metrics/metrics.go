// Package metrics provides Prometheus metrics for the price oracle.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SourceRequestsTotal is a counter of price requests issued to sources.
	SourceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_requests_total",
			Help: "Total number of price requests issued to sources",
		},
		[]string{"source", "status"},
	)

	// SourceRequestDuration is a histogram of per-source request latencies.
	SourceRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_request_duration_seconds",
			Help:    "Latency of price requests to sources",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"source"},
	)

	// BreakerState is a gauge of circuit breaker state per source
	// (0=closed, 1=half-open, 2=open).
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "breaker_state",
			Help: "Circuit breaker state per source (0=closed, 1=half-open, 2=open)",
		},
		[]string{"source"},
	)

	// BreakerTripsTotal is a counter of breaker transitions into the open state.
	BreakerTripsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breaker_trips_total",
			Help: "Total number of circuit breaker trips to open",
		},
		[]string{"source"},
	)

	// AggregationDuration is a histogram of aggregation pipeline durations.
	AggregationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aggregation_duration_seconds",
			Help:    "Duration of price aggregation operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// OutlierRejectionsTotal is a counter of rejected outlier observations.
	OutlierRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outlier_rejections_total",
			Help: "Total number of outlier observations rejected",
		},
		[]string{"symbol", "method"},
	)

	// CacheHitsTotal is a counter of aggregated price cache hits.
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of aggregated price cache hits",
		},
	)

	// CacheMissesTotal is a counter of aggregated price cache misses.
	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of aggregated price cache misses",
		},
	)

	// CacheFallbacksTotal is a counter of stale cache fallbacks.
	CacheFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_fallbacks_total",
			Help: "Total number of stale cache entries served as fallback",
		},
	)

	// HTTPRequestsTotal is a counter of total HTTP requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration is a histogram of HTTP request latencies.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint"},
	)
)

// Init initializes the Prometheus metrics registry.
func Init() {
	prometheus.MustRegister(
		SourceRequestsTotal,
		SourceRequestDuration,
		BreakerState,
		BreakerTripsTotal,
		AggregationDuration,
		OutlierRejectionsTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		CacheFallbacksTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// ServeHTTP serves Prometheus metrics on the specified address.
func ServeHTTP(addr string) error {
	http.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      http.DefaultServeMux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// RecordSourceRequest records the outcome of one price request to a source.
func RecordSourceRequest(source string, ok bool, duration time.Duration) {
	status := "error"
	if ok {
		status = "ok"
	}
	SourceRequestsTotal.WithLabelValues(source, status).Inc()
	SourceRequestDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordBreakerState records a circuit breaker state change.
func RecordBreakerState(source string, state float64) {
	BreakerState.WithLabelValues(source).Set(state)
}

// RecordBreakerTrip records a breaker transition to open.
func RecordBreakerTrip(source string) {
	BreakerTripsTotal.WithLabelValues(source).Inc()
}

// RecordAggregation records a price aggregation operation.
func RecordAggregation(strategy string, duration time.Duration) {
	AggregationDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordOutlierRejection records an outlier rejection.
func RecordOutlierRejection(symbol, method string) {
	OutlierRejectionsTotal.WithLabelValues(symbol, method).Inc()
}

// RecordCacheHit records an aggregated price cache hit.
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records an aggregated price cache miss.
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordCacheFallback records a stale cache entry served as fallback.
func RecordCacheFallback() {
	CacheFallbacksTotal.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
