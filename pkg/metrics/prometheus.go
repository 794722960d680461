package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	providerCalls *prometheus.CounterVec
	tokensIssued  prometheus.Counter
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kisquote_cache_hits_total",
			Help: "Quote lookups served from the price cache",
		}),
		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kisquote_cache_misses_total",
			Help: "Quote lookups that went to the provider",
		}),
		providerCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kisquote_provider_calls_total",
				Help: "Calls to the brokerage API by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		tokensIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kisquote_tokens_issued_total",
			Help: "OAuth tokens issued from the provider",
		}),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kisquote_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kisquote_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordCacheHit records n lookups served from cache.
func (r *Recorder) RecordCacheHit(n int) {
	r.cacheHits.Add(float64(n))
}

// RecordCacheMiss records n lookups that missed the cache.
func (r *Recorder) RecordCacheMiss(n int) {
	r.cacheMisses.Add(float64(n))
}

// RecordProviderCall records one brokerage API call.
func (r *Recorder) RecordProviderCall(endpoint, outcome string) {
	r.providerCalls.WithLabelValues(endpoint, outcome).Inc()
}

// RecordTokenIssued records one successful token issuance.
func (r *Recorder) RecordTokenIssued() {
	r.tokensIssued.Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
