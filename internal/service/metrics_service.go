package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/skill-training-api/internal/models"
)

const metricsNamespace = "skilltraining"

// MetricsService owns the Prometheus registry of the API and keeps running totals so the
// analytics endpoint can report them without scraping.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	httpDuration   *prometheus.HistogramVec
	httpRequests   *prometheus.CounterVec
	cacheLookup    *prometheus.HistogramVec
	cacheWrite     prometheus.Histogram
	cacheHitRatio  prometheus.Gauge
	dbQuery        *prometheus.HistogramVec
	registrations  prometheus.Counter
	ruleViolations *prometheus.CounterVec
	validations    *prometheus.CounterVec
	evidence       *prometheus.CounterVec
	evidenceBytes  prometheus.Counter

	totals metricTotals
}

type metricTotals struct {
	requests        atomic.Uint64
	requestNanos    atomic.Uint64
	cacheHits       atomic.Uint64
	cacheMisses     atomic.Uint64
	dbQueries       atomic.Uint64
	dbNanos         atomic.Uint64
	registrations   atomic.Uint64
	ruleViolations  atomic.Uint64
	validations     atomic.Uint64
	evidenceUploads atomic.Uint64
}

// NewMetricsService registers the collectors under the skilltraining namespace.
func NewMetricsService() *MetricsService {
	m := &MetricsService{registry: prometheus.NewRegistry()}

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served",
	}, []string{"method", "route", "status"})
	m.cacheLookup = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "cache",
		Name:      "lookup_seconds",
		Help:      "Analytics cache lookups by result",
		Buckets:   prometheus.DefBuckets,
	}, []string{"result"})
	m.cacheWrite = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "cache",
		Name:      "write_seconds",
		Help:      "Analytics cache write latency",
		Buckets:   prometheus.DefBuckets,
	})
	m.cacheHitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "cache",
		Name:      "hit_ratio",
		Help:      "Cache hits over all cache lookups since start",
	})
	m.dbQuery = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "db",
		Name:      "query_duration_seconds",
		Help:      "Duration of instrumented database queries",
		Buckets:   prometheus.DefBuckets,
	}, []string{"query"})
	m.registrations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "training",
		Name:      "registrations_total",
		Help:      "Training sessions registered",
	})
	m.ruleViolations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "training",
		Name:      "rule_violations_total",
		Help:      "Training writes refused by a business rule or a concurrent writer",
	}, []string{"rule"})
	m.validations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "training",
		Name:      "validations_total",
		Help:      "Approve and reject decisions",
	}, []string{"status"})
	m.evidence = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "evidence",
		Name:      "uploads_total",
		Help:      "Evidence files stored by detected MIME type",
	}, []string{"mime_type"})
	m.evidenceBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "evidence",
		Name:      "uploaded_bytes_total",
		Help:      "Bytes of evidence stored",
	})
	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "goroutines",
		Help:      "Goroutines currently running",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	m.registry.MustRegister(
		m.httpDuration, m.httpRequests,
		m.cacheLookup, m.cacheWrite, m.cacheHitRatio,
		m.dbQuery,
		m.registrations, m.ruleViolations, m.validations,
		m.evidence, m.evidenceBytes,
		goroutines,
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request. route is the gin route template, not the raw path.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
	m.httpRequests.WithLabelValues(method, route, code).Inc()
	m.totals.requests.Add(1)
	m.totals.requestNanos.Add(uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a cache lookup and refreshes the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
		m.totals.cacheHits.Add(1)
	} else {
		m.totals.cacheMisses.Add(1)
	}
	m.cacheLookup.WithLabelValues(result).Observe(duration.Seconds())
	m.cacheHitRatio.Set(ratio(m.totals.cacheHits.Load(), m.totals.cacheMisses.Load()))
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records the timing of a labelled query.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQuery.WithLabelValues(label).Observe(duration.Seconds())
	m.totals.dbQueries.Add(1)
	m.totals.dbNanos.Add(uint64(duration.Nanoseconds()))
}

// RecordTrainingRegistration counts a persisted training session.
func (m *MetricsService) RecordTrainingRegistration() {
	if m == nil {
		return
	}
	m.registrations.Inc()
	m.totals.registrations.Add(1)
}

// RecordTrainingRuleViolation counts a write refused with the given error code.
func (m *MetricsService) RecordTrainingRuleViolation(rule string) {
	if m == nil {
		return
	}
	m.ruleViolations.WithLabelValues(rule).Inc()
	m.totals.ruleViolations.Add(1)
}

// RecordTrainingValidation counts an approve or reject decision.
func (m *MetricsService) RecordTrainingValidation(status models.TrainingStatus) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(string(status)).Inc()
	m.totals.validations.Add(1)
}

// RecordEvidenceUpload counts a stored evidence file.
func (m *MetricsService) RecordEvidenceUpload(mimeType string, sizeBytes int64) {
	if m == nil {
		return
	}
	m.evidence.WithLabelValues(mimeType).Inc()
	if sizeBytes > 0 {
		m.evidenceBytes.Add(float64(sizeBytes))
	}
	m.totals.evidenceUploads.Add(1)
}

// Snapshot returns the running totals for the system analytics endpoint.
func (m *MetricsService) Snapshot() models.AnalyticsSystemMetrics {
	if m == nil {
		return models.AnalyticsSystemMetrics{}
	}
	hits := m.totals.cacheHits.Load()
	misses := m.totals.cacheMisses.Load()
	requests := m.totals.requests.Load()
	dbQueries := m.totals.dbQueries.Load()

	return models.AnalyticsSystemMetrics{
		CacheHitRatio:            ratio(hits, misses),
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: averageMillis(m.totals.requestNanos.Load(), requests),
		DBQueryCount:             dbQueries,
		AverageDBQueryDurationMs: averageMillis(m.totals.dbNanos.Load(), dbQueries),
		TrainingRegistrations:    m.totals.registrations.Load(),
		TrainingRejections:       m.totals.ruleViolations.Load(),
		TrainingValidations:      m.totals.validations.Load(),
		EvidenceUploads:          m.totals.evidenceUploads.Load(),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

func ratio(hits, misses uint64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

func averageMillis(totalNanos, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return float64(totalNanos) / float64(count) / float64(time.Millisecond)
}
