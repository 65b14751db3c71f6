// Package metrics provides the Prometheus metrics exported by fishlens.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fishlens"

// Metrics holds every collector the services report to. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	ExtractorCalls     *prometheus.CounterVec
	ExtractorDuration  prometheus.Histogram
	ExtractorCacheHits prometheus.Counter
	ExtractorCacheMiss prometheus.Counter

	IndexSize             prometheus.Gauge
	IndexQueryDuration    prometheus.Histogram
	IndexInconsistencies  prometheus.Counter
	IndexLoadSkipped      prometheus.Counter
	IndexLoadDuration     prometheus.Gauge

	ModerationTransitions *prometheus.CounterVec
	Searches              *prometheus.CounterVec

	AuditWritten  prometheus.Counter
	AuditDropped  prometheus.Counter
	AuditFailures prometheus.Counter

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates the metrics and registers them on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.ExtractorCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extractor_calls_total",
		Help:      "Descriptor extractions by result (ok, error, timeout).",
	}, []string{"result"})
	m.ExtractorDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "extractor_duration_seconds",
		Help:      "Duration of descriptor extraction calls.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	})
	m.ExtractorCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extractor_cache_hits_total",
		Help:      "Descriptor cache hits.",
	})
	m.ExtractorCacheMiss = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extractor_cache_misses_total",
		Help:      "Descriptor cache misses.",
	})

	m.IndexSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "index_entries",
		Help:      "Descriptors currently held by the vector index.",
	})
	m.IndexQueryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "index_query_duration_seconds",
		Help:      "Duration of exact nearest-neighbour scans.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
	})
	m.IndexInconsistencies = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "index_inconsistencies_total",
		Help:      "Committed catalog entries that could not be indexed.",
	})
	m.IndexLoadSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "index_load_skipped_total",
		Help:      "Catalog entries skipped during index population.",
	})
	m.IndexLoadDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "index_load_duration_seconds",
		Help:      "Duration of the last index population.",
	})

	m.ModerationTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "moderation_transitions_total",
		Help:      "Submissions moved out of pending, by target state.",
	}, []string{"state"})
	m.Searches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "searches_total",
		Help:      "Catalog queries by method and outcome.",
	}, []string{"method", "outcome"})

	m.AuditWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_records_written_total",
		Help:      "Search records persisted.",
	})
	m.AuditDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_records_dropped_total",
		Help:      "Search records dropped because the buffer was full.",
	})
	m.AuditFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_write_failures_total",
		Help:      "Search records that failed to persist.",
	})

	m.HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})
	m.HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ExtractorCalls, m.ExtractorDuration, m.ExtractorCacheHits, m.ExtractorCacheMiss,
		m.IndexSize, m.IndexQueryDuration, m.IndexInconsistencies, m.IndexLoadSkipped, m.IndexLoadDuration,
		m.ModerationTransitions, m.Searches,
		m.AuditWritten, m.AuditDropped, m.AuditFailures,
		m.HTTPRequests, m.HTTPDuration,
	}
}

// Describe implements the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

// ObserveExtraction records one extractor call.
func (m *Metrics) ObserveExtraction(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.ExtractorCalls.WithLabelValues(result).Inc()
	m.ExtractorDuration.Observe(d.Seconds())
}

// CacheHit records a descriptor cache hit or miss.
func (m *Metrics) CacheHit(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.ExtractorCacheHits.Inc()
	} else {
		m.ExtractorCacheMiss.Inc()
	}
}

// SetIndexSize publishes the index size.
func (m *Metrics) SetIndexSize(n int) {
	if m == nil {
		return
	}
	m.IndexSize.Set(float64(n))
}

// ObserveIndexQuery records one index scan.
func (m *Metrics) ObserveIndexQuery(d time.Duration) {
	if m == nil {
		return
	}
	m.IndexQueryDuration.Observe(d.Seconds())
}

// IncIndexInconsistency counts a committed entry missing from the index.
func (m *Metrics) IncIndexInconsistency() {
	if m == nil {
		return
	}
	m.IndexInconsistencies.Inc()
}

// ObserveIndexLoad records the outcome of a population run.
func (m *Metrics) ObserveIndexLoad(skipped int, d time.Duration) {
	if m == nil {
		return
	}
	m.IndexLoadSkipped.Add(float64(skipped))
	m.IndexLoadDuration.Set(d.Seconds())
}

// IncTransition counts a moderation decision.
func (m *Metrics) IncTransition(state string) {
	if m == nil {
		return
	}
	m.ModerationTransitions.WithLabelValues(state).Inc()
}

// IncSearch counts a query by method and outcome.
func (m *Metrics) IncSearch(method, outcome string) {
	if m == nil {
		return
	}
	m.Searches.WithLabelValues(method, outcome).Inc()
}

// IncAuditWritten counts a persisted search record.
func (m *Metrics) IncAuditWritten() {
	if m == nil {
		return
	}
	m.AuditWritten.Inc()
}

// IncAuditDropped counts a record dropped on a full buffer.
func (m *Metrics) IncAuditDropped() {
	if m == nil {
		return
	}
	m.AuditDropped.Inc()
}

// IncAuditFailure counts a record that failed to persist.
func (m *Metrics) IncAuditFailure() {
	if m == nil {
		return
	}
	m.AuditFailures.Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
