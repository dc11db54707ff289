package observability

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"
)

// MetricsRegistry holds all registered metrics.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
	histos   map[string]*Histogram
}

// Counter is a monotonically increasing metric.
type Counter struct {
	name  string
	help  string
	mu    sync.Mutex
	value float64
}

// Gauge is a metric that can go up or down.
type Gauge struct {
	name  string
	help  string
	mu    sync.Mutex
	value float64
}

// Histogram tracks the distribution of observed values.
type Histogram struct {
	name    string
	help    string
	buckets []float64
	mu      sync.Mutex
	counts  []uint64
	sum     float64
	count   uint64
}

// NewMetricsRegistry creates a new metrics registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
		histos:   make(map[string]*Histogram),
	}
}

// NewCounter creates and registers a counter.
func (r *MetricsRegistry) NewCounter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := &Counter{name: name, help: help}
	r.counters[name] = c
	return c
}

// NewGauge creates and registers a gauge.
func (r *MetricsRegistry) NewGauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := &Gauge{name: name, help: help}
	r.gauges[name] = g
	return g
}

// NewHistogram creates and registers a histogram. buckets nil means the
// default latency buckets.
func (r *MetricsRegistry) NewHistogram(name, help string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	if buckets == nil {
		buckets = DefaultBuckets()
	}
	h := &Histogram{
		name:    name,
		help:    help,
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
	r.histos[name] = h
	return h
}

// DefaultBuckets returns default histogram buckets for latency in seconds.
func DefaultBuckets() []float64 {
	return []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
}

// Inc increments a counter by 1.
func (c *Counter) Inc() { c.Add(1) }

// Add adds a value to the counter.
func (c *Counter) Add(v float64) {
	c.mu.Lock()
	c.value += v
	c.mu.Unlock()
}

// Value returns the counter value.
func (c *Counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set sets the gauge value.
func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	g.value = v
	g.mu.Unlock()
}

// Inc increments the gauge by 1.
func (g *Gauge) Inc() { g.Add(1) }

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() { g.Add(-1) }

// Add adds a value to the gauge.
func (g *Gauge) Add(v float64) {
	g.mu.Lock()
	g.value += v
	g.mu.Unlock()
}

// Value returns the gauge value.
func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.count++
	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i]++
		}
	}
}

// ObserveDuration records the time elapsed since start.
func (h *Histogram) ObserveDuration(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Handler returns an HTTP handler serving Prometheus text format.
func (r *MetricsRegistry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WritePrometheus(w)
	})
}

// WritePrometheus writes all metrics in Prometheus text format, sorted by
// name for stable output.
func (r *MetricsRegistry) WritePrometheus(w http.ResponseWriter) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range sortedKeys(r.counters) {
		c := r.counters[name]
		c.mu.Lock()
		writeHeader(w, c.name, "counter", c.help)
		fmt.Fprintf(w, "%s %s\n", c.name, formatFloat(c.value))
		c.mu.Unlock()
	}
	for _, name := range sortedKeys(r.gauges) {
		g := r.gauges[name]
		g.mu.Lock()
		writeHeader(w, g.name, "gauge", g.help)
		fmt.Fprintf(w, "%s %s\n", g.name, formatFloat(g.value))
		g.mu.Unlock()
	}
	for _, name := range sortedKeys(r.histos) {
		h := r.histos[name]
		h.mu.Lock()
		writeHeader(w, h.name, "histogram", h.help)
		var cumulative uint64
		for i, bound := range h.buckets {
			cumulative += h.counts[i]
			fmt.Fprintf(w, "%s_bucket{le=%q} %d\n", h.name, formatFloat(bound), cumulative)
		}
		fmt.Fprintf(w, "%s_bucket{le=\"+Inf\"} %d\n", h.name, h.count)
		fmt.Fprintf(w, "%s_sum %s\n", h.name, formatFloat(h.sum))
		fmt.Fprintf(w, "%s_count %d\n", h.name, h.count)
		h.mu.Unlock()
	}
}

func writeHeader(w http.ResponseWriter, name, metricType, help string) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, metricType)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ServiceMetrics contains the talentsync-specific metrics.
type ServiceMetrics struct {
	Registry *MetricsRegistry

	// Match pipeline
	MatchRequestsTotal   *Counter
	MatchRequestDuration *Histogram
	MatchResultsTotal    *Counter
	MatchDegradedTotal   *Counter

	// LLM calls
	LLMRequestsTotal *Counter
	LLMErrorsTotal   *Counter
	LLMDuration      *Histogram

	// Reconciliation
	SyncRunsTotal         *Counter
	SyncDuration          *Histogram
	SyncMissingAdded      *Counter
	SyncDuplicatesRemoved *Counter
	SyncOrphansRemoved    *Counter
	SyncSkippedTotal      *Counter

	// Locks
	LockClaimsTotal    *Counter
	LockConflictsTotal *Counter
	LockReleasesTotal  *Counter

	// Workers
	ActiveWorkers *Gauge
}

// NewServiceMetrics creates the talentsync metric set.
func NewServiceMetrics() *ServiceMetrics {
	r := NewMetricsRegistry()

	return &ServiceMetrics{
		Registry: r,

		MatchRequestsTotal:   r.NewCounter("talentsync_match_requests_total", "Total match requests"),
		MatchRequestDuration: r.NewHistogram("talentsync_match_request_duration_seconds", "Match request duration", nil),
		MatchResultsTotal:    r.NewCounter("talentsync_match_results_total", "Total match results returned"),
		MatchDegradedTotal:   r.NewCounter("talentsync_match_degraded_total", "Match results with a degraded explanation"),

		LLMRequestsTotal: r.NewCounter("talentsync_llm_requests_total", "Total language-model requests"),
		LLMErrorsTotal:   r.NewCounter("talentsync_llm_errors_total", "Total language-model errors"),
		LLMDuration:      r.NewHistogram("talentsync_llm_request_duration_seconds", "Language-model request duration", nil),

		SyncRunsTotal:         r.NewCounter("talentsync_sync_runs_total", "Total reconciliation runs"),
		SyncDuration:          r.NewHistogram("talentsync_sync_duration_seconds", "Reconciliation run duration", nil),
		SyncMissingAdded:      r.NewCounter("talentsync_sync_missing_added_total", "Index entries added for unindexed records"),
		SyncDuplicatesRemoved: r.NewCounter("talentsync_sync_duplicates_removed_total", "Duplicate index entries removed"),
		SyncOrphansRemoved:    r.NewCounter("talentsync_sync_orphans_removed_total", "Orphaned source ids removed from the index"),
		SyncSkippedTotal:      r.NewCounter("talentsync_sync_skipped_total", "Records skipped during reconciliation"),

		LockClaimsTotal:    r.NewCounter("talentsync_lock_claims_total", "Total successful claims"),
		LockConflictsTotal: r.NewCounter("talentsync_lock_conflicts_total", "Claims rejected because the record was held"),
		LockReleasesTotal:  r.NewCounter("talentsync_lock_releases_total", "Total successful releases"),

		ActiveWorkers: r.NewGauge("talentsync_active_workers", "Number of active worker goroutines"),
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *ServiceMetrics) Handler() http.Handler {
	return m.Registry.Handler()
}

// RecordMatchRequest records one finished match request.
func (m *ServiceMetrics) RecordMatchRequest(duration time.Duration, results, degraded int) {
	m.MatchRequestsTotal.Inc()
	m.MatchRequestDuration.Observe(duration.Seconds())
	m.MatchResultsTotal.Add(float64(results))
	m.MatchDegradedTotal.Add(float64(degraded))
}

// RecordLLMRequest records one language-model call.
func (m *ServiceMetrics) RecordLLMRequest(duration time.Duration, err error) {
	m.LLMRequestsTotal.Inc()
	m.LLMDuration.Observe(duration.Seconds())
	if err != nil {
		m.LLMErrorsTotal.Inc()
	}
}

// RecordSyncRun records one reconciliation run.
func (m *ServiceMetrics) RecordSyncRun(duration time.Duration, missingAdded, duplicatesRemoved, orphansRemoved, skipped int) {
	m.SyncRunsTotal.Inc()
	m.SyncDuration.Observe(duration.Seconds())
	m.SyncMissingAdded.Add(float64(missingAdded))
	m.SyncDuplicatesRemoved.Add(float64(duplicatesRemoved))
	m.SyncOrphansRemoved.Add(float64(orphansRemoved))
	m.SyncSkippedTotal.Add(float64(skipped))
}

// Global metrics instance
var globalMetrics *ServiceMetrics
var metricsOnce sync.Once

// Metrics returns the global metrics instance.
func Metrics() *ServiceMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewServiceMetrics()
	})
	return globalMetrics
}
