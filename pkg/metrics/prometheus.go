// Package metrics provides Prometheus metrics for the sync core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus metrics for the sync daemon.
type Manager struct {
	namespace string
	subsystem string
	buckets   []float64
	registry  prometheus.Registerer

	// Session lifecycle
	sessionTransitions *prometheus.CounterVec
	sessionState       *prometheus.GaugeVec
	staleFetchDiscards prometheus.Counter

	// Projection
	projectionRuns    prometheus.Counter
	projectionLatency prometheus.Histogram
	projectedJobs     prometheus.Gauge

	// Derived cache
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheNoopPuts  prometheus.Counter
	cacheRealPuts  prometheus.Counter
	overridesTotal prometheus.Gauge

	// Fetches and writes
	fetchErrors  *prometheus.CounterVec
	writeResults *prometheus.CounterVec

	// Mailbox
	mailboxDepth    prometheus.Gauge
	mailboxDropped  prometheus.Counter
	mailboxEnqueued prometheus.Counter

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithRegistry directs metric registration at a custom registry.
func WithRegistry(r prometheus.Registerer) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// WithHistogramBuckets overrides the default latency buckets.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.buckets = buckets
		}
	}
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry keeps the default Go collectors out of /metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager registered on the given registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "synccore",
		subsystem: "client",
		buckets:   prometheus.DefBuckets,
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.register()
	return m
}

func (m *Manager) register() {
	auto := promauto.With(m.registry)

	m.sessionTransitions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "session_transitions_total",
		Help:      "Session state machine transitions by from/to state",
	}, []string{"from", "to"})

	m.sessionState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "session_state",
		Help:      "Current session state (1 for the active state, 0 otherwise)",
	}, []string{"state"})

	m.staleFetchDiscards = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stale_fetch_discards_total",
		Help:      "Profile fetch results discarded because state or identity moved on",
	})

	m.projectionRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "projection_runs_total",
		Help:      "Activity log projections applied",
	})

	m.projectionLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "projection_latency_milliseconds",
		Help:      "Latency of projecting the full activity log",
		Buckets:   m.buckets,
	})

	m.projectedJobs = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "projected_jobs",
		Help:      "Jobs with derived state after the last projection",
	})

	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "match_cache_hits_total",
		Help:      "Match score lookups answered from the persisted cache",
	})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "match_cache_misses_total",
		Help:      "Match score lookups that required recomputation",
	})

	m.cacheNoopPuts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "match_cache_noop_puts_total",
		Help:      "Cache writes skipped because the stored value was identical",
	})

	m.cacheRealPuts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "match_cache_puts_total",
		Help:      "Cache writes that changed the stored value",
	})

	m.overridesTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "local_overrides",
		Help:      "Local status overrides currently held",
	})

	m.fetchErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fetch_errors_total",
		Help:      "Backend fetch failures by kind (profile, activity)",
	}, []string{"kind"})

	m.writeResults = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "optimistic_writes_total",
		Help:      "Optimistic save/unsave/analyze writes by outcome",
	}, []string{"action", "outcome"})

	m.mailboxDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "mailbox_depth",
		Help:      "Messages waiting in the actor mailbox",
	})

	m.mailboxDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "mailbox_dropped_total",
		Help:      "Messages rejected because the mailbox was closed or the enqueue wait was abandoned",
	})

	m.mailboxEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "mailbox_enqueued_total",
		Help:      "Messages accepted into the actor mailbox",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Control API requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "Control API request duration",
		Buckets:   m.buckets,
	}, []string{"endpoint", "method"})
}

// Package-level helpers recording on the global manager.

// RecordSessionTransition counts a state machine transition and moves the
// session_state gauge to the new state.
func RecordSessionTransition(from, to string) {
	globalManager.sessionTransitions.WithLabelValues(from, to).Inc()
	globalManager.sessionState.WithLabelValues(from).Set(0)
	globalManager.sessionState.WithLabelValues(to).Set(1)
}

// RecordStaleFetchDiscard counts a profile fetch result thrown away.
func RecordStaleFetchDiscard() { globalManager.staleFetchDiscards.Inc() }

// RecordProjection records one projection pass.
func RecordProjection(latencyMs float64, jobs int) {
	globalManager.projectionRuns.Inc()
	globalManager.projectionLatency.Observe(latencyMs)
	globalManager.projectedJobs.Set(float64(jobs))
}

// RecordCacheHit counts a cache read-through hit.
func RecordCacheHit() { globalManager.cacheHits.Inc() }

// RecordCacheMiss counts a cache read-through miss.
func RecordCacheMiss() { globalManager.cacheMisses.Inc() }

// RecordCachePut counts a cache write; noop marks structurally-equal skips.
func RecordCachePut(noop bool) {
	if noop {
		globalManager.cacheNoopPuts.Inc()
		return
	}
	globalManager.cacheRealPuts.Inc()
}

// UpdateOverrideCount tracks the number of live local overrides.
func UpdateOverrideCount(n int) { globalManager.overridesTotal.Set(float64(n)) }

// RecordFetchError counts a backend fetch failure of the given kind.
func RecordFetchError(kind string) {
	globalManager.fetchErrors.WithLabelValues(kind).Inc()
}

// RecordWrite counts an optimistic write outcome (confirmed, failed).
func RecordWrite(action, outcome string) {
	globalManager.writeResults.WithLabelValues(action, outcome).Inc()
}

// UpdateMailboxDepth tracks the actor mailbox backlog.
func UpdateMailboxDepth(n int) { globalManager.mailboxDepth.Set(float64(n)) }

// RecordMailboxEnqueue counts an accepted mailbox message.
func RecordMailboxEnqueue() { globalManager.mailboxEnqueued.Inc() }

// RecordMailboxDrop counts a rejected mailbox message.
func RecordMailboxDrop() { globalManager.mailboxDropped.Inc() }

// RecordHTTPRequest counts a control API request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records a control API request duration.
func RecordHTTPRequestDuration(endpoint, method string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method).Observe(durationMs)
}

// GetRegistry exposes the custom registry for the /metrics handler.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
