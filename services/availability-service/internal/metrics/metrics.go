package metrics

import "github.com/prometheus/client_golang/prometheus"

// AvailabilityMetrics exposes counters/histograms for slot and day queries.
// A nil *AvailabilityMetrics is valid and records nothing.
type AvailabilityMetrics struct {
	queriesTotal *prometheus.CounterVec
	queryLatency *prometheus.HistogramVec
	dayFetches   *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	eventsTotal  *prometheus.CounterVec
}

func NewAvailabilityMetrics(reg prometheus.Registerer) *AvailabilityMetrics {
	m := &AvailabilityMetrics{
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookslots",
			Subsystem: "availability",
			Name:      "queries_total",
			Help:      "Total availability queries by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bookslots",
			Subsystem: "availability",
			Name:      "query_latency_seconds",
			Help:      "Latency of availability queries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		dayFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookslots",
			Subsystem: "availability",
			Name:      "day_fetches_total",
			Help:      "Per-day appointment fetches made while ranking days",
		}, []string{"status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookslots",
			Subsystem: "availability",
			Name:      "cache_lookups_total",
			Help:      "Availability cache lookups",
		}, []string{"kind", "result"}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookslots",
			Subsystem: "availability",
			Name:      "invalidation_events_total",
			Help:      "Booking and window events consumed for cache invalidation",
		}, []string{"event_type", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.queriesTotal, m.queryLatency, m.dayFetches, m.cacheLookups, m.eventsTotal)
	return m
}

func (m *AvailabilityMetrics) ObserveQuery(endpoint, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(endpoint, outcome).Inc()
	m.queryLatency.WithLabelValues(endpoint).Observe(seconds)
}

func (m *AvailabilityMetrics) ObserveDayFetch(ok bool) {
	if m == nil {
		return
	}
	m.dayFetches.WithLabelValues(statusLabel(ok)).Inc()
}

func (m *AvailabilityMetrics) ObserveCache(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(kind, result).Inc()
}

func (m *AvailabilityMetrics) ObserveEvent(eventType string, ok bool) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(eventType, statusLabel(ok)).Inc()
}

func statusLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
