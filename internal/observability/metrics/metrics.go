package metrics

import "github.com/prometheus/client_golang/prometheus"

// TurnMetrics exposes counters/histograms for the conversational pipeline.
type TurnMetrics struct {
	turnsTotal       *prometheus.CounterVec
	cacheTotal       *prometheus.CounterVec
	toolCallsTotal   *prometheus.CounterVec
	bookingConflicts prometheus.Counter
	turnLatency      *prometheus.HistogramVec
}

func NewTurnMetrics(reg prometheus.Registerer) *TurnMetrics {
	m := &TurnMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carelink",
			Subsystem: "assistant",
			Name:      "turns_total",
			Help:      "Total conversation turns by guard zone and intent",
		}, []string{"zone", "intent"}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carelink",
			Subsystem: "assistant",
			Name:      "semantic_cache_total",
			Help:      "Semantic cache lookups by outcome",
		}, []string{"outcome"}),
		toolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carelink",
			Subsystem: "agent",
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool name",
		}, []string{"tool"}),
		bookingConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "carelink",
			Subsystem: "scheduling",
			Name:      "booking_conflicts_total",
			Help:      "Booking attempts lost to a concurrent winner",
		}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "carelink",
			Subsystem: "assistant",
			Name:      "turn_latency_seconds",
			Help:      "End-to-end latency of one conversation turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"intent"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.cacheTotal, m.toolCallsTotal, m.bookingConflicts, m.turnLatency)
	return m
}

func (m *TurnMetrics) ObserveTurn(zone, intentLabel string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(zone, intentLabel).Inc()
}

func (m *TurnMetrics) ObserveCache(outcome string) {
	if m == nil {
		return
	}
	m.cacheTotal.WithLabelValues(outcome).Inc()
}

func (m *TurnMetrics) ObserveToolCall(tool string) {
	if m == nil {
		return
	}
	m.toolCallsTotal.WithLabelValues(tool).Inc()
}

func (m *TurnMetrics) ObserveBookingConflict() {
	if m == nil {
		return
	}
	m.bookingConflicts.Inc()
}

func (m *TurnMetrics) ObserveTurnLatency(intentLabel string, seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.WithLabelValues(intentLabel).Observe(seconds)
}
