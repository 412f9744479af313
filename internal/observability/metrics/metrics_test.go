package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestTurnMetricsObserve(t *testing.T) {
	m := NewTurnMetrics(prometheus.NewRegistry())
	m.ObserveTurn("clean", "APPOINTMENT")
	m.ObserveCache("hit")
	m.ObserveToolCall("book_appointment")
	m.ObserveBookingConflict()
	m.ObserveTurnLatency("APPOINTMENT", 0.25)
}

func TestTurnMetricsNilSafe(t *testing.T) {
	var m *TurnMetrics
	m.ObserveTurn("spam", "GENERAL")
	m.ObserveCache("miss")
	m.ObserveToolCall("find_doctors")
	m.ObserveBookingConflict()
	m.ObserveTurnLatency("GENERAL", 0.1)
}
