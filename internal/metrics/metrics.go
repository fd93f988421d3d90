// Package metrics exposes relay counters and gauges through prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rendezvous"

// Drop reasons.
const (
	DropUnknownRecipient = "unknown_recipient"
	DropSendFailed       = "send_failed"
	DropStaleBridge      = "stale_bridge"
)

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	Connections prometheus.Gauge
	Sessions    prometheus.Gauge
	Rooms       prometheus.Gauge
	Bridges     prometheus.Gauge
	Matches     prometheus.Counter
	Routed      *prometheus.CounterVec
	Dropped     *prometheus.CounterVec
	Rejected    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open signaling connections, registered or not.",
		}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Registered sessions.",
		}),
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Live rooms.",
		}),
		Bridges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bridges",
			Help:      "Raw-byte connections bound to rooms.",
		}),
		Matches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Symmetric peer pairs formed.",
		}),
		Routed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_routed_total",
			Help:      "Envelopes handed to a recipient connection, by type.",
		}, []string{"type"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_dropped_total",
			Help:      "Envelopes that reached nobody, by reason.",
		}, []string{"reason"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_sent_total",
			Help:      "Error envelopes sent back to clients, by cause.",
		}, []string{"cause"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Connections, m.Sessions, m.Rooms, m.Bridges,
			m.Matches, m.Routed, m.Dropped, m.Rejected,
		)
	}
	return m
}

// Snapshot mirrors the registry counts into the gauges.
func (m *Metrics) Snapshot(connections, sessions, rooms, bridges int) {
	if m == nil {
		return
	}
	m.Connections.Set(float64(connections))
	m.Sessions.Set(float64(sessions))
	m.Rooms.Set(float64(rooms))
	m.Bridges.Set(float64(bridges))
}

func (m *Metrics) Match() {
	if m == nil {
		return
	}
	m.Matches.Inc()
}

func (m *Metrics) Route(envType string) {
	if m == nil {
		return
	}
	m.Routed.WithLabelValues(envType).Inc()
}

func (m *Metrics) Drop(reason string) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Reject(cause string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(cause).Inc()
}
