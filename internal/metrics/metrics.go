// Package metrics exposes Prometheus collectors for the stream client.
//
// All methods are safe on a nil *Metrics so components can run without
// instrumentation in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors, registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	connectAttempts  prometheus.Counter
	disconnects      *prometheus.CounterVec
	connected        prometheus.Gauge
	state            prometheus.Gauge
	framesReceived   prometheus.Counter
	messages         *prometheus.CounterVec
	pingsSent        prometheus.Counter
	eventsDispatched prometheus.Counter
	eventsDropped    *prometheus.CounterVec
	rowsWritten      prometheus.Counter
	writeErrors      prometheus.Counter
}

// New creates and registers the collectors under namespace.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Transport connection attempts.",
		}),
		disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Sessions ended, by reason.",
		}, []string{"reason"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while the session is authenticated and streaming.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "Numeric session state (0 disconnected .. 5 closing).",
		}),
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Frames or envelopes received from the feed.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Classified server messages, by kind.",
		}, []string{"kind"}),
		pingsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pings_sent_total",
			Help:      "Heartbeat pings sent.",
		}),
		eventsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dispatched_total",
			Help:      "News events delivered to sinks, one per symbol.",
		}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "News events dropped, by reason.",
		}, []string{"reason"}),
		rowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "News rows inserted into the database.",
		}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_errors_total",
			Help:      "Failed database batch inserts.",
		}),
	}

	m.registry.MustRegister(
		m.connectAttempts,
		m.disconnects,
		m.connected,
		m.state,
		m.framesReceived,
		m.messages,
		m.pingsSent,
		m.eventsDispatched,
		m.eventsDropped,
		m.rowsWritten,
		m.writeErrors,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ConnectAttempt() {
	if m != nil {
		m.connectAttempts.Inc()
	}
}

func (m *Metrics) Disconnect(reason string) {
	if m != nil {
		m.disconnects.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) SetConnected(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

func (m *Metrics) SetState(state int) {
	if m != nil {
		m.state.Set(float64(state))
	}
}

func (m *Metrics) FrameReceived() {
	if m != nil {
		m.framesReceived.Inc()
	}
}

func (m *Metrics) Message(kind string) {
	if m != nil {
		m.messages.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) PingSent() {
	if m != nil {
		m.pingsSent.Inc()
	}
}

func (m *Metrics) EventsDispatched(n int) {
	if m != nil && n > 0 {
		m.eventsDispatched.Add(float64(n))
	}
}

func (m *Metrics) EventDropped(reason string) {
	if m != nil {
		m.eventsDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) RowsWritten(n int) {
	if m != nil && n > 0 {
		m.rowsWritten.Add(float64(n))
	}
}

func (m *Metrics) WriteError() {
	if m != nil {
		m.writeErrors.Inc()
	}
}
