package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voicerelay/domain"
)

// Metrics contains all Prometheus metrics for the relay
type Metrics struct {
	registry *prometheus.Registry

	// Connection metrics
	ActiveSessions   prometheus.Gauge
	SessionsOpened   prometheus.Counter
	SessionsClosed   *prometheus.CounterVec
	SessionDuration  prometheus.Histogram
	RegisterFailures prometheus.Counter

	// Fan-out metrics
	MessagesReceived *prometheus.CounterVec
	BytesReceived    *prometheus.CounterVec
	Deliveries       prometheus.Counter
	DeliveryFailures prometheus.Counter
	FanOut           prometheus.Histogram
	ProbesAnswered   prometheus.Counter
}

// NewMetrics creates all metrics on a dedicated registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicerelay_active_sessions",
			Help: "Current number of connected sessions",
		}),
		SessionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicerelay_sessions_opened_total",
			Help: "Total number of sessions registered",
		}),
		SessionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicerelay_sessions_closed_total",
			Help: "Total number of sessions closed, by reason",
		}, []string{"reason"}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicerelay_session_duration_seconds",
			Help:    "Lifetime of relay sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~4.5 hours
		}),
		RegisterFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicerelay_register_failures_total",
			Help: "Total number of sessions rejected at registration",
		}),

		MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicerelay_messages_received_total",
			Help: "Total number of inbound messages, by kind",
		}, []string{"kind"}),
		BytesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicerelay_bytes_received_total",
			Help: "Total inbound payload bytes, by kind",
		}, []string{"kind"}),
		Deliveries: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicerelay_deliveries_total",
			Help: "Total number of per-recipient delivery attempts",
		}),
		DeliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicerelay_delivery_failures_total",
			Help: "Total number of per-recipient deliveries that failed",
		}),
		FanOut: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicerelay_fanout_recipients",
			Help:    "Number of recipients per broadcast",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		}),
		ProbesAnswered: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicerelay_probes_answered_total",
			Help: "Total number of probes answered by the relay itself",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordSessionOpened counts a registered session
func (m *Metrics) RecordSessionOpened() {
	m.SessionsOpened.Inc()
	m.ActiveSessions.Inc()
}

// RecordSessionClosed counts a closed session and records its lifetime
func (m *Metrics) RecordSessionClosed(reason string, durationSeconds float64) {
	m.SessionsClosed.WithLabelValues(reason).Inc()
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

func (m *Metrics) RecordRegisterFailure() {
	m.RegisterFailures.Inc()
}

// RecordRelayed records one inbound message and its fan-out result
func (m *Metrics) RecordRelayed(kind string, bytes int, d domain.Delivery) {
	m.MessagesReceived.WithLabelValues(kind).Inc()
	m.BytesReceived.WithLabelValues(kind).Add(float64(bytes))
	m.Deliveries.Add(float64(d.Recipients))
	m.DeliveryFailures.Add(float64(d.Failed))
	m.FanOut.Observe(float64(d.Recipients))
}

func (m *Metrics) RecordProbeAnswered() {
	m.ProbesAnswered.Inc()
}
