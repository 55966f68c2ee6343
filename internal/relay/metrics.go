package relay

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the relay's Prometheus instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	connections prometheus.Gauge
	frames      *prometheus.CounterVec
	relays      *prometheus.CounterVec
	broadcasts  prometheus.Counter
}

// NewMetrics creates the instruments and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gophrelay_connections",
			Help: "Number of connected identities.",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gophrelay_inbound_frames_total",
			Help: "Inbound frames by kind.",
		}, []string{"kind"}),
		relays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gophrelay_messages_total",
			Help: "Encrypted messages by outcome.",
		}, []string{"result"}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gophrelay_presence_broadcasts_total",
			Help: "Presence broadcasts sent.",
		}),
	}
	reg.MustRegister(m.connections, m.frames, m.relays, m.broadcasts)
	return m
}

func (m *Metrics) setConnections(n int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(n))
}

func (m *Metrics) frame(kind string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(kind).Inc()
}

func (m *Metrics) relay(result string) {
	if m == nil {
		return
	}
	m.relays.WithLabelValues(result).Inc()
}

func (m *Metrics) presenceBroadcast() {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
}
