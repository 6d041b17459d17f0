package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the room table and frame fan-out. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Rooms       prometheus.Gauge
	Connections prometheus.Gauge
	Frames      *prometheus.CounterVec
	Relayed     prometheus.Counter
	Dropped     prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Rooms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "buddyboard_rooms",
			Help: "Current number of open document rooms",
		}),
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "buddyboard_connections",
			Help: "Current number of registered websocket connections",
		}),
		Frames: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "buddyboard_frames_total",
			Help: "Frames received from clients by op",
		}, []string{"op"}),
		Relayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "buddyboard_relayed_frames_total",
			Help: "Frames received from other instances",
		}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "buddyboard_dropped_frames_total",
			Help: "Frames dropped because a connection buffer was full",
		}),
	}
}

func (m *Metrics) setRooms(n int) {
	if m == nil {
		return
	}
	m.Rooms.Set(float64(n))
}

func (m *Metrics) connected() {
	if m == nil {
		return
	}
	m.Connections.Inc()
}

func (m *Metrics) disconnected() {
	if m == nil {
		return
	}
	m.Connections.Dec()
}

func (m *Metrics) frame(op string) {
	if m == nil {
		return
	}
	m.Frames.WithLabelValues(op).Inc()
}

func (m *Metrics) relayed() {
	if m == nil {
		return
	}
	m.Relayed.Inc()
}

func (m *Metrics) dropped() {
	if m == nil {
		return
	}
	m.Dropped.Inc()
}
