package broadcast

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the real-time layer's collectors on a private registry, so
// several hubs can live in one process (and one test binary).
type Metrics struct {
	registry    *prometheus.Registry
	connections prometheus.Gauge
	published   *prometheus.CounterVec
	delivered   prometheus.Counter
	dropped     prometheus.Counter
	rejected    *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "workspace",
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Number of open real-time connections.",
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workspace",
			Subsystem: "realtime",
			Name:      "events_published_total",
			Help:      "Events published to rooms, by event type.",
		}, []string{"event"}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "workspace",
			Subsystem: "realtime",
			Name:      "frames_enqueued_total",
			Help:      "Frames accepted into connection send queues.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "workspace",
			Subsystem: "realtime",
			Name:      "frames_dropped_total",
			Help:      "Frames dropped because a connection was closed or too slow.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workspace",
			Subsystem: "realtime",
			Name:      "rejections_total",
			Help:      "Connections rejected at admission, by reason.",
		}, []string{"reason"}),
	}

	m.registry.MustRegister(m.connections, m.published, m.delivered, m.dropped, m.rejected)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
