// Package promsink adapts memcache.EventSink onto Prometheus counters and
// gauges, grounded on the metric names and label shapes the teacher library
// used in its own exporter.
package promsink

import (
	"log"
	"strconv"

	"github.com/cacheflow/memcache"
	"github.com/prometheus/client_golang/prometheus"
)

// Sink records memcache events as Prometheus metrics, labeled by server.
// New registers every metric on the registry it is given, so a registry
// holds one Sink: a second New on the same registry panics on the duplicate
// registration.
type Sink struct {
	server string

	connectTotal      *prometheus.CounterVec
	connectFailures   prometheus.Counter
	connectionsLeased prometheus.Counter
	keepAliveFailures prometheus.Counter
	closures          *prometheus.CounterVec
	queueDepth        prometheus.Gauge
	utilization       *prometheus.GaugeVec
}

// New builds a Sink for server, registering its metrics with registry.
func New(registry *prometheus.Registry, server string) *Sink {
	s := &Sink{
		server: server,
		connectTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memcache_connects_total",
				Help: "Connection attempts by outcome.",
			},
			[]string{"server", "outcome"},
		),
		connectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "memcache_connect_failures_total",
			Help:        "Connection attempts that failed to dial.",
			ConstLabels: prometheus.Labels{"server": server},
		}),
		connectionsLeased: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "memcache_connections_leased_total",
			Help:        "Connections handed out by the pool.",
			ConstLabels: prometheus.Labels{"server": server},
		}),
		keepAliveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "memcache_keepalive_failures_total",
			Help:        "Keep-alive no-op probes that failed.",
			ConstLabels: prometheus.Labels{"server": server},
		}),
		closures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memcache_connection_closed_total",
				Help: "Connections closed, by whether the closure was an error.",
			},
			[]string{"server", "outcome"},
		),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "memcache_request_queue_depth",
			Help:        "Lease requests queued waiting for a connection.",
			ConstLabels: prometheus.Labels{"server": server},
		}),
		utilization: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "memcache_connection_utilization",
				Help: "In-flight requests per connection, as a fraction of its pipeline capacity.",
			},
			[]string{"server", "conn"},
		),
	}

	registry.MustRegister(
		s.connectTotal,
		s.connectFailures,
		s.connectionsLeased,
		s.keepAliveFailures,
		s.closures,
		s.queueDepth,
		s.utilization,
	)
	return s
}

func (s *Sink) StartedConnecting(memcache.ConnID) {}

func (s *Sink) ConnectSucceeded(memcache.ConnID) {
	s.connectTotal.WithLabelValues(s.server, "success").Inc()
}

func (s *Sink) ConnectFailed(memcache.ConnID, error) {
	s.connectTotal.WithLabelValues(s.server, "failure").Inc()
	s.connectFailures.Inc()
}

func (s *Sink) ConnectionLeased(memcache.ConnID) {
	s.connectionsLeased.Inc()
}

func (s *Sink) ConnectionReleased(memcache.ConnID) {}

func (s *Sink) ConnectionClosing(memcache.ConnID) {}

func (s *Sink) ConnectionClosed(_ memcache.ConnID, cause error) {
	if cause != nil {
		s.closures.WithLabelValues(s.server, "error").Inc()
		return
	}
	s.closures.WithLabelValues(s.server, "clean").Inc()
}

func (s *Sink) KeepAliveTriggered(memcache.ConnID) {}

func (s *Sink) KeepAliveSucceeded(memcache.ConnID) {}

func (s *Sink) KeepAliveFailed(memcache.ConnID, error) {
	s.keepAliveFailures.Inc()
}

func (s *Sink) RequestQueueDepthChanged(n int) {
	s.queueDepth.Set(float64(n))
}

func (s *Sink) ConnectionUtilizationChanged(id memcache.ConnID, inFlight, capacity int) {
	label := strconv.FormatUint(uint64(id), 10)
	if capacity == 0 {
		s.utilization.DeleteLabelValues(s.server, label)
		return
	}
	s.utilization.WithLabelValues(s.server, label).Set(float64(inFlight) / float64(capacity))
}

func (s *Sink) Warn(msg string, keyvals ...any) {
	log.Println(append([]any{"memcache warn:", msg}, keyvals...)...)
}

var _ memcache.EventSink = (*Sink)(nil)
