// Package metrics exposes the server's Prometheus surface: an
// enable-gated registry plus gauges mirroring the shared counters and
// session store occupancy, so an external monitor has an HTTP
// alternative to reading the shared-memory regions directly.
//
// The package-level IsEnabled()/GetRegistry() gate is checked before any
// promauto registration runs, so a disabled server pays no collection
// overhead.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	enabled  atomic.Bool
	mu       sync.Mutex
	registry *prometheus.Registry
)

// Enable turns on metrics collection and builds a fresh registry. Must be
// called before any Gauges are constructed.
func Enable() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	registry = prometheus.NewRegistry()
	enabled.Store(true)
	return registry
}

// IsEnabled reports whether metrics collection is active.
func IsEnabled() bool {
	return enabled.Load()
}

// GetRegistry returns the active registry, or nil if metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	return registry
}

// Gauges holds the process's exported gauges. Calling NewGauges when
// metrics are disabled returns a zero-value Gauges whose Set methods are
// no-ops, so callers never need to check IsEnabled() themselves.
type Gauges struct {
	connections    prometheus.Gauge
	packets        prometheus.Gauge
	activeSessions prometheus.Gauge
}

// NewGauges registers the server's gauges against the active registry.
func NewGauges() *Gauges {
	if !IsEnabled() {
		return &Gauges{}
	}
	reg := GetRegistry()
	return &Gauges{
		connections: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "cardserver_connections_total",
			Help: "Total connections accepted since server start.",
		}),
		packets: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "cardserver_packets_total",
			Help: "Total inbound frames successfully decoded since server start.",
		}),
		activeSessions: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "cardserver_active_sessions",
			Help: "Number of currently-occupied session store slots.",
		}),
	}
}

func (g *Gauges) SetConnections(v float64) {
	if g.connections != nil {
		g.connections.Set(v)
	}
}

func (g *Gauges) SetPackets(v float64) {
	if g.packets != nil {
		g.packets.Set(v)
	}
}

func (g *Gauges) SetActiveSessions(v float64) {
	if g.activeSessions != nil {
		g.activeSessions.Set(v)
	}
}
