// Package metrics defines the Prometheus collectors shared by the
// orchestrator and the gateway. The gateway exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crosstalk"

// Collector bundles all application metrics behind one registry so
// tests can create isolated instances.
type Collector struct {
	Registry *prometheus.Registry

	HandoffsTotal        prometheus.Counter
	MergesTotal          prometheus.Counter
	MemoryUpdatesTotal   prometheus.Counter
	PersistenceFallbacks prometheus.Counter
	CritiquesDelivered   prometheus.Counter
	CritiquesFailed      prometheus.Counter
	ConnectedSessions    prometheus.Gauge
}

// NewCollector creates and registers all metrics on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,
		HandoffsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoffs_total",
			Help:      "Total number of handoffs initiated by capture events.",
		}),
		MergesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_merges_total",
			Help:      "Total number of summary merges into conversation memory.",
		}),
		MemoryUpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_updates_total",
			Help:      "Total number of memory updates decoded from agent replies.",
		}),
		PersistenceFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_fallbacks_total",
			Help:      "Handoffs that proceeded statelessly after a persistence failure.",
		}),
		CritiquesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "critiques_delivered_total",
			Help:      "Critiques successfully relayed to source sessions.",
		}),
		CritiquesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "critiques_failed_total",
			Help:      "Critique relays dropped because the source session was gone.",
		}),
		ConnectedSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_sessions",
			Help:      "Adapter sessions currently connected to the gateway.",
		}),
	}

	reg.MustRegister(
		c.HandoffsTotal,
		c.MergesTotal,
		c.MemoryUpdatesTotal,
		c.PersistenceFallbacks,
		c.CritiquesDelivered,
		c.CritiquesFailed,
		c.ConnectedSessions,
	)
	return c
}
