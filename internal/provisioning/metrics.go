package provisioning

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/proxk8s/internal/reconcile"
)

// Metrics holds the per-run Prometheus collectors. Each run gets its own
// registry so the written text file only describes that run.
type Metrics struct {
	Registry *prometheus.Registry

	actionsTotal  *prometheus.CounterVec
	phaseDuration *prometheus.GaugeVec
}

// NewMetrics creates and registers the run collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		actionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "proxk8s",
				Subsystem: "reconcile",
				Name:      "actions_total",
				Help:      "Total number of reconcile actions by resource kind, planned action and result",
			},
			[]string{"kind", "action", "result"},
		),
		phaseDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "proxk8s",
				Name:      "phase_duration_seconds",
				Help:      "Wall-clock duration of each phase in this run",
			},
			[]string{"phase"},
		),
	}
	m.Registry.MustRegister(m.actionsTotal, m.phaseDuration)
	return m
}

// ObserveOutcome counts one action outcome.
func (m *Metrics) ObserveOutcome(o reconcile.Outcome) {
	m.actionsTotal.WithLabelValues(o.Kind, string(o.Action), string(o.Status)).Inc()
}

// ObservePhase records how long a phase took.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	m.phaseDuration.WithLabelValues(phase).Set(d.Seconds())
}

// WriteFile writes the registry in the Prometheus text format.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
