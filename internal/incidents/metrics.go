package incidents

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "incidentdesk"

var (
	incidentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "created_total",
			Help:      "Total incidents created",
		},
		[]string{"severity"},
	)

	statusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "transitions_total",
			Help:      "Total successful status transitions",
		},
		[]string{"from", "to", "actor"},
	)

	escalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "escalations_total",
			Help:      "Total escalations by trigger",
		},
		[]string{"trigger"},
	)

	operationsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "operations_rejected_total",
			Help:      "Operations rejected by validation or policy",
		},
		[]string{"operation", "reason"},
	)

	activeIncidents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "active",
			Help:      "Incidents not yet Resolved or Closed",
		},
	)

	auditEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "entries",
			Help:      "Audit log length (append-only, only grows)",
		},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sla",
			Name:      "sweep_duration_seconds",
			Help:      "Time spent in one SLA breach sweep",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)
)

// Escalation triggers.
const (
	triggerManual = "manual"
	triggerSLA    = "sla"
)

func recordCreated(severity string) {
	incidentsCreated.WithLabelValues(severity).Inc()
}

func recordTransition(from, to, actor string) {
	statusTransitions.WithLabelValues(from, to, actor).Inc()
}

func recordEscalation(trigger string) {
	escalations.WithLabelValues(trigger).Inc()
}

func recordRejected(operation, reason string) {
	operationsRejected.WithLabelValues(operation, reason).Inc()
}

func setActiveIncidents(n int) {
	activeIncidents.Set(float64(n))
}

func setAuditEntries(n int) {
	auditEntries.Set(float64(n))
}

func recordSweepDuration(d time.Duration) {
	sweepDuration.Observe(d.Seconds())
}
