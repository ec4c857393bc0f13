package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MaterielMetrics records lifecycle activity for materiel operations.
type MaterielMetrics struct {
	duration    *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
}

// NewMaterielMetrics registers the materiel metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewMaterielMetrics(reg prometheus.Registerer) *MaterielMetrics {
	if reg == nil {
		return &MaterielMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "materiel_operation_duration_seconds",
		Help:    "Duration of materiel service operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "materiel_transitions_total",
		Help: "Log entries appended, by action.",
	}, []string{"action"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "materiel_operation_failures_total",
		Help: "Failed materiel operations, by operation and error code.",
	}, []string{"operation", "code"})
	reg.MustRegister(duration, transitions, failures)
	return &MaterielMetrics{
		duration:    duration,
		transitions: transitions,
		failures:    failures,
	}
}

// ObserveDuration records how long the named operation took.
func (m *MaterielMetrics) ObserveDuration(operation string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(operation)).Observe(d.Seconds())
}

// IncTransition counts one appended log entry.
func (m *MaterielMetrics) IncTransition(action string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(action)).Inc()
}

// IncFailure counts a failed operation.
func (m *MaterielMetrics) IncFailure(operation, code string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(operation), normalizeLabel(code)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
