package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"herald/pkg/monitoring"
)

// Metrics is optional; a nil *Metrics records nothing.
type Metrics struct {
	Outcomes      *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	RulesApplied  *prometheus.CounterVec
	StatusChanges *prometheus.CounterVec
}

// NewMetrics registers the pipeline series on mc.
func NewMetrics(mc *monitoring.MetricsCollector) *Metrics {
	return &Metrics{
		Outcomes:      mc.NewCounter("publish_outcomes_total", "Pipeline invocations by outcome", []string{"channel", "outcome"}),
		Duration:      mc.NewHistogram("publish_duration_seconds", "Pipeline invocation latency", []string{"channel", "outcome"}, nil),
		RulesApplied:  mc.NewCounter("normalize_rules_applied_total", "Normalization rules that changed the draft", []string{"rule"}),
		StatusChanges: mc.NewCounter("integration_status_changes_total", "Integration status transitions made by the pipeline", []string{"channel", "to"}),
	}
}

func (m *Metrics) observe(channel string, outcome Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(channel, string(outcome)).Inc()
	m.Duration.WithLabelValues(channel, string(outcome)).Observe(elapsed.Seconds())
}

func (m *Metrics) rules(names []string) {
	if m == nil {
		return
	}
	for _, name := range names {
		m.RulesApplied.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) statusChanged(channel, to string) {
	if m == nil {
		return
	}
	m.StatusChanges.WithLabelValues(channel, to).Inc()
}
