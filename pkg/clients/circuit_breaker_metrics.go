package clients

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "herald",
			Name:      "circuit_breaker_state",
			Help:      "Breaker state per downstream: 0 closed, 1 half-open, 2 open",
		},
		[]string{"name"},
	)

	breakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "herald",
			Name:      "circuit_breaker_transitions_total",
			Help:      "Breaker state transitions per downstream",
		},
		[]string{"name", "from", "to"},
	)
)

// RecordCircuitBreakerTransition records a state transition and the resulting state.
func RecordCircuitBreakerTransition(name string, from, to CircuitBreakerState) {
	breakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
	breakerState.WithLabelValues(name).Set(float64(to))
}
