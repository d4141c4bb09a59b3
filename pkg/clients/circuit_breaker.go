package clients

import (
	"errors"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"herald/pkg/logging"
)

// CircuitBreakerState represents the state of the circuit breaker.
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateHalfOpen
	StateOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures a circuit breaker guarding one downstream.
type CircuitBreakerConfig struct {
	// Name identifies this circuit breaker in logs and metrics
	Name string

	// MaxRequests is the number of successful requests needed in half-open
	// state before transitioning to closed. Default: 1
	MaxRequests uint32

	// Timeout is how long the circuit stays open before probing. Default: 15s
	Timeout time.Duration

	// FailureRatio trips the circuit once failures/requests exceeds it. Default: 0.5
	FailureRatio float64

	// MinRequests is the sample size the ratio is evaluated over. Default: 10
	MinRequests uint32

	Logger logging.Logger

	OnStateChange func(name string, from, to CircuitBreakerState)
}

// DefaultCircuitBreakerConfig returns sensible defaults for the circuit breaker.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         "default",
		MaxRequests:  1,
		Timeout:      15 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  10,
	}
}

func normalizeCircuitBreakerConfig(cfg CircuitBreakerConfig) CircuitBreakerConfig {
	if cfg.Name == "" {
		cfg.Name = "circuit-breaker"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.5
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 10
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	return cfg
}

// newCircuitBreaker builds a typed failsafe breaker. isFailure decides which
// results count against the ratio; nil counts only errors.
func newCircuitBreaker[R any](cfg CircuitBreakerConfig, isFailure func(R, error) bool) circuitbreaker.CircuitBreaker[R] {
	cfg = normalizeCircuitBreakerConfig(cfg)

	// e.g. 50% of 10 requests = 5 failures
	failureThreshold := uint(float64(cfg.MinRequests) * cfg.FailureRatio)
	if failureThreshold < 1 {
		failureThreshold = 1
	}

	builder := circuitbreaker.NewBuilder[R]().
		WithFailureThresholdRatio(failureThreshold, uint(cfg.MinRequests)).
		WithDelay(cfg.Timeout).
		WithSuccessThreshold(uint(cfg.MaxRequests))

	if isFailure != nil {
		builder = builder.HandleIf(isFailure)
	}

	builder = builder.OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
		from := convertState(event.OldState)
		to := convertState(event.NewState)
		RecordCircuitBreakerTransition(cfg.Name, from, to)
		if cfg.Logger != nil {
			cfg.Logger.WithFields(logging.Fields{
				"circuit_breaker": cfg.Name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("circuit breaker state change")
		}
		if cfg.OnStateChange != nil {
			cfg.OnStateChange(cfg.Name, from, to)
		}
	})

	return builder.Build()
}

func convertState(state circuitbreaker.State) CircuitBreakerState {
	switch state {
	case circuitbreaker.HalfOpenState:
		return StateHalfOpen
	case circuitbreaker.OpenState:
		return StateOpen
	default:
		return StateClosed
	}
}

// IsCircuitOpen reports whether err was produced by an open circuit rejecting the call.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, circuitbreaker.ErrOpen)
}
