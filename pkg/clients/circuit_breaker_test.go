package clients

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCircuitBreakerStateString(t *testing.T) {
	tests := []struct {
		state    CircuitBreakerState
		expected string
	}{
		{StateClosed, "closed"},
		{StateHalfOpen, "half-open"},
		{StateOpen, "open"},
		{CircuitBreakerState(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.expected)
		}
	}
}

func TestDefaultCircuitBreakerConfig(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig()

	if cfg.Name != "default" {
		t.Errorf("Name = %s, want default", cfg.Name)
	}
	if cfg.MaxRequests != 1 {
		t.Errorf("MaxRequests = %d, want 1", cfg.MaxRequests)
	}
	if cfg.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", cfg.Timeout)
	}
	if cfg.FailureRatio != 0.5 {
		t.Errorf("FailureRatio = %f, want 0.5", cfg.FailureRatio)
	}
	if cfg.MinRequests != 10 {
		t.Errorf("MinRequests = %d, want 10", cfg.MinRequests)
	}
}

//nolint:bodyclose // test responses have no body
func TestHTTPExecutorCircuitOpensAfterFailures(t *testing.T) {
	var mu sync.Mutex
	var transitions []CircuitBreakerState
	executor := NewHTTPExecutor(HTTPExecutorConfig{
		MaxRetries:  0,
		ShouldRetry: NeverRetry,
		CircuitBreaker: &CircuitBreakerConfig{
			Name:         "test-open",
			MinRequests:  2,
			FailureRatio: 1,
			Timeout:      time.Minute,
			OnStateChange: func(_ string, _, to CircuitBreakerState) {
				mu.Lock()
				transitions = append(transitions, to)
				mu.Unlock()
			},
		},
	})

	var attempts int32
	failing := func() (*http.Response, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, errors.New("connection refused")
	}

	for i := 0; i < 2; i++ {
		if _, err := ExecuteHTTP(t.Context(), executor, failing); err == nil {
			t.Fatalf("attempt %d: expected error", i)
		}
	}

	_, err := ExecuteHTTP(t.Context(), executor, failing)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open circuit error, got %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Fatalf("expected open circuit to skip the call, got %d attempts", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) == 0 || transitions[len(transitions)-1] != StateOpen {
		t.Fatalf("expected transition to open, got %v", transitions)
	}
}

//nolint:bodyclose // test responses have no body
func TestHTTPExecutorCircuitIgnoresClientErrors(t *testing.T) {
	executor := NewHTTPExecutor(HTTPExecutorConfig{
		ShouldRetry: NeverRetry,
		CircuitBreaker: &CircuitBreakerConfig{
			Name:         "test-4xx",
			MinRequests:  2,
			FailureRatio: 1,
			Timeout:      time.Minute,
		},
	})

	for i := 0; i < 5; i++ {
		resp, err := ExecuteHTTP(t.Context(), executor, func() (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusUnprocessableEntity}, nil
		})
		if err != nil {
			t.Fatalf("attempt %d: expected 4xx passthrough, got %v", i, err)
		}
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("unexpected status %d", resp.StatusCode)
		}
	}
}

func TestIsCircuitOpen(t *testing.T) {
	if IsCircuitOpen(errors.New("other")) {
		t.Fatal("plain error is not an open circuit")
	}
	if IsCircuitOpen(nil) {
		t.Fatal("nil is not an open circuit")
	}
}
