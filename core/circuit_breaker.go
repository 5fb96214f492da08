package core

import (
	"context"
)

// CircuitBreaker protects callers of an upstream service from cascading
// failures by failing fast while the upstream is unhealthy.
//
// States:
//  1. Closed: normal operation, calls pass through
//  2. Open: threshold exceeded, calls fail immediately with ErrCircuitBreakerOpen
//  3. Half-Open: after the timeout a limited number of trial calls are let through
type CircuitBreaker interface {
	// Execute runs fn under circuit breaker protection.
	Execute(ctx context.Context, fn func() error) error

	// GetState returns "closed", "open" or "half-open".
	GetState() string

	// GetMetrics returns counters and the current state.
	GetMetrics() map[string]interface{}

	// Reset returns the breaker to the closed state.
	Reset()

	// CanExecute reports whether a call would currently be allowed.
	CanExecute() bool
}

// CircuitBreakerParams provides parameters for circuit breaker implementations.
type CircuitBreakerParams struct {
	// Name identifies the circuit breaker (for logging/metrics)
	Name string

	Config CircuitBreakerConfig

	// Optional: Logger for state transitions
	Logger Logger

	// Optional: observer notified on every state change
	OnStateChange func(name, from, to string)
}

// DefaultCircuitBreakerParams returns sensible defaults for circuit breaker parameters
func DefaultCircuitBreakerParams(name string) CircuitBreakerParams {
	return CircuitBreakerParams{
		Name:   name,
		Config: DefaultConfig().Resilience.CircuitBreaker,
	}
}
