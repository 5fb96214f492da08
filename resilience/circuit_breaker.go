// Package resilience provides retry with backoff and a circuit breaker for
// calls to upstream services.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/itsneelabh/actionagent/core"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// StateClosed allows all requests through
	StateClosed CircuitState = iota
	// StateOpen blocks all requests
	StateOpen
	// StateHalfOpen allows limited requests for testing
	StateHalfOpen
)

// String returns the string representation of the state
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrorClassifier determines which errors count toward the failure threshold
type ErrorClassifier func(error) bool

// DefaultErrorClassifier only counts infrastructure errors. Requests the
// user got wrong, a missing connection or a client that gave up never
// trip the breaker.
func DefaultErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	if core.IsUserError(err) || core.IsConfigurationError(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return core.IsRetryable(err) || errors.Is(err, context.DeadlineExceeded)
}

// CircuitBreaker is a consecutive-failure circuit breaker.
// After Threshold counted failures in a row it opens for Timeout, then lets
// HalfOpenRequests trial calls through. A trial success closes it, a trial
// failure reopens it.
type CircuitBreaker struct {
	name       string
	config     core.CircuitBreakerConfig
	logger     core.Logger
	classifier ErrorClassifier
	onChange   func(name, from, to string)
	now        func() time.Time

	mu               sync.Mutex
	state            CircuitState
	failures         int
	openedAt         time.Time
	halfOpenInFlight int

	totalExecutions    int64
	totalFailures      int64
	rejectedExecutions int64
}

// NewCircuitBreaker creates a circuit breaker from params.
// Returns an error if the configuration cannot work.
func NewCircuitBreaker(params core.CircuitBreakerParams) (*CircuitBreaker, error) {
	cfg := params.Config
	if cfg.Threshold <= 0 {
		return nil, fmt.Errorf("circuit breaker %q: threshold must be positive: %w", params.Name, core.ErrInvalidConfiguration)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("circuit breaker %q: timeout must be positive: %w", params.Name, core.ErrInvalidConfiguration)
	}
	if cfg.HalfOpenRequests <= 0 {
		cfg.HalfOpenRequests = 1
	}

	logger := params.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}

	return &CircuitBreaker{
		name:       params.Name,
		config:     cfg,
		logger:     logger,
		classifier: DefaultErrorClassifier,
		onChange:   params.OnStateChange,
		now:        time.Now,
		state:      StateClosed,
	}, nil
}

// SetErrorClassifier replaces the failure classifier
func (cb *CircuitBreaker) SetErrorClassifier(c ErrorClassifier) {
	cb.mu.Lock()
	cb.classifier = c
	cb.mu.Unlock()
}

// Execute runs fn with circuit breaker protection.
// A panic inside fn is recovered, counted as a failure and returned as an error.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) (err error) {
	if !cb.config.Enabled {
		return fn()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	halfOpen, ok := cb.admit()
	if !ok {
		return fmt.Errorf("%s: %w", cb.name, core.ErrCircuitBreakerOpen)
	}

	defer func() {
		if r := recover(); r != nil {
			cb.logger.Error("Recovered panic in circuit breaker call", map[string]interface{}{
				"operation": "circuit_breaker_execute",
				"name":      cb.name,
				"panic":     fmt.Sprintf("%v", r),
				"stack":     string(debug.Stack()),
			})
			err = fmt.Errorf("panic in %s: %v: %w", cb.name, r, core.ErrUpstreamUnavailable)
		}
		cb.record(halfOpen, err)
	}()

	return fn()
}

// admit decides whether a call may proceed and reserves a half-open slot
func (cb *CircuitBreaker) admit() (halfOpen bool, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalExecutions++

	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.config.Timeout {
		cb.transitionLocked(StateHalfOpen)
	}

	switch cb.state {
	case StateOpen:
		cb.rejectedExecutions++
		return false, false
	case StateHalfOpen:
		if cb.halfOpenInFlight >= cb.config.HalfOpenRequests {
			cb.rejectedExecutions++
			return false, false
		}
		cb.halfOpenInFlight++
		return true, true
	default:
		return false, true
	}
}

func (cb *CircuitBreaker) record(halfOpen bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if halfOpen && cb.halfOpenInFlight > 0 {
		cb.halfOpenInFlight--
	}

	if !cb.classifier(err) {
		// Success, or an error that says nothing about upstream health
		if err == nil || halfOpen {
			cb.failures = 0
			if cb.state == StateHalfOpen {
				cb.transitionLocked(StateClosed)
			}
		}
		return
	}

	cb.totalFailures++
	cb.failures++

	if cb.state == StateHalfOpen || cb.failures >= cb.config.Threshold {
		cb.transitionLocked(StateOpen)
	}
}

// transitionLocked changes state (must be called with lock held)
func (cb *CircuitBreaker) transitionLocked(next CircuitState) {
	prev := cb.state
	if prev == next {
		return
	}
	cb.state = next
	switch next {
	case StateOpen:
		cb.openedAt = cb.now()
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.halfOpenInFlight = 0
	}

	cb.logger.Info("Circuit breaker state changed", map[string]interface{}{
		"operation": "circuit_breaker_transition",
		"name":      cb.name,
		"from":      prev.String(),
		"to":        next.String(),
		"failures":  cb.failures,
	})

	if cb.onChange != nil {
		cb.onChange(cb.name, prev.String(), next.String())
	}
}

// GetState returns the current state
func (cb *CircuitBreaker) GetState() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.config.Timeout {
		return StateHalfOpen.String()
	}
	return cb.state.String()
}

// CanExecute reports whether a call would currently be admitted
func (cb *CircuitBreaker) CanExecute() bool {
	if !cb.config.Enabled {
		return true
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateOpen:
		return cb.now().Sub(cb.openedAt) >= cb.config.Timeout
	case StateHalfOpen:
		return cb.halfOpenInFlight < cb.config.HalfOpenRequests
	default:
		return true
	}
}

// GetMetrics returns current metrics
func (cb *CircuitBreaker) GetMetrics() map[string]interface{} {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return map[string]interface{}{
		"name":                 cb.name,
		"state":                cb.state.String(),
		"consecutive_failures": cb.failures,
		"total_executions":     cb.totalExecutions,
		"total_failures":       cb.totalFailures,
		"rejected_executions":  cb.rejectedExecutions,
	}
}

// Reset returns the breaker to the closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionLocked(StateClosed)
	cb.failures = 0
	cb.halfOpenInFlight = 0
}

func isCircuitOpen(err error) bool {
	return errors.Is(err, core.ErrCircuitBreakerOpen)
}

var _ core.CircuitBreaker = (*CircuitBreaker)(nil)
