package resilience

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/itsneelabh/actionagent/core"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool

	// ShouldRetry decides whether an error is worth another attempt.
	// nil retries every error.
	ShouldRetry func(error) bool

	// OnRetry is called before sleeping ahead of the next attempt
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryConfig provides sensible defaults
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// Retry executes fn until it succeeds, the attempts are exhausted, the error
// is not retryable, or ctx is done.
//
// A non-retryable error is returned as is. Exhausting the attempts wraps the
// last error together with core.ErrMaxRetriesExceeded, so errors.Is matches both.
func Retry(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	maxAttempts := config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if config.ShouldRetry != nil && !config.ShouldRetry(err) {
			return err
		}

		// Don't sleep after the last attempt
		if attempt == maxAttempts {
			break
		}

		if attempt > 1 {
			delay = time.Duration(float64(delay) * config.BackoffFactor)
			if config.MaxDelay > 0 && delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}

		sleep := delay
		if config.JitterEnabled {
			sleep += time.Duration(float64(delay) * 0.1 * math.Sin(float64(attempt)))
		}

		if config.OnRetry != nil {
			config.OnRetry(attempt, err, sleep)
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		case <-timer.C:
		}
	}

	return &retryError{attempts: maxAttempts, last: lastErr}
}

// retryError reports exhaustion while keeping the last error inspectable
type retryError struct {
	attempts int
	last     error
}

func (e *retryError) Error() string {
	return fmt.Sprintf("max retry attempts (%d) exceeded: %v", e.attempts, e.last)
}

func (e *retryError) Unwrap() []error {
	return []error{core.ErrMaxRetriesExceeded, e.last}
}

// RetryWithCircuitBreaker combines retry logic with a circuit breaker.
// An open breaker stops the retry loop immediately.
func RetryWithCircuitBreaker(ctx context.Context, config *RetryConfig, cb core.CircuitBreaker, fn func() error) error {
	cfg := DefaultRetryConfig()
	if config != nil {
		c := *config
		cfg = &c
	}
	inner := cfg.ShouldRetry
	cfg.ShouldRetry = func(err error) bool {
		if isCircuitOpen(err) {
			return false
		}
		return inner == nil || inner(err)
	}
	return Retry(ctx, cfg, func() error {
		return cb.Execute(ctx, fn)
	})
}
