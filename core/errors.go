package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is()
// These are generic errors that can be wrapped with additional context
var (
	// Request errors
	ErrInvalidInput = errors.New("invalid input")
	ErrNotConnected = errors.New("application not connected")

	// Pipeline errors
	ErrActionNotFound            = errors.New("could not find appropriate action")
	ErrSchemaUnavailable         = errors.New("action schema unavailable")
	ErrMalformedOutput           = errors.New("malformed model output")
	ErrNoJSONFound               = errors.New("no JSON found in model output")
	ErrExtractionFailed          = errors.New("parameter extraction failed")
	ErrMissingRequiredParameters = errors.New("missing required parameters")

	// Execution errors
	ErrExecutionFailed        = errors.New("action execution failed")
	ErrRecipientInvalid       = errors.New("email recipient error")
	ErrAuthenticationRequired = errors.New("authentication error")

	// Upstream errors
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	ErrUpstreamRejected    = errors.New("upstream service rejected the request")
	ErrCircuitBreakerOpen  = errors.New("circuit breaker is open")
	ErrInvalidAPIKey       = errors.New("invalid or missing API key")
	ErrRateLimited         = errors.New("rate limit exceeded")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// Operation errors
	ErrTimeout            = errors.New("operation timeout")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

// ServiceError provides structured error information with context
// It implements the error interface and supports error wrapping
type ServiceError struct {
	Op      string // Operation that failed (e.g., "agent.Resolve")
	Kind    string // Error kind (e.g., "resolver", "connector", "config")
	ID      string // Optional ID of the entity involved (action id, app name)
	Message string // Human-readable message
	Err     error  // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *ServiceError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError
func NewServiceError(op, kind string, err error) *ServiceError {
	return &ServiceError{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// IsRetryable checks if an error is retryable
// Retryable errors are transient upstream or availability issues
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout)
}

// IsUpstreamError reports whether the error originated in one of the upstream services
func IsUpstreamError(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrUpstreamRejected) ||
		errors.Is(err, ErrCircuitBreakerOpen)
}

// IsConfigurationError checks if an error is configuration-related
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration)
}

// IsUserError reports errors caused by the request rather than by the system.
// These never count against a circuit breaker.
func IsUserError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotConnected) ||
		errors.Is(err, ErrMissingRequiredParameters) ||
		errors.Is(err, ErrRecipientInvalid) ||
		errors.Is(err, ErrAuthenticationRequired)
}
