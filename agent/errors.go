package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/itsneelabh/actionagent/core"
)

// InputError names a request field that is missing or empty
type InputError struct {
	Field string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("Missing or invalid '%s' parameter.", e.Field)
}

func (e *InputError) Unwrap() error { return core.ErrInvalidInput }

// MissingParametersError lists required fields absent after remapping.
// Fields are sorted.
type MissingParametersError struct {
	Fields []string
}

func (e *MissingParametersError) Error() string {
	return "Missing required parameters: " + strings.Join(e.Fields, ", ")
}

func (e *MissingParametersError) Unwrap() error { return core.ErrMissingRequiredParameters }

// ExecutionError is a classified failure of an action execution
type ExecutionError struct {
	// Kind is one of core.ErrRecipientInvalid, core.ErrAuthenticationRequired
	// or core.ErrExecutionFailed
	Kind     error
	ActionID string
	App      string
	Err      error
}

func (e *ExecutionError) Error() string {
	switch e.Kind {
	case core.ErrRecipientInvalid:
		return fmt.Sprintf("Email recipient error: Please ensure you've provided a valid email address. %v", e.Err)
	case core.ErrAuthenticationRequired:
		return fmt.Sprintf("Authentication error: Please reconnect your %s account.", e.App)
	default:
		return fmt.Sprintf("Failed to execute %s: %v", e.ActionID, e.Err)
	}
}

func (e *ExecutionError) Unwrap() []error { return []error{e.Kind, e.Err} }

// ClassifyExecutionError turns a failed execution into the error users see.
// The upstream gives no typed errors, so classification matches on text:
// missing-parameter errors pass through, "recipient" is a bad address, and
// "authentication" or "unauthorized" means the app must be reconnected.
func ClassifyExecutionError(actionID string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrMissingRequiredParameters) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	app := actionID
	if i := strings.Index(actionID, "_"); i > 0 {
		app = actionID[:i]
	}

	text := strings.ToLower(err.Error())
	kind := core.ErrExecutionFailed
	switch {
	case strings.Contains(text, "recipient"):
		kind = core.ErrRecipientInvalid
	case strings.Contains(text, "authentication") || strings.Contains(text, "unauthorized"):
		kind = core.ErrAuthenticationRequired
	}

	return &ExecutionError{Kind: kind, ActionID: actionID, App: app, Err: err}
}

const messagePrefix = "Something went wrong. "

// UserMessage reduces a pipeline error to one sentence for the caller.
// The most specific match wins; missing-parameter errors are already
// actionable and are passed through verbatim.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		inputErr   *InputError
		missingErr *MissingParametersError
		execErr    *ExecutionError
	)

	switch {
	case errors.As(err, &inputErr):
		return inputErr.Error()
	case errors.Is(err, core.ErrInvalidAPIKey) || strings.Contains(err.Error(), "API key"):
		return messagePrefix + "Invalid API key configuration."
	case errors.As(err, &missingErr):
		return messagePrefix + missingErr.Error()
	case errors.Is(err, core.ErrMalformedOutput):
		return messagePrefix + "Failed to process the request. Please try rephrasing."
	case errors.Is(err, core.ErrActionNotFound):
		return messagePrefix + "I couldn't determine which action to perform. Please be more specific."
	case errors.As(err, &execErr):
		switch execErr.Kind {
		case core.ErrAuthenticationRequired:
			return messagePrefix + "Authentication error. Please reconnect your " + execErr.App + " account."
		case core.ErrRecipientInvalid:
			return messagePrefix + "Email recipient error. Please ensure you've provided a valid email address."
		}
		return messagePrefix + execErr.Error()
	case errors.Is(err, core.ErrTimeout) || errors.Is(err, context.DeadlineExceeded):
		return messagePrefix + "The request took too long. Please try again."
	case errors.Is(err, core.ErrCircuitBreakerOpen) ||
		errors.Is(err, core.ErrUpstreamUnavailable) ||
		errors.Is(err, core.ErrRateLimited):
		return messagePrefix + "A required service is temporarily unavailable. Please try again later."
	case errors.Is(err, core.ErrSchemaUnavailable):
		return messagePrefix + "I couldn't load the details for that action. Please try again."
	case errors.Is(err, core.ErrExtractionFailed):
		return messagePrefix + "Failed to process the request. Please try rephrasing."
	default:
		return messagePrefix + "Please try again."
	}
}
