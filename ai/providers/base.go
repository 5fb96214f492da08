package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/itsneelabh/actionagent/core"
	"github.com/itsneelabh/actionagent/resilience"
	"github.com/itsneelabh/actionagent/telemetry"
)

// BaseClient provides common functionality for all AI providers
type BaseClient struct {
	// HTTP client with timeout and trace propagation
	HTTPClient *http.Client

	// Logger for debugging
	Logger core.Logger

	// Metrics counts upstream exchanges (optional)
	Metrics *telemetry.Metrics

	// Retry configuration
	MaxRetries int
	RetryDelay time.Duration

	// Default configuration
	DefaultModel        string
	DefaultTemperature  float32
	DefaultMaxTokens    int
	DefaultSystemPrompt string
}

// NewBaseClient creates a new base client with defaults
func NewBaseClient(timeout time.Duration, logger core.Logger) *BaseClient {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}

	return &BaseClient{
		HTTPClient:         telemetry.NewTracedHTTPClient(timeout),
		Logger:             logger,
		MaxRetries:         2,
		RetryDelay:         time.Second,
		DefaultTemperature: 0.7,
		DefaultMaxTokens:   1000,
	}
}

// StatusError is a non-2xx answer from a provider.
// It unwraps to the core sentinel matching the status class.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Unwrap maps the status to core sentinels: 401/403 invalid key, 429 rate
// limit (retryable), 5xx unavailable (retryable).
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return core.ErrInvalidAPIKey
	case e.StatusCode == http.StatusTooManyRequests:
		return core.ErrRateLimited
	case e.StatusCode >= 500:
		return core.ErrUpstreamUnavailable
	default:
		return nil
	}
}

// ExecuteWithRetry sends req, retrying transport errors, 429 and 5xx with
// exponential backoff. Any other response is returned to the caller as is,
// including 4xx; the caller owns resp.Body.
func (b *BaseClient) ExecuteWithRetry(ctx context.Context, req *http.Request, provider, operation string) (*http.Response, error) {
	var resp *http.Response

	cfg := &resilience.RetryConfig{
		MaxAttempts:   b.MaxRetries + 1,
		InitialDelay:  b.RetryDelay,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
		ShouldRetry:   core.IsRetryable,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			b.Logger.WarnWithContext(ctx, "AI request failed, retrying", map[string]interface{}{
				"operation":      "ai_request_retry_wait",
				"provider":       provider,
				"attempt":        attempt,
				"max_retries":    b.MaxRetries,
				"retry_delay_ms": delay.Milliseconds(),
				"error":          err.Error(),
			})
		},
	}

	err := resilience.Retry(ctx, cfg, func() error {
		attemptReq := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return err
			}
			attemptReq.Body = body
		}

		r, err := b.HTTPClient.Do(attemptReq)
		if err != nil {
			b.Metrics.ObserveUpstream(provider, operation, 0)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%s request failed: %v: %w", provider, err, core.ErrUpstreamUnavailable)
		}
		b.Metrics.ObserveUpstream(provider, operation, r.StatusCode)

		if r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500 {
			body, _ := io.ReadAll(io.LimitReader(r.Body, 4096))
			_ = r.Body.Close()
			return b.HandleError(r.StatusCode, body, provider)
		}

		resp = r
		return nil
	})
	if err != nil {
		b.Logger.ErrorWithContext(ctx, "AI request failed after all retries", map[string]interface{}{
			"operation":      "ai_request_final_failure",
			"provider":       provider,
			"total_attempts": b.MaxRetries + 1,
			"error":          err.Error(),
		})
		return nil, err
	}
	return resp, nil
}

// ApplyDefaults returns a copy of options with defaults filled in
func (b *BaseClient) ApplyDefaults(options *core.AIOptions) *core.AIOptions {
	out := core.AIOptions{}
	if options != nil {
		out = *options
	}

	if out.Model == "" {
		out.Model = b.DefaultModel
	}
	if out.Temperature == 0 {
		out.Temperature = b.DefaultTemperature
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = b.DefaultMaxTokens
	}
	if out.SystemPrompt == "" {
		out.SystemPrompt = b.DefaultSystemPrompt
	}
	return &out
}

// HandleError builds the StatusError for a non-2xx response
func (b *BaseClient) HandleError(statusCode int, body []byte, provider string) error {
	var msg string
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		msg = "invalid or missing API key"
	case http.StatusTooManyRequests:
		msg = "rate limit exceeded"
	case http.StatusBadRequest:
		msg = "invalid request - " + strings.TrimSpace(string(body))
	default:
		if statusCode >= 500 {
			msg = "service temporarily unavailable"
		} else {
			msg = strings.TrimSpace(string(body))
		}
	}
	return &StatusError{Provider: provider, StatusCode: statusCode, Message: msg}
}

// LogRequest logs outgoing API requests
func (b *BaseClient) LogRequest(ctx context.Context, provider string, options *core.AIOptions, prompt string) {
	b.Logger.InfoWithContext(ctx, "AI request initiated", map[string]interface{}{
		"operation":     "ai_request",
		"provider":      provider,
		"model":         options.Model,
		"prompt_length": len(prompt),
		"max_tokens":    options.MaxTokens,
		"temperature":   options.Temperature,
	})
}

// LogResponse logs API responses
func (b *BaseClient) LogResponse(ctx context.Context, provider, model string, tokens core.TokenUsage, duration time.Duration) {
	fields := map[string]interface{}{
		"operation":         "ai_response",
		"provider":          provider,
		"model":             model,
		"prompt_tokens":     tokens.PromptTokens,
		"completion_tokens": tokens.CompletionTokens,
		"total_tokens":      tokens.TotalTokens,
		"duration_ms":       duration.Milliseconds(),
		"status":            "success",
	}
	if duration > 0 {
		fields["tokens_per_second"] = float64(tokens.TotalTokens) / duration.Seconds()
	}
	b.Logger.InfoWithContext(ctx, "AI response received", fields)
}

// IsStatus reports whether err is a StatusError with the given code
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
