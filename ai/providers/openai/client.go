// Package openai implements core.AIClient for any OpenAI-compatible
// chat-completion endpoint (Fireworks by default).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/itsneelabh/actionagent/ai"
	"github.com/itsneelabh/actionagent/ai/providers"
	"github.com/itsneelabh/actionagent/core"
	"github.com/itsneelabh/actionagent/telemetry"
)

const providerName = "openai"

// Client implements core.AIClient for OpenAI-compatible APIs
type Client struct {
	*providers.BaseClient
	apiKey  string
	baseURL string
}

// NewClient creates a new client. An empty baseURL targets Fireworks.
func NewClient(apiKey, baseURL string, logger core.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	base := providers.NewBaseClient(60*time.Second, logger)
	base.DefaultModel = DefaultModel
	base.DefaultSystemPrompt = ai.DefaultSystemPrompt

	return &Client{
		BaseClient: base,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// GenerateResponse sends a single-turn chat completion
func (c *Client) GenerateResponse(ctx context.Context, prompt string, options *core.AIOptions) (resp *core.AIResponse, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ai.generate_response",
		attribute.String("ai.provider", providerName),
		attribute.Int("ai.prompt_length", len(prompt)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if c.apiKey == "" {
		c.Logger.ErrorWithContext(ctx, "AI request failed - API key not configured", map[string]interface{}{
			"operation": "ai_request_error",
			"provider":  providerName,
			"error":     "api_key_missing",
		})
		return nil, fmt.Errorf("AI API key not configured: %w", core.ErrInvalidAPIKey)
	}

	options = c.ApplyDefaults(options)
	span.SetAttributes(attribute.String("ai.model", options.Model))

	c.LogRequest(ctx, providerName, options, prompt)
	startTime := time.Now()

	messages := make([]Message, 0, 2)
	if options.SystemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: options.SystemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: prompt})

	jsonData, err := json.Marshal(ChatRequest{
		Model:       options.Model,
		Messages:    messages,
		Temperature: options.Temperature,
		MaxTokens:   options.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.ExecuteWithRetry(ctx, req, "ai", "chat_completion")
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w: %w", err, core.ErrUpstreamUnavailable)
	}

	if httpResp.StatusCode != http.StatusOK {
		span.SetAttributes(attribute.Int("http.status_code", httpResp.StatusCode))
		c.Logger.ErrorWithContext(ctx, "AI request failed - API error", map[string]interface{}{
			"operation":   "ai_request_error",
			"provider":    providerName,
			"status_code": httpResp.StatusCode,
			"phase":       "api_response",
		})
		return nil, c.HandleError(httpResp.StatusCode, errorMessage(body), providerName)
	}

	var parsed ChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.Logger.ErrorWithContext(ctx, "AI request failed - parse response error", map[string]interface{}{
			"operation": "ai_request_error",
			"provider":  providerName,
			"error":     err.Error(),
			"phase":     "response_parse",
		})
		return nil, fmt.Errorf("failed to parse response: %v: %w", err, core.ErrUpstreamUnavailable)
	}

	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("no response from %s: %w", providerName, core.ErrUpstreamUnavailable)
	}

	choice := parsed.Choices[0]
	if choice.FinishReason != "" && choice.FinishReason != FinishReasonStop && choice.FinishReason != FinishReasonLength {
		c.Logger.WarnWithContext(ctx, "AI response finished unexpectedly", map[string]interface{}{
			"operation":     "ai_response_finish",
			"provider":      providerName,
			"model":         parsed.Model,
			"finish_reason": choice.FinishReason,
		})
	}

	result := &core.AIResponse{
		Content:      choice.Message.Content,
		Model:        parsed.Model,
		Provider:     providerName,
		FinishReason: choice.FinishReason,
		Usage: core.TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}
	if result.Model == "" {
		result.Model = options.Model
	}

	span.SetAttributes(
		attribute.Int("ai.prompt_tokens", result.Usage.PromptTokens),
		attribute.Int("ai.completion_tokens", result.Usage.CompletionTokens),
		attribute.Int("ai.response_length", len(result.Content)),
		attribute.String("ai.finish_reason", result.FinishReason),
	)

	c.LogResponse(ctx, providerName, result.Model, result.Usage, time.Since(startTime))
	return result, nil
}

// errorMessage prefers the structured error message when the body has one
func errorMessage(body []byte) []byte {
	var er ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error.Message != "" {
		return []byte(er.Error.Message)
	}
	return body
}

// Ping checks the key and endpoint by listing models
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s unreachable: %v: %w", providerName, err, core.ErrUpstreamUnavailable)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return c.HandleError(resp.StatusCode, errorMessage(body), providerName)
	}
	return nil
}
