package openai

import (
	"fmt"

	"github.com/itsneelabh/actionagent/ai"
	"github.com/itsneelabh/actionagent/core"
)

func init() {
	ai.MustRegister(&Factory{})
}

// Factory implements ai.ProviderFactory for OpenAI-compatible services
type Factory struct{}

// Name returns the provider name
func (f *Factory) Name() string { return providerName }

// Description returns provider description
func (f *Factory) Description() string {
	return "OpenAI-compatible chat completions (Fireworks, OpenAI, Together, Groq)"
}

// Create creates a new client from config
func (f *Factory) Create(config *ai.Config) (core.AIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai provider: API key not configured: %w", core.ErrMissingConfiguration)
	}

	client := NewClient(config.APIKey, config.BaseURL, config.Logger)
	if config.Timeout > 0 {
		client.HTTPClient.Timeout = config.Timeout
	}
	if config.MaxRetries > 0 {
		client.MaxRetries = config.MaxRetries
	}
	if config.RetryDelay > 0 {
		client.RetryDelay = config.RetryDelay
	}
	if config.Model != "" {
		client.DefaultModel = config.Model
	}
	if config.Temperature > 0 {
		client.DefaultTemperature = config.Temperature
	}
	if config.MaxTokens > 0 {
		client.DefaultMaxTokens = config.MaxTokens
	}
	if config.SystemPrompt != "" {
		client.DefaultSystemPrompt = config.SystemPrompt
	}
	client.Metrics = config.Metrics
	return client, nil
}
