// Package ai creates chat-completion clients from configuration.
//
// Providers register themselves from init(); import them for side effects:
//
//	import _ "github.com/itsneelabh/actionagent/ai/providers/openai"
package ai

import (
	"fmt"
	"time"

	"github.com/itsneelabh/actionagent/core"
	"github.com/itsneelabh/actionagent/telemetry"
)

// DefaultSystemPrompt is sent with every completion unless overridden
const DefaultSystemPrompt = "You are an expert software developer agent. Always provide clear, precise responses. " +
	"When asked for JSON, return ONLY valid JSON with no markdown formatting or extra text."

// Config holds configuration for AI client creation
type Config struct {
	Provider string

	// API credentials
	APIKey  string
	BaseURL string

	// Connection settings
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	// Model configuration
	Model        string
	Temperature  float32
	MaxTokens    int
	SystemPrompt string

	Logger  core.Logger
	Metrics *telemetry.Metrics
}

// ConfigFromCore translates the service configuration into a client Config
func ConfigFromCore(cfg core.AIConfig, dev core.DevelopmentConfig, logger core.Logger, metrics *telemetry.Metrics) *Config {
	provider := cfg.Provider
	if dev.MockAI {
		provider = "mock"
	}
	return &Config{
		Provider:     provider,
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		Timeout:      cfg.Timeout,
		MaxRetries:   cfg.MaxRetries,
		RetryDelay:   cfg.RetryDelay,
		Model:        cfg.Model,
		Temperature:  cfg.SynthesisTemperature,
		MaxTokens:    cfg.MaxTokens,
		SystemPrompt: DefaultSystemPrompt,
		Logger:       logger,
		Metrics:      metrics,
	}
}

// NewClient creates an AI client using the registered provider named in config
func NewClient(config *Config) (core.AIClient, error) {
	if config == nil {
		return nil, fmt.Errorf("ai config is required: %w", core.ErrMissingConfiguration)
	}
	if config.Provider == "" {
		config.Provider = "openai"
	}

	if config.Logger != nil {
		if cal, ok := config.Logger.(core.ComponentAwareLogger); ok {
			config.Logger = cal.WithComponent("ai")
		}
	} else {
		config.Logger = &core.NoOpLogger{}
	}

	factory, exists := GetProvider(config.Provider)
	if !exists {
		config.Logger.Error("AI provider not registered", map[string]interface{}{
			"operation":           "ai_provider_lookup",
			"requested_provider":  config.Provider,
			"available_providers": ListProviders(),
		})
		return nil, fmt.Errorf("provider '%s' not registered. Import _ \"github.com/itsneelabh/actionagent/ai/providers/%s\": %w",
			config.Provider, config.Provider, core.ErrInvalidConfiguration)
	}

	client, err := factory.Create(config)
	if err != nil {
		return nil, err
	}

	config.Logger.Info("AI client created successfully", map[string]interface{}{
		"operation":   "ai_client_creation",
		"provider":    config.Provider,
		"model":       config.Model,
		"client_type": fmt.Sprintf("%T", client),
	})
	return client, nil
}
