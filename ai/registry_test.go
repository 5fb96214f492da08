package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/actionagent/core"
)

type stubClient struct{ cfg *Config }

func (s *stubClient) GenerateResponse(ctx context.Context, prompt string, options *core.AIOptions) (*core.AIResponse, error) {
	return &core.AIResponse{Content: prompt, Provider: "stub"}, nil
}

type stubFactory struct {
	name string
	err  error
}

func (f *stubFactory) Name() string        { return f.name }
func (f *stubFactory) Description() string { return "stub provider" }
func (f *stubFactory) Create(config *Config) (core.AIClient, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &stubClient{cfg: config}, nil
}

// withCleanRegistry isolates registry mutations to one test
func withCleanRegistry(t *testing.T) {
	t.Helper()
	registry.mu.Lock()
	saved := registry.providers
	registry.providers = make(map[string]ProviderFactory)
	registry.mu.Unlock()

	t.Cleanup(func() {
		registry.mu.Lock()
		registry.providers = saved
		registry.mu.Unlock()
	})
}

func TestRegister(t *testing.T) {
	withCleanRegistry(t)

	require.NoError(t, Register(&stubFactory{name: "b"}))
	require.NoError(t, Register(&stubFactory{name: "a"}))

	assert.Error(t, Register(nil))
	assert.Error(t, Register(&stubFactory{name: ""}))
	assert.Error(t, Register(&stubFactory{name: "a"}), "duplicate names are rejected")

	assert.Equal(t, []string{"a", "b"}, ListProviders())

	f, ok := GetProvider("a")
	assert.True(t, ok)
	assert.Equal(t, "a", f.Name())

	_, ok = GetProvider(" A ")
	assert.True(t, ok, "lookups ignore case and surrounding space")

	_, ok = GetProvider("missing")
	assert.False(t, ok)

	assert.ErrorIs(t, Register(&stubFactory{name: "B"}), core.ErrInvalidConfiguration)
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	withCleanRegistry(t)

	MustRegister(&stubFactory{name: "dup"})
	assert.Panics(t, func() { MustRegister(&stubFactory{name: "dup"}) })
}

func TestNewClient(t *testing.T) {
	withCleanRegistry(t)
	MustRegister(&stubFactory{name: "openai"})
	MustRegister(&stubFactory{name: "broken", err: errors.New("no key")})

	t.Run("nil config", func(t *testing.T) {
		_, err := NewClient(nil)
		assert.ErrorIs(t, err, core.ErrMissingConfiguration)
	})

	t.Run("defaults to openai", func(t *testing.T) {
		cfg := &Config{}
		client, err := NewClient(cfg)
		require.NoError(t, err)
		assert.Equal(t, "openai", cfg.Provider)
		assert.NotNil(t, client.(*stubClient).cfg.Logger)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewClient(&Config{Provider: "nope"})
		assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
	})

	t.Run("factory error", func(t *testing.T) {
		_, err := NewClient(&Config{Provider: "broken"})
		assert.EqualError(t, err, "no key")
	})
}

func TestConfigFromCore(t *testing.T) {
	aiCfg := core.AIConfig{
		Provider:             "openai",
		APIKey:               "k",
		Model:                "m",
		MaxTokens:            300,
		SynthesisTemperature: 0.7,
	}

	cfg := ConfigFromCore(aiCfg, core.DevelopmentConfig{}, nil, nil)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "k", cfg.APIKey)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-6)
	assert.Equal(t, DefaultSystemPrompt, cfg.SystemPrompt)

	cfg = ConfigFromCore(aiCfg, core.DevelopmentConfig{MockAI: true}, nil, nil)
	assert.Equal(t, "mock", cfg.Provider)
}
