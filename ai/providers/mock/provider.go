// Package mock provides a scripted AI provider for tests and offline runs
package mock

import (
	"context"
	"sync"

	"github.com/itsneelabh/actionagent/ai"
	"github.com/itsneelabh/actionagent/core"
)

const providerName = "mock"

func init() {
	ai.MustRegister(&Factory{})
}

// Factory creates mock AI clients
type Factory struct{}

// Name returns the provider name
func (f *Factory) Name() string { return providerName }

// Description returns provider description
func (f *Factory) Description() string { return "Mock provider for testing" }

// Create creates a new mock client
func (f *Factory) Create(config *ai.Config) (core.AIClient, error) {
	return NewClient(config), nil
}

// Client replays scripted responses in order. When the script runs out the
// last entry is repeated; an empty script answers with an empty JSON object.
type Client struct {
	mu          sync.Mutex
	model       string
	responses   []string
	index       int
	err         error
	callCount   int
	prompts     []string
	lastOptions *core.AIOptions
}

// NewClient creates a mock client. config may be nil.
func NewClient(config *ai.Config, responses ...string) *Client {
	c := &Client{model: "mock-model", responses: responses}
	if config != nil && config.Model != "" {
		c.model = config.Model
	}
	return c
}

// GenerateResponse returns the next scripted response
func (c *Client) GenerateResponse(ctx context.Context, prompt string, options *core.AIOptions) (*core.AIResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.callCount++
	c.prompts = append(c.prompts, prompt)
	if options != nil {
		opts := *options
		c.lastOptions = &opts
	} else {
		c.lastOptions = nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}

	content := "{}"
	if n := len(c.responses); n > 0 {
		i := c.index
		if i >= n {
			i = n - 1
		}
		content = c.responses[i]
		c.index++
	}

	model := c.model
	if options != nil && options.Model != "" {
		model = options.Model
	}

	return &core.AIResponse{
		Content:      content,
		Model:        model,
		Provider:     providerName,
		FinishReason: "stop",
		Usage: core.TokenUsage{
			PromptTokens:     len(prompt) / 4,
			CompletionTokens: len(content) / 4,
			TotalTokens:      (len(prompt) + len(content)) / 4,
		},
	}, nil
}

// SetResponses replaces the script and rewinds it
func (c *Client) SetResponses(responses ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = responses
	c.index = 0
}

// SetError makes every following call fail with err; nil clears it
func (c *Client) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// CallCount returns the number of GenerateResponse calls
func (c *Client) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callCount
}

// LastPrompt returns the most recent prompt
func (c *Client) LastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.prompts) == 0 {
		return ""
	}
	return c.prompts[len(c.prompts)-1]
}

// LastOptions returns a copy of the most recent options
func (c *Client) LastOptions() *core.AIOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastOptions
}

// Prompts returns every prompt received so far
func (c *Client) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.prompts))
	copy(out, c.prompts)
	return out
}
