package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itsneelabh/actionagent/core"
)

// maxResultChars bounds how much of the action result goes into the prompt
const maxResultChars = 4000

// Synthesizer turns a raw action result into a short message for the user
type Synthesizer struct {
	ai          core.AIClient
	temperature float32
	maxTokens   int
	logger      core.Logger
}

// NewSynthesizer creates a synthesizer. Zero values pick 0.7 and 300 tokens.
func NewSynthesizer(aiClient core.AIClient, temperature float32, maxTokens int, logger core.Logger) *Synthesizer {
	if temperature <= 0 {
		temperature = 0.7
	}
	if maxTokens <= 0 {
		maxTokens = 300
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Synthesizer{ai: aiClient, temperature: temperature, maxTokens: maxTokens, logger: logger}
}

// Synthesize summarises result in two or three friendly sentences
func (s *Synthesizer) Synthesize(ctx context.Context, instruction, actionID string, result map[string]interface{}) (string, error) {
	resp, err := s.ai.GenerateResponse(ctx, BuildSynthesisPrompt(instruction, actionID, result), &core.AIOptions{
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		return "", err
	}

	message := strings.TrimSpace(resp.Content)
	if message == "" {
		return "", fmt.Errorf("%w: empty summary", core.ErrMalformedOutput)
	}
	return message, nil
}

// BuildSynthesisPrompt renders the summary prompt
func BuildSynthesisPrompt(instruction, actionID string, result map[string]interface{}) string {
	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", result))
	}
	resultText := string(raw)
	if len(resultText) > maxResultChars {
		resultText = resultText[:maxResultChars] + "\n... (truncated)"
	}

	return fmt.Sprintf(`The user asked: %q

Action performed: %s

Result:
%s

Write a natural, friendly response for the user that:
1. Confirms what was done
2. Mentions the key information from the result
3. Does not include technical details or ids unless they are relevant to the user
4. Stays short: 2-3 sentences

Response:`, instruction, actionID, resultText)
}
