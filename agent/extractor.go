package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/itsneelabh/actionagent/catalog"
	"github.com/itsneelabh/actionagent/core"
	"github.com/itsneelabh/actionagent/resilience"
	"github.com/itsneelabh/actionagent/telemetry"
)

// DefaultClarifyingQuestion is used when the model declines without asking anything
const DefaultClarifyingQuestion = "I need more information to complete this task."

// ExtractorConfig tunes the parameter extractor
type ExtractorConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Temperature  float32
	MaxTokens    int
}

// DefaultExtractorConfig returns the extraction defaults
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		MaxAttempts:  core.DefaultExtractionAttempts,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     4 * time.Second,
		Temperature:  0.1,
		MaxTokens:    1000,
	}
}

// ParameterExtractor asks the model to fill an action's parameters from an
// instruction, tolerating noisy output and retrying bad answers.
type ParameterExtractor struct {
	ai      core.AIClient
	catalog *catalog.Catalog
	config  ExtractorConfig
	logger  core.Logger
	metrics *telemetry.Metrics
}

// NewParameterExtractor creates an extractor
func NewParameterExtractor(aiClient core.AIClient, cat *catalog.Catalog, config ExtractorConfig, logger core.Logger, metrics *telemetry.Metrics) *ParameterExtractor {
	defaults := DefaultExtractorConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = defaults.InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = defaults.MaxDelay
	}
	if config.Temperature <= 0 {
		config.Temperature = defaults.Temperature
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaults.MaxTokens
	}
	if cat == nil {
		cat = catalog.Default()
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &ParameterExtractor{
		ai:      aiClient,
		catalog: cat,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

// Extract returns the model's reading of instruction against schema.
// A clarifying question is a successful result; parse failures and missing
// required fields are retried, and exhaustion yields core.ErrExtractionFailed
// wrapping the last cause.
func (e *ParameterExtractor) Extract(ctx context.Context, instruction string, schema *ActionSchema) (*ExtractionResult, error) {
	prompt := BuildExtractionPrompt(instruction, schema, e.catalog.Hint(schema.ActionID))
	opts := &core.AIOptions{
		Temperature: e.config.Temperature,
		MaxTokens:   e.config.MaxTokens,
	}

	var (
		result   *ExtractionResult
		attempts int
	)

	retryCfg := &resilience.RetryConfig{
		MaxAttempts:   e.config.MaxAttempts,
		InitialDelay:  e.config.InitialDelay,
		MaxDelay:      e.config.MaxDelay,
		BackoffFactor: 2.0,
		ShouldRetry:   retryableExtraction,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			e.logger.WarnWithContext(ctx, "Parameter extraction attempt failed, retrying", map[string]interface{}{
				"operation":      "extract_parameters",
				"action_id":      schema.ActionID,
				"attempt":        attempt,
				"max_attempts":   e.config.MaxAttempts,
				"retry_delay_ms": delay.Milliseconds(),
				"error":          err.Error(),
			})
		},
	}

	err := resilience.Retry(ctx, retryCfg, func() error {
		attempts++
		resp, err := e.ai.GenerateResponse(ctx, prompt, opts)
		if err != nil {
			return err
		}
		r, err := ParseExtraction(resp.Content, schema)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	e.metrics.ObserveExtractionAttempts(attempts)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w after %d attempt(s): %w", core.ErrExtractionFailed, attempts, err)
	}

	e.logger.DebugWithContext(ctx, "Parameters extracted", map[string]interface{}{
		"operation":   "extract_parameters",
		"action_id":   schema.ActionID,
		"understood":  result.Understood,
		"attempts":    attempts,
		"param_count": len(result.Parameters),
	})
	return result, nil
}

// retryableExtraction retries bad model answers and transient upstream
// failures. Configuration and auth problems fail at once.
func retryableExtraction(err error) bool {
	return errors.Is(err, core.ErrMalformedOutput) ||
		errors.Is(err, core.ErrMissingRequiredParameters) ||
		core.IsRetryable(err)
}

// extractionReply accepts both key spellings the model is prompted with
type extractionReply struct {
	Understood         *bool                  `mapstructure:"understood"`
	Understand         *bool                  `mapstructure:"understand"`
	ClarifyingQuestion *string                `mapstructure:"clarifyingQuestion"`
	AskUser            *string                `mapstructure:"askUser"`
	Parameters         map[string]interface{} `mapstructure:"parameters"`
	Params             map[string]interface{} `mapstructure:"params"`
}

// ParseExtraction turns raw model output into a validated ExtractionResult.
// A missing understood flag counts as true. Parameters are remapped through
// the schema's synonyms and checked for required fields.
func ParseExtraction(raw string, schema *ActionSchema) (*ExtractionResult, error) {
	obj, err := ExtractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	var reply extractionReply
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &reply,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(obj); err != nil {
		return nil, fmt.Errorf("%w: unexpected reply shape: %v", core.ErrMalformedOutput, err)
	}

	understood := true
	switch {
	case reply.Understood != nil:
		understood = *reply.Understood
	case reply.Understand != nil:
		understood = *reply.Understand
	}

	if !understood {
		question := DefaultClarifyingQuestion
		for _, q := range []*string{reply.ClarifyingQuestion, reply.AskUser} {
			if q != nil && strings.TrimSpace(*q) != "" {
				question = strings.TrimSpace(*q)
				break
			}
		}
		return &ExtractionResult{Understood: false, ClarifyingQuestion: &question}, nil
	}

	params := reply.Parameters
	if params == nil {
		params = reply.Params
	}
	if params == nil {
		return nil, fmt.Errorf("%w: no parameters provided by the model", core.ErrMalformedOutput)
	}

	params = RemapParameters(schema.SynonymMap, params)
	if err := ValidateRequired(schema.RequiredFields, params); err != nil {
		return nil, err
	}
	return &ExtractionResult{Understood: true, Parameters: params}, nil
}

// BuildExtractionPrompt renders the extraction prompt. Only the schema's
// exact parameter names are offered to the model.
func BuildExtractionPrompt(instruction string, schema *ActionSchema, hint string) string {
	var b strings.Builder

	b.WriteString("You are a parameter extraction expert. Extract parameters from the user's message.\n\n")
	if hint != "" {
		b.WriteString(hint)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "USER'S MESSAGE: %q\n\n", instruction)
	fmt.Fprintf(&b, "ACTION: %s\n", schema.ActionID)
	fmt.Fprintf(&b, "DESCRIPTION: %s\n", schema.Description)
	fmt.Fprintf(&b, "REQUIRED PARAMETERS: %s\n", mustJSON(nonNil(schema.RequiredFields)))
	fmt.Fprintf(&b, "OPTIONAL PARAMETERS: %s\n", mustJSON(nonNil(schema.OptionalFields)))
	fmt.Fprintf(&b, "ALL PARAMETERS: %s\n", mustJSON(nonNil(schema.ParameterNames)))
	if len(schema.Properties) > 0 {
		if shape, err := json.MarshalIndent(schema.Properties, "", "  "); err == nil {
			fmt.Fprintf(&b, "SCHEMA: %s\n", shape)
		}
	}

	b.WriteString(`
INSTRUCTIONS:
1. Use EXACT parameter names from "ALL PARAMETERS" above. Never invent names.
2. Extract information intelligently from the user's natural language.
3. For emails: extract the recipient address, infer a subject if not explicit, write a friendly body.
4. For GitHub: parse the "owner/repo" format.
5. If REQUIRED information is missing, set understood=false and ask for it in clarifyingQuestion.

OUTPUT FORMAT (VALID JSON ONLY, NO MARKDOWN):
{
    "understood": true,
    "clarifyingQuestion": null,
    "parameters": {
        "param_name": "extracted_value"
    }
}

RESPONSE:`)

	return b.String()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
