package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/itsneelabh/actionagent/catalog"
	"github.com/itsneelabh/actionagent/core"
	"github.com/itsneelabh/actionagent/telemetry"
)

// SummaryFallback is returned when the action ran but the summary failed
const SummaryFallback = "Your request was completed, but I could not summarize the result."

// Request outcomes used for metrics
const (
	OutcomeSuccess       = "success"
	OutcomeClarification = "clarification"
	OutcomeNotConnected  = "not_connected"
	OutcomeFailure       = "failure"
)

// Options wires a Runner. Connector and AI are required; everything else
// has a default.
type Options struct {
	Catalog     *catalog.Catalog
	Connector   Connector
	AI          core.AIClient
	SchemaCache core.SchemaCache
	Pipeline    core.PipelineConfig
	AIConfig    core.AIConfig
	PublicURL   string
	Logger      core.Logger
	Metrics     *telemetry.Metrics
}

// Runner executes one instruction end to end:
// connection check, action resolution, schema fetch, parameter extraction,
// execution and summary. Requests are independent; a Runner is safe for
// concurrent use.
type Runner struct {
	catalog     *catalog.Catalog
	connections *Connections
	resolver    *Resolver
	schemas     *SchemaFetcher
	extractor   *ParameterExtractor
	executor    *Executor
	synthesizer *Synthesizer
	timeout     time.Duration
	logger      core.Logger
	metrics     *telemetry.Metrics
}

// NewRunner creates a runner
func NewRunner(opts Options) (*Runner, error) {
	if opts.Connector == nil {
		return nil, fmt.Errorf("runner: connector is required: %w", core.ErrMissingConfiguration)
	}
	if opts.AI == nil {
		return nil, fmt.Errorf("runner: ai client is required: %w", core.ErrMissingConfiguration)
	}

	cat := opts.Catalog
	if cat == nil {
		cat = catalog.Default()
	}

	logger := opts.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("agent")
	}

	timeout := opts.Pipeline.RequestTimeout
	if timeout <= 0 {
		timeout = core.DefaultRequestTimeout
	}

	extractCfg := ExtractorConfig{
		MaxAttempts:  opts.Pipeline.ExtractionAttempts,
		InitialDelay: opts.Pipeline.ExtractionDelay,
		MaxDelay:     opts.Pipeline.ExtractionMaxDelay,
		Temperature:  opts.AIConfig.ExtractionTemperature,
		MaxTokens:    opts.Pipeline.ExtractionMaxTokens,
	}

	return &Runner{
		catalog:     cat,
		connections: NewConnections(opts.Connector, cat, opts.PublicURL, logger),
		resolver:    NewResolver(cat, opts.Connector, logger),
		schemas:     NewSchemaFetcher(opts.Connector, cat, opts.SchemaCache, logger, opts.Metrics),
		extractor:   NewParameterExtractor(opts.AI, cat, extractCfg, logger, opts.Metrics),
		executor:    NewExecutor(opts.Connector, cat, logger),
		synthesizer: NewSynthesizer(opts.AI, opts.AIConfig.SynthesisTemperature, opts.Pipeline.SynthesisMaxTokens, logger),
		timeout:     timeout,
		logger:      logger,
		metrics:     opts.Metrics,
	}, nil
}

// Connections exposes the connection manager used by the runner
func (r *Runner) Connections() *Connections {
	return r.connections
}

// Run executes req. A nil error means the caller gets a normal answer,
// including "not connected" and clarification questions. Errors are meant
// to be passed through UserMessage.
func (r *Runner) Run(ctx context.Context, req Request) (resp *Response, err error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	// A client that goes away only loses the answer; upstream calls keep the
	// request values and run to the pipeline deadline.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, "agent.run",
		attribute.String("agent.app", req.App),
		attribute.String("agent.user_id", req.UserID),
	)
	outcome := OutcomeFailure
	defer func() {
		if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, core.ErrTimeout) {
			err = fmt.Errorf("%w: %w", core.ErrTimeout, err)
		}
		r.metrics.ObserveRequest(strings.ToLower(req.App), outcome)
		if resp != nil {
			span.SetAttributes(attribute.Bool("agent.success", resp.Success))
		}
		telemetry.EndSpan(span, err)
	}()

	fields := map[string]interface{}{
		"operation":   "run_agent",
		"app":         req.App,
		"instruction": core.TruncateForLog(req.Instruction, core.InstructionLogLimit),
	}
	r.logger.InfoWithContext(ctx, "Processing instruction", fields)

	var connected bool
	err = r.stage(ctx, telemetry.StageConnection, req, "", func(ctx context.Context) error {
		var checkErr error
		connected, checkErr = r.connections.IsConnected(ctx, req.UserID, req.App)
		if checkErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			r.logger.WarnWithContext(ctx, "Connection check failed, treating app as not connected", map[string]interface{}{
				"operation": "run_agent",
				"app":       req.App,
				"error":     checkErr.Error(),
			})
			connected = false
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !connected {
		outcome = OutcomeNotConnected
		return &Response{
			Success: false,
			Message: fmt.Sprintf("You have not connected the %s app. Please connect it first.", strings.ToUpper(req.App)),
		}, nil
	}

	var actionID string
	err = r.stage(ctx, telemetry.StageResolve, req, "", func(ctx context.Context) error {
		var resolveErr error
		actionID, resolveErr = r.resolver.Resolve(ctx, req.App, req.Instruction)
		return resolveErr
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("agent.action_id", actionID))

	var schema *ActionSchema
	err = r.stage(ctx, telemetry.StageSchema, req, actionID, func(ctx context.Context) error {
		var fetchErr error
		schema, fetchErr = r.schemas.Fetch(ctx, actionID, req.UserID)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	var extraction *ExtractionResult
	err = r.stage(ctx, telemetry.StageExtract, req, actionID, func(ctx context.Context) error {
		var extractErr error
		extraction, extractErr = r.extractor.Extract(ctx, req.Instruction, schema)
		return extractErr
	})
	if err != nil {
		return nil, err
	}

	if !extraction.Understood {
		outcome = OutcomeClarification
		question := DefaultClarifyingQuestion
		if extraction.ClarifyingQuestion != nil {
			question = *extraction.ClarifyingQuestion
		}
		r.logger.InfoWithContext(ctx, "Asking user for clarification", map[string]interface{}{
			"operation": "run_agent",
			"action_id": actionID,
		})
		return &Response{
			Success:            true,
			NeedsClarification: true,
			Message:            question,
			ActionID:           actionID,
		}, nil
	}

	var result map[string]interface{}
	err = r.stage(ctx, telemetry.StageExecute, req, actionID, func(ctx context.Context) error {
		var execErr error
		result, execErr = r.executor.Execute(ctx, req.UserID, actionID, extraction.Parameters)
		return execErr
	})
	if err != nil {
		return nil, err
	}

	var message string
	synthErr := r.stage(ctx, telemetry.StageSynthesize, req, actionID, func(ctx context.Context) error {
		var e error
		message, e = r.synthesizer.Synthesize(ctx, req.Instruction, actionID, result)
		return e
	})
	if synthErr != nil {
		r.logger.WarnWithContext(ctx, "Response synthesis failed, using fallback message", map[string]interface{}{
			"operation": "run_agent",
			"action_id": actionID,
			"error":     synthErr.Error(),
		})
		message = SummaryFallback
	}

	outcome = OutcomeSuccess
	r.logger.InfoWithContext(ctx, "Instruction completed", map[string]interface{}{
		"operation": "run_agent",
		"app":       req.App,
		"action_id": actionID,
	})
	return &Response{Success: true, Message: message, ActionID: actionID}, nil
}

// stage runs one pipeline step inside its own span and records its duration.
// actionID is empty until the action is resolved.
func (r *Runner) stage(ctx context.Context, name string, req Request, actionID string, fn func(context.Context) error) error {
	ctx, span := telemetry.StartSpan(ctx, "agent."+name, attribute.String("agent.stage", name))
	start := time.Now()

	err := fn(ctx)

	duration := time.Since(start)
	r.metrics.ObserveStage(name, err, duration)
	telemetry.EndSpan(span, err)

	if err != nil {
		r.logger.ErrorWithContext(ctx, "Pipeline stage failed", map[string]interface{}{
			"operation":   "run_agent",
			"stage":       name,
			"app":         req.App,
			"action_id":   actionID,
			"instruction": core.TruncateForLog(req.Instruction, core.InstructionLogLimit),
			"duration_ms": duration.Milliseconds(),
			"error":       err.Error(),
		})
	} else {
		r.logger.DebugWithContext(ctx, "Pipeline stage completed", map[string]interface{}{
			"operation":   "run_agent",
			"stage":       name,
			"action_id":   actionID,
			"duration_ms": duration.Milliseconds(),
		})
	}
	return err
}

func validateRequest(req Request) error {
	switch {
	case strings.TrimSpace(req.Instruction) == "":
		return &InputError{Field: "instruction"}
	case strings.TrimSpace(req.App) == "":
		return &InputError{Field: "app"}
	case strings.TrimSpace(req.UserID) == "":
		return &InputError{Field: "entityId"}
	}
	return nil
}
