// Package telemetry wires OpenTelemetry tracing and Prometheus metrics into
// the action agent.
//
// Tracing is opt-in: with no endpoint and no stdout exporter configured the
// global no-op tracer stays in place and every span helper is free.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/itsneelabh/actionagent/core"
)

// InstrumentationName identifies spans created by this module
const InstrumentationName = "github.com/itsneelabh/actionagent"

// Provider owns the tracer provider installed by Setup.
type Provider struct {
	tp       *sdktrace.TracerProvider
	exporter string
}

// Setup installs the global tracer provider and propagators described by cfg.
//
// Exporter selection:
//   - Endpoint set: OTLP over gRPC
//   - Stdout set: pretty-printed spans on stdoutWriter (os.Stdout when nil)
//   - otherwise: tracing disabled, a no-op Provider is returned
func Setup(ctx context.Context, cfg core.TelemetryConfig, serviceName, version string, stdoutWriter io.Writer, logger core.Logger) (*Provider, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if !cfg.Enabled || (cfg.Endpoint == "" && !cfg.Stdout) {
		logger.Debug("Tracing disabled", map[string]interface{}{
			"operation": "telemetry_setup",
		})
		return &Provider{exporter: "none"}, nil
	}

	if cfg.ServiceName != "" {
		serviceName = cfg.ServiceName
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var (
		exporter sdktrace.SpanExporter
		kind     string
	)
	if cfg.Endpoint != "" {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
		kind = "otlp-grpc"
	} else {
		if stdoutWriter == nil {
			stdoutWriter = os.Stdout
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(stdoutWriter), stdouttrace.WithPrettyPrint())
		kind = "stdout"
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s exporter: %w", kind, err)
	}

	rate := cfg.SamplingRate
	if rate <= 0 || rate > 1 {
		rate = 1
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("Tracing enabled", map[string]interface{}{
		"operation":     "telemetry_setup",
		"exporter":      kind,
		"endpoint":      cfg.Endpoint,
		"service":       serviceName,
		"sampling_rate": rate,
	})

	return &Provider{tp: tp, exporter: kind}, nil
}

// Exporter returns "otlp-grpc", "stdout" or "none".
func (p *Provider) Exporter() string {
	return p.exporter
}

// Shutdown flushes pending spans. Safe on a disabled provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.tp.Shutdown(ctx)
}

// StartSpan starts a span on the global tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(InstrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span (if any) and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
