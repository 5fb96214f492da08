package telemetry

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/itsneelabh/actionagent/core"
)

// installRecorder swaps the global tracer provider for an in-memory one
func installRecorder(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func TestSetupDisabled(t *testing.T) {
	p, err := Setup(context.Background(), core.TelemetryConfig{}, "actionagent", "test", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "none", p.Exporter())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSetupStdoutExporter(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	p, err := Setup(context.Background(), core.TelemetryConfig{Enabled: true, Stdout: true}, "actionagent", "test", &buf, nil)
	require.NoError(t, err)
	assert.Equal(t, "stdout", p.Exporter())

	_, span := StartSpan(context.Background(), "agent.resolve")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "agent.resolve")
}

func TestStartAndEndSpan(t *testing.T) {
	exporter := installRecorder(t)

	_, ok := StartSpan(context.Background(), "agent.execute")
	EndSpan(ok, nil)

	_, failed := StartSpan(context.Background(), "agent.extract")
	EndSpan(failed, errors.New("no JSON"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Len(t, spans[1].Events, 1, "error recorded as span event")
}

func TestTracingMiddleware(t *testing.T) {
	exporter := installRecorder(t)

	var inner trace.SpanContext
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = trace.SpanContextFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	traced := TracingMiddleware("actionagent", &TracingMiddlewareConfig{
		ExcludedPaths: []string{"/health"},
	})(handler)

	rec := httptest.NewRecorder()
	traced.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run-agent", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, inner.IsValid(), "handler context carries the server span")

	traced.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1, "excluded paths produce no span")
	assert.Equal(t, "HTTP POST /run-agent", spans[0].Name)
}

func TestTracedHTTPClientPropagatesContext(t *testing.T) {
	installRecorder(t)

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
	}))
	defer srv.Close()

	ctx, span := StartSpan(context.Background(), "parent")
	defer span.End()

	client := NewTracedHTTPClient(5 * time.Second)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.True(t, strings.Contains(traceparent, span.SpanContext().TraceID().String()))
}

func TestMetrics(t *testing.T) {
	m := NewMetrics("test")

	m.ObserveRequest("gmail", "success")
	m.ObserveRequest("gmail", "success")
	m.ObserveRequest("github", "failure")
	m.ObserveStage(StageExtract, nil, 120*time.Millisecond)
	m.ObserveUpstream("connector", "execute", 200)
	m.ObserveUpstream("connector", "execute", 0)
	m.ObserveCacheLookup(true)
	m.ObserveCacheLookup(false)
	m.ObserveExtractionAttempts(2)
	m.SetBreakerState("connector", "closed", "open")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("gmail", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("github", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamRequests.WithLabelValues("connector", "execute", "transport_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.breakerState.WithLabelValues("connector")))

	m.SetBreakerState("connector", "half-open", "closed")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.breakerState.WithLabelValues("connector")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_agent_requests_total")
	assert.Contains(t, rec.Body.String(), "test_pipeline_stage_duration_seconds")
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("gmail", "success")
	m.ObserveStage(StageResolve, errors.New("x"), time.Second)
	m.ObserveUpstream("ai", "chat", 500)
	m.ObserveCacheLookup(true)
	m.ObserveExtractionAttempts(1)
	m.SetBreakerState("ai", "closed", "open")
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
