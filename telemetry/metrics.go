package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline stage names used as the "stage" label
const (
	StageConnection = "connection"
	StageResolve    = "resolve"
	StageSchema     = "schema"
	StageExtract    = "extract"
	StageExecute    = "execute"
	StageSynthesize = "synthesize"
)

// Metrics holds the Prometheus collectors for the service.
// All methods are safe on a nil *Metrics, which records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests           *prometheus.CounterVec
	stageDuration      *prometheus.HistogramVec
	upstreamRequests   *prometheus.CounterVec
	extractionAttempts prometheus.Histogram
	cacheLookups       *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
}

// NewMetrics creates the collectors on a private registry, together with
// the Go runtime and process collectors.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "actionagent"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "agent_requests_total",
				Help:      "Total number of run-agent requests by app and outcome",
			},
			[]string{"app", "outcome"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_stage_duration_seconds",
				Help:      "Duration of each pipeline stage",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage", "outcome"},
		),
		upstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Requests sent to upstream services by status code",
			},
			[]string{"service", "operation", "status"},
		),
		extractionAttempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "extraction_attempts",
				Help:      "Model calls needed to extract parameters for one request",
				Buckets:   []float64{1, 2, 3, 4, 5},
			},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schema_cache_lookups_total",
				Help:      "Schema cache lookups by result",
			},
			[]string{"result"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_open",
				Help:      "1 when the named circuit breaker is open or half-open",
			},
			[]string{"name"},
		),
	}

	m.registry.MustRegister(
		m.requests,
		m.stageDuration,
		m.upstreamRequests,
		m.extractionAttempts,
		m.cacheLookups,
		m.breakerState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry (for tests and extra collectors)
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest counts a finished run-agent request.
// outcome is one of "success", "clarification", "failure".
func (m *Metrics) ObserveRequest(app, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(app, outcome).Inc()
}

// ObserveStage records how long a pipeline stage took.
func (m *Metrics) ObserveStage(stage string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.stageDuration.WithLabelValues(stage, outcome).Observe(d.Seconds())
}

// ObserveUpstream counts one upstream HTTP exchange. status 0 means the
// request never got a response.
func (m *Metrics) ObserveUpstream(service, operation string, status int) {
	if m == nil {
		return
	}
	label := "transport_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.upstreamRequests.WithLabelValues(service, operation, label).Inc()
}

// ObserveExtractionAttempts records how many model calls extraction needed
func (m *Metrics) ObserveExtractionAttempts(n int) {
	if m == nil {
		return
	}
	m.extractionAttempts.Observe(float64(n))
}

// ObserveCacheLookup counts a schema cache hit or miss
func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// SetBreakerState tracks a circuit breaker transition. It matches the
// OnStateChange hook of core.CircuitBreakerParams.
func (m *Metrics) SetBreakerState(name, from, to string) {
	if m == nil {
		return
	}
	v := 0.0
	if to != "closed" {
		v = 1
	}
	m.breakerState.WithLabelValues(name).Set(v)
}
