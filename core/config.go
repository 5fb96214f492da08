package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the action agent service.
// It supports three-layer configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables (medium priority)
//  3. Functional options (highest priority)
//
// An optional JSON or YAML file can be loaded between defaults and the
// environment with LoadFromFile.
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithPort(8080),
//	    WithConnectorAPIKey(os.Getenv("COMPOSIO_API_KEY")),
//	    WithAIAPIKey(os.Getenv("FIREWORKS_API_KEY")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	// Core configuration
	Name    string `json:"name" yaml:"name" env:"ACTIONAGENT_NAME" default:"actionagent"`
	Port    int    `json:"port" yaml:"port" env:"ACTIONAGENT_PORT,PORT" default:"8080"`
	Address string `json:"address" yaml:"address" env:"ACTIONAGENT_ADDRESS"`

	// PublicURL is the base URL of the web front-end, used for OAuth redirects
	PublicURL string `json:"public_url" yaml:"public_url" env:"ACTIONAGENT_PUBLIC_URL,NEXT_PUBLIC_APP_URL" default:"http://localhost:3000"`

	HTTP        HTTPConfig        `json:"http" yaml:"http"`
	Connector   ConnectorConfig   `json:"connector" yaml:"connector"`
	AI          AIConfig          `json:"ai" yaml:"ai"`
	Pipeline    PipelineConfig    `json:"pipeline" yaml:"pipeline"`
	Redis       RedisConfig       `json:"redis" yaml:"redis"`
	Resilience  ResilienceConfig  `json:"resilience" yaml:"resilience"`
	Telemetry   TelemetryConfig   `json:"telemetry" yaml:"telemetry"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging"`
	Development DevelopmentConfig `json:"development" yaml:"development"`
}

// HTTPConfig contains HTTP server configuration including timeouts and CORS settings.
type HTTPConfig struct {
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout" env:"ACTIONAGENT_HTTP_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout" env:"ACTIONAGENT_HTTP_WRITE_TIMEOUT" default:"120s"`
	IdleTimeout     time.Duration `json:"idle_timeout" yaml:"idle_timeout" default:"120s"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" default:"10s"`
	MaxBodyBytes    int64         `json:"max_body_bytes" yaml:"max_body_bytes" default:"1048576"`
	CORS            CORSConfig    `json:"cors" yaml:"cors"`
}

// CORSConfig contains Cross-Origin Resource Sharing (CORS) configuration.
// Supports wildcard domains (e.g., *.example.com) and wildcard ports (e.g., http://localhost:*).
type CORSConfig struct {
	Enabled          bool     `json:"enabled" yaml:"enabled" env:"ACTIONAGENT_CORS_ENABLED" default:"true"`
	AllowedOrigins   []string `json:"allowed_origins" yaml:"allowed_origins" env:"ACTIONAGENT_CORS_ORIGINS" default:"*"`
	AllowedMethods   []string `json:"allowed_methods" yaml:"allowed_methods" env:"ACTIONAGENT_CORS_METHODS" default:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `json:"allowed_headers" yaml:"allowed_headers" env:"ACTIONAGENT_CORS_HEADERS" default:"Content-Type,Authorization"`
	AllowCredentials bool     `json:"allow_credentials" yaml:"allow_credentials" default:"false"`
	MaxAge           int      `json:"max_age" yaml:"max_age" default:"86400"`
}

// ConnectorConfig configures the connector-management service client.
type ConnectorConfig struct {
	BaseURL    string        `json:"base_url" yaml:"base_url" env:"ACTIONAGENT_CONNECTOR_URL" default:"https://backend.composio.dev"`
	APIKey     string        `json:"-" yaml:"-" env:"ACTIONAGENT_CONNECTOR_API_KEY,COMPOSIO_API_KEY"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout" env:"ACTIONAGENT_CONNECTOR_TIMEOUT" default:"30s"`
	MaxRetries int           `json:"max_retries" yaml:"max_retries" default:"2"`
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay" default:"500ms"`
}

// AIConfig contains chat-completion client configuration.
// Any OpenAI-compatible endpoint works; the defaults target Fireworks.
type AIConfig struct {
	Provider   string        `json:"provider" yaml:"provider" env:"ACTIONAGENT_AI_PROVIDER" default:"openai"`
	APIKey     string        `json:"-" yaml:"-" env:"ACTIONAGENT_AI_API_KEY,FIREWORKS_API_KEY,OPENAI_API_KEY"`
	BaseURL    string        `json:"base_url" yaml:"base_url" env:"ACTIONAGENT_AI_BASE_URL" default:"https://api.fireworks.ai/inference/v1"`
	Model      string        `json:"model" yaml:"model" env:"ACTIONAGENT_AI_MODEL"`
	MaxTokens  int           `json:"max_tokens" yaml:"max_tokens" env:"ACTIONAGENT_AI_MAX_TOKENS" default:"1000"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout" env:"ACTIONAGENT_AI_TIMEOUT" default:"60s"`
	MaxRetries int           `json:"max_retries" yaml:"max_retries" default:"2"`
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay" default:"1s"`

	// ExtractionTemperature is used for structured parameter extraction
	ExtractionTemperature float32 `json:"extraction_temperature" yaml:"extraction_temperature" default:"0.1"`
	// SynthesisTemperature is used for the user-facing summary
	SynthesisTemperature float32 `json:"synthesis_temperature" yaml:"synthesis_temperature" default:"0.7"`
}

// PipelineConfig tunes the natural-language-to-action pipeline.
type PipelineConfig struct {
	ExtractionAttempts  int           `json:"extraction_attempts" yaml:"extraction_attempts" env:"ACTIONAGENT_EXTRACTION_ATTEMPTS" default:"3"`
	ExtractionDelay     time.Duration `json:"extraction_delay" yaml:"extraction_delay" default:"500ms"`
	ExtractionMaxDelay  time.Duration `json:"extraction_max_delay" yaml:"extraction_max_delay" default:"4s"`
	RequestTimeout      time.Duration `json:"request_timeout" yaml:"request_timeout" env:"ACTIONAGENT_REQUEST_TIMEOUT" default:"90s"`
	SynthesisMaxTokens  int           `json:"synthesis_max_tokens" yaml:"synthesis_max_tokens" default:"300"`
	ExtractionMaxTokens int           `json:"extraction_max_tokens" yaml:"extraction_max_tokens" default:"1000"`
}

// RedisConfig configures the optional cross-request schema cache.
type RedisConfig struct {
	URL            string        `json:"url" yaml:"url" env:"ACTIONAGENT_REDIS_URL,REDIS_URL"`
	SchemaCache    bool          `json:"schema_cache" yaml:"schema_cache" env:"ACTIONAGENT_SCHEMA_CACHE" default:"false"`
	SchemaCacheTTL time.Duration `json:"schema_cache_ttl" yaml:"schema_cache_ttl" env:"ACTIONAGENT_SCHEMA_CACHE_TTL" default:"1h"`
	Prefix         string        `json:"prefix" yaml:"prefix" default:"actionagent:schema:"`
}

// ResilienceConfig contains the upstream circuit breaker settings.
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
}

// CircuitBreakerConfig defines circuit breaker pattern settings.
// After Threshold consecutive upstream failures the breaker opens for Timeout.
type CircuitBreakerConfig struct {
	Enabled          bool          `json:"enabled" yaml:"enabled" env:"ACTIONAGENT_CB_ENABLED" default:"true"`
	Threshold        int           `json:"threshold" yaml:"threshold" env:"ACTIONAGENT_CB_THRESHOLD" default:"5"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout" env:"ACTIONAGENT_CB_TIMEOUT" default:"30s"`
	HalfOpenRequests int           `json:"half_open_requests" yaml:"half_open_requests" default:"1"`
}

// TelemetryConfig contains tracing and metrics configuration.
type TelemetryConfig struct {
	Enabled        bool    `json:"enabled" yaml:"enabled" env:"ACTIONAGENT_TELEMETRY_ENABLED" default:"false"`
	Endpoint       string  `json:"endpoint" yaml:"endpoint" env:"ACTIONAGENT_TELEMETRY_ENDPOINT,OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName    string  `json:"service_name" yaml:"service_name" env:"OTEL_SERVICE_NAME"`
	Stdout         bool    `json:"stdout" yaml:"stdout" env:"ACTIONAGENT_TELEMETRY_STDOUT" default:"false"`
	Insecure       bool    `json:"insecure" yaml:"insecure" default:"true"`
	SamplingRate   float64 `json:"sampling_rate" yaml:"sampling_rate" default:"1.0"`
	MetricsEnabled bool    `json:"metrics_enabled" yaml:"metrics_enabled" env:"ACTIONAGENT_METRICS_ENABLED" default:"true"`
	MetricsPath    string  `json:"metrics_path" yaml:"metrics_path" default:"/metrics"`
}

// LoggingConfig contains logging configuration.
// Supports structured (JSON) and human-readable (text) formats.
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level" env:"ACTIONAGENT_LOG_LEVEL" default:"info"`
	Format     string `json:"format" yaml:"format" env:"ACTIONAGENT_LOG_FORMAT" default:"json"`
	Output     string `json:"output" yaml:"output" default:"stdout"`
	TimeFormat string `json:"time_format" yaml:"time_format"`
}

// DevelopmentConfig contains settings for local development and testing.
//
// WARNING: Never enable development mode in production! Error details are
// returned to clients when it is on.
type DevelopmentConfig struct {
	Enabled      bool `json:"enabled" yaml:"enabled" env:"ACTIONAGENT_DEV_MODE,DEV_MODE" default:"false"`
	MockAI       bool `json:"mock_ai" yaml:"mock_ai" env:"ACTIONAGENT_MOCK_AI" default:"false"`
	ErrorDetails bool `json:"error_details" yaml:"error_details" default:"false"`
}

// Option is a functional option for configuring the service.
// Options are applied in order and can return an error if the configuration is invalid.
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:      "actionagent",
		Port:      8080,
		Address:   "0.0.0.0",
		PublicURL: "http://localhost:3000",
		HTTP: HTTPConfig{
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20, // 1MB
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization"},
				MaxAge:         86400,
			},
		},
		Connector: ConnectorConfig{
			BaseURL:    "https://backend.composio.dev",
			Timeout:    30 * time.Second,
			MaxRetries: 2,
			RetryDelay: 500 * time.Millisecond,
		},
		AI: AIConfig{
			Provider:              "openai",
			BaseURL:               "https://api.fireworks.ai/inference/v1",
			Model:                 "accounts/sentientfoundation/models/dobby-unhinged-llama-3-3-70b-new",
			MaxTokens:             1000,
			Timeout:               60 * time.Second,
			MaxRetries:            2,
			RetryDelay:            1 * time.Second,
			ExtractionTemperature: 0.1,
			SynthesisTemperature:  0.7,
		},
		Pipeline: PipelineConfig{
			ExtractionAttempts:  DefaultExtractionAttempts,
			ExtractionDelay:     500 * time.Millisecond,
			ExtractionMaxDelay:  4 * time.Second,
			RequestTimeout:      DefaultRequestTimeout,
			SynthesisMaxTokens:  300,
			ExtractionMaxTokens: 1000,
		},
		Redis: RedisConfig{
			SchemaCacheTTL: DefaultSchemaCacheTTL,
			Prefix:         DefaultRedisPrefix,
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          true,
				Threshold:        5,
				Timeout:          30 * time.Second,
				HalfOpenRequests: 1,
			},
		},
		Telemetry: TelemetryConfig{
			Insecure:       true,
			SamplingRate:   1.0,
			MetricsEnabled: true,
			MetricsPath:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			TimeFormat: time.RFC3339Nano,
		},
	}
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables take precedence over defaults but are overridden by functional options.
//
// Variable naming convention:
//   - Service-specific: ACTIONAGENT_<SETTING>
//   - Standard variables: COMPOSIO_API_KEY, FIREWORKS_API_KEY, OPENAI_API_KEY,
//     REDIS_URL, OTEL_EXPORTER_OTLP_ENDPOINT, NEXT_PUBLIC_APP_URL
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("ACTIONAGENT_NAME"); v != "" {
		c.Name = v
	}
	if v := firstEnv("ACTIONAGENT_PORT", EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return &ServiceError{
				Op:      "Config.LoadFromEnv",
				Kind:    "config",
				Message: fmt.Sprintf("invalid port: %s", v),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.Port = port
	}
	if v := os.Getenv("ACTIONAGENT_ADDRESS"); v != "" {
		c.Address = v
	}
	if v := firstEnv("ACTIONAGENT_PUBLIC_URL", EnvAppURL); v != "" {
		c.PublicURL = strings.TrimRight(v, "/")
	}

	// HTTP settings
	if d, ok := envDuration("ACTIONAGENT_HTTP_READ_TIMEOUT"); ok {
		c.HTTP.ReadTimeout = d
	}
	if d, ok := envDuration("ACTIONAGENT_HTTP_WRITE_TIMEOUT"); ok {
		c.HTTP.WriteTimeout = d
	}

	// CORS settings
	if v := os.Getenv("ACTIONAGENT_CORS_ENABLED"); v != "" {
		c.HTTP.CORS.Enabled = parseBool(v)
	}
	if v := os.Getenv("ACTIONAGENT_CORS_ORIGINS"); v != "" {
		c.HTTP.CORS.AllowedOrigins = parseStringList(v)
	}
	if v := os.Getenv("ACTIONAGENT_CORS_METHODS"); v != "" {
		c.HTTP.CORS.AllowedMethods = parseStringList(v)
	}
	if v := os.Getenv("ACTIONAGENT_CORS_HEADERS"); v != "" {
		c.HTTP.CORS.AllowedHeaders = parseStringList(v)
	}

	// Connector settings
	if v := os.Getenv("ACTIONAGENT_CONNECTOR_URL"); v != "" {
		c.Connector.BaseURL = strings.TrimRight(v, "/")
	}
	if v := firstEnv("ACTIONAGENT_CONNECTOR_API_KEY", EnvConnectorAPIKey); v != "" {
		c.Connector.APIKey = v
	}
	if d, ok := envDuration("ACTIONAGENT_CONNECTOR_TIMEOUT"); ok {
		c.Connector.Timeout = d
	}

	// AI settings
	if v := os.Getenv("ACTIONAGENT_AI_PROVIDER"); v != "" {
		c.AI.Provider = v
	}
	if v := firstEnv("ACTIONAGENT_AI_API_KEY", EnvFireworksAPIKey, EnvOpenAIAPIKey); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("ACTIONAGENT_AI_BASE_URL"); v != "" {
		c.AI.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("ACTIONAGENT_AI_MODEL"); v != "" {
		c.AI.Model = v
	}
	if v := os.Getenv("ACTIONAGENT_AI_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.AI.MaxTokens = n
		}
	}
	if d, ok := envDuration("ACTIONAGENT_AI_TIMEOUT"); ok {
		c.AI.Timeout = d
	}

	// Pipeline settings
	if v := os.Getenv("ACTIONAGENT_EXTRACTION_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Pipeline.ExtractionAttempts = n
		}
	}
	if d, ok := envDuration("ACTIONAGENT_REQUEST_TIMEOUT"); ok {
		c.Pipeline.RequestTimeout = d
	}

	// Redis settings
	if v := firstEnv("ACTIONAGENT_REDIS_URL", EnvRedisURL); v != "" {
		c.Redis.URL = v
		c.Redis.SchemaCache = true // Auto-enable the cache when Redis is configured
	}
	if v := os.Getenv("ACTIONAGENT_SCHEMA_CACHE"); v != "" {
		c.Redis.SchemaCache = parseBool(v)
	}
	if d, ok := envDuration("ACTIONAGENT_SCHEMA_CACHE_TTL"); ok {
		c.Redis.SchemaCacheTTL = d
	}

	// Circuit breaker settings
	if v := os.Getenv("ACTIONAGENT_CB_ENABLED"); v != "" {
		c.Resilience.CircuitBreaker.Enabled = parseBool(v)
	}
	if v := os.Getenv("ACTIONAGENT_CB_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Resilience.CircuitBreaker.Threshold = n
		}
	}
	if d, ok := envDuration("ACTIONAGENT_CB_TIMEOUT"); ok {
		c.Resilience.CircuitBreaker.Timeout = d
	}

	// Telemetry settings
	if v := os.Getenv("ACTIONAGENT_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = parseBool(v)
	}
	if v := firstEnv("ACTIONAGENT_TELEMETRY_ENDPOINT", EnvOTLPEndpoint); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true // Auto-enable if an endpoint is provided
	}
	if v := os.Getenv("ACTIONAGENT_TELEMETRY_STDOUT"); v != "" {
		c.Telemetry.Stdout = parseBool(v)
	}
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	}
	if v := os.Getenv("ACTIONAGENT_METRICS_ENABLED"); v != "" {
		c.Telemetry.MetricsEnabled = parseBool(v)
	}

	// Logging settings
	if v := os.Getenv("ACTIONAGENT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ACTIONAGENT_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	// Development settings
	if v := firstEnv("ACTIONAGENT_DEV_MODE", EnvDevMode); v != "" {
		c.Development.Enabled = parseBool(v)
		if c.Development.Enabled {
			c.Development.ErrorDetails = true
			c.Logging.Level = "debug"
			c.Logging.Format = "text"
		}
	}
	if v := os.Getenv("ACTIONAGENT_MOCK_AI"); v != "" {
		c.Development.MockAI = parseBool(v)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file.
// File settings override defaults but are overridden by environment
// variables and functional options when used through NewConfigFromFile.
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)

	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}

	data, err := os.ReadFile(cleanPath) // nosec G304 -- operator-supplied path
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %v: %w", err, ErrInvalidConfiguration)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %v: %w", err, ErrInvalidConfiguration)
		}
	}

	return nil
}

// Validate checks if the configuration is valid and returns an error if not.
//
// Validation rules:
//   - Port must be between 1 and 65535
//   - Connector API key is required
//   - AI API key is required unless mock AI is enabled
//   - Extraction attempts must be between 1 and 5
//   - Redis URL is required when the schema cache is enabled
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &ServiceError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid port: %d", c.Port),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Connector.APIKey == "" {
		return &ServiceError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "connector API key is required (set COMPOSIO_API_KEY)",
			Err:     ErrMissingConfiguration,
		}
	}

	if c.AI.APIKey == "" && !c.Development.MockAI {
		return &ServiceError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "AI API key is required (set FIREWORKS_API_KEY or OPENAI_API_KEY, or use mock AI in development)",
			Err:     ErrMissingConfiguration,
		}
	}

	if c.Pipeline.ExtractionAttempts < 1 || c.Pipeline.ExtractionAttempts > 5 {
		return &ServiceError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("extraction attempts must be between 1 and 5, got %d", c.Pipeline.ExtractionAttempts),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Redis.SchemaCache && c.Redis.URL == "" {
		return &ServiceError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "redis URL is required when the schema cache is enabled",
			Err:     ErrMissingConfiguration,
		}
	}

	return nil
}

// Functional Options

// WithName sets the service name used in logs and traces.
func WithName(name string) Option {
	return func(c *Config) error {
		c.Name = name
		return nil
	}
}

// WithPort sets the HTTP server port.
// Returns an error if the port is outside 1-65535.
func WithPort(port int) Option {
	return func(c *Config) error {
		if port < 1 || port > 65535 {
			return &ServiceError{
				Op:      "WithPort",
				Kind:    "config",
				Message: fmt.Sprintf("invalid port: %d", port),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.Port = port
		return nil
	}
}

// WithAddress sets the bind address for the HTTP server.
func WithAddress(address string) Option {
	return func(c *Config) error {
		c.Address = address
		return nil
	}
}

// WithPublicURL sets the front-end base URL used to build OAuth redirect URLs.
func WithPublicURL(url string) Option {
	return func(c *Config) error {
		c.PublicURL = strings.TrimRight(url, "/")
		return nil
	}
}

// WithCORS enables CORS with specific allowed origins.
func WithCORS(origins []string, credentials bool) Option {
	return func(c *Config) error {
		c.HTTP.CORS.Enabled = true
		c.HTTP.CORS.AllowedOrigins = origins
		c.HTTP.CORS.AllowCredentials = credentials
		return nil
	}
}

// WithConnectorAPIKey sets the connector service API key.
func WithConnectorAPIKey(key string) Option {
	return func(c *Config) error {
		c.Connector.APIKey = key
		return nil
	}
}

// WithConnectorBaseURL points the connector client at a different host.
func WithConnectorBaseURL(url string) Option {
	return func(c *Config) error {
		c.Connector.BaseURL = strings.TrimRight(url, "/")
		return nil
	}
}

// WithAIAPIKey sets the chat-completion API key.
func WithAIAPIKey(key string) Option {
	return func(c *Config) error {
		c.AI.APIKey = key
		return nil
	}
}

// WithAIBaseURL sets the OpenAI-compatible base URL.
func WithAIBaseURL(url string) Option {
	return func(c *Config) error {
		c.AI.BaseURL = strings.TrimRight(url, "/")
		return nil
	}
}

// WithAIModel sets the chat-completion model.
func WithAIModel(model string) Option {
	return func(c *Config) error {
		c.AI.Model = model
		return nil
	}
}

// WithExtractionAttempts bounds the parameter extraction retry loop.
func WithExtractionAttempts(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return &ServiceError{
				Op:      "WithExtractionAttempts",
				Kind:    "config",
				Message: fmt.Sprintf("extraction attempts must be positive, got %d", n),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.Pipeline.ExtractionAttempts = n
		return nil
	}
}

// WithRequestTimeout sets the overall per-request deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return fmt.Errorf("request timeout must be positive: %w", ErrInvalidConfiguration)
		}
		c.Pipeline.RequestTimeout = d
		return nil
	}
}

// WithRedisURL configures Redis and enables the schema cache.
// Format: redis://[user:password@]host:port/db
func WithRedisURL(url string) Option {
	return func(c *Config) error {
		c.Redis.URL = url
		c.Redis.SchemaCache = true
		return nil
	}
}

// WithTelemetry enables tracing with the given OTLP endpoint.
// An empty endpoint with enabled=true exports traces to stdout.
func WithTelemetry(enabled bool, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = enabled
		c.Telemetry.Endpoint = endpoint
		c.Telemetry.Stdout = enabled && endpoint == ""
		return nil
	}
}

// WithLogLevel sets the minimum log level.
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithLogFormat sets the log format ("json" or "text").
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		if format != "json" && format != "text" {
			return fmt.Errorf("unsupported log format %q: %w", format, ErrInvalidConfiguration)
		}
		c.Logging.Format = format
		return nil
	}
}

// WithDevelopmentMode enables development mode: text logs, debug level and
// error details in responses.
func WithDevelopmentMode(enabled bool) Option {
	return func(c *Config) error {
		c.Development.Enabled = enabled
		c.Development.ErrorDetails = enabled
		if enabled {
			c.Logging.Level = "debug"
			c.Logging.Format = "text"
		}
		return nil
	}
}

// WithMockAI replaces the chat-completion client with the scripted mock.
func WithMockAI(enabled bool) Option {
	return func(c *Config) error {
		c.Development.MockAI = enabled
		return nil
	}
}

// NewConfig creates a configuration from defaults, the environment and the
// given options, in that order, and validates the result.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.Name
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewConfigFromFile is NewConfig with a file layer between defaults and the environment.
func NewConfigFromFile(path string, opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(path); err != nil {
		return nil, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.Name
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Helper functions

// parseStringList splits a comma-separated string into a slice of strings.
// Whitespace is trimmed from each element, and empty strings are filtered out.
func parseStringList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseBool accepts "true", "1", "yes", "on" (case-insensitive) as true.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// firstEnv returns the first non-empty environment variable among names.
func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func envDuration(name string) (time.Duration, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}
