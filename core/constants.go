package core

import "time"

// Environment Variables
const (
	// Upstream credentials
	EnvConnectorAPIKey = "COMPOSIO_API_KEY"  // Connector service API key
	EnvFireworksAPIKey = "FIREWORKS_API_KEY" // Chat-completion API key (Fireworks)
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"    // Chat-completion API key (any OpenAI-compatible host)

	// Shared infrastructure
	EnvRedisURL     = "REDIS_URL"                   // Redis connection URL for the schema cache
	EnvOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT" // OTLP trace receiver
	EnvAppURL       = "NEXT_PUBLIC_APP_URL"         // Public URL of the web front-end

	// Common Configuration
	EnvPort    = "PORT"     // HTTP server port
	EnvDevMode = "DEV_MODE" // Development mode flag
)

// Schema Cache Defaults
const (
	// DefaultRedisPrefix is the default key prefix for schema cache entries in Redis
	// Format: <prefix><action-id>:<scope>
	// Example: actionagent:schema:GMAIL_SEND_EMAIL:default
	DefaultRedisPrefix = "actionagent:schema:"

	// DefaultSchemaCacheTTL is the default TTL for cached action schemas.
	// Connector schemas change with connector releases, not per request.
	DefaultSchemaCacheTTL = 1 * time.Hour
)

// Pipeline Defaults
const (
	// DefaultExtractionAttempts bounds the parameter extraction retry loop
	DefaultExtractionAttempts = 3

	// DefaultRequestTimeout is the overall deadline for one run-agent request
	DefaultRequestTimeout = 90 * time.Second

	// InstructionLogLimit is how many characters of an instruction may appear in logs
	InstructionLogLimit = 50
)
