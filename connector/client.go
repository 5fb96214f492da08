// Package connector is the REST client for the connector service that owns
// user connections and executes actions on their behalf.
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/itsneelabh/actionagent/core"
	"github.com/itsneelabh/actionagent/resilience"
	"github.com/itsneelabh/actionagent/telemetry"
)

const (
	// DefaultBaseURL is the hosted connector service
	DefaultBaseURL = "https://backend.composio.dev"

	maxResponseBytes = 4 << 20
	serviceName      = "connector"
)

// ClientConfig configures the connector client
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	// CircuitBreaker guards every call when set (optional)
	CircuitBreaker core.CircuitBreaker
	Logger         core.Logger
	Metrics        *telemetry.Metrics
}

// ConfigFromCore builds a ClientConfig from the service configuration
func ConfigFromCore(cfg core.ConnectorConfig, cb core.CircuitBreaker, logger core.Logger, metrics *telemetry.Metrics) ClientConfig {
	return ClientConfig{
		BaseURL:        cfg.BaseURL,
		APIKey:         cfg.APIKey,
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
		RetryDelay:     cfg.RetryDelay,
		CircuitBreaker: cb,
		Logger:         logger,
		Metrics:        metrics,
	}
}

// Client talks to the connector service. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	breaker    core.CircuitBreaker
	logger     core.Logger
	metrics    *telemetry.Metrics
}

// NewClient creates a connector client
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("connector API key not configured: %w", core.ErrMissingConfiguration)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}

	logger := cfg.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent(serviceName)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: telemetry.NewTracedHTTPClient(cfg.Timeout),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		breaker:    cfg.CircuitBreaker,
		logger:     logger,
		metrics:    cfg.Metrics,
	}, nil
}

// ListConnections returns every connection the user has, in any status
func (c *Client) ListConnections(ctx context.Context, userID string) ([]Connection, error) {
	q := url.Values{"user_uuid": {userID}}
	var out connectionList
	if err := c.call(ctx, "list_connections", http.MethodGet, "/api/v1/connectedAccounts", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// InitiateConnection starts the OAuth flow for app. The user completes it
// at the returned RedirectURL and lands on redirectURL afterwards.
func (c *Client) InitiateConnection(ctx context.Context, userID, app, redirectURL string) (*ConnectionRequest, error) {
	body := initiateRequest{
		EntityID:    userID,
		UserUUID:    userID,
		AppName:     strings.ToUpper(app),
		RedirectURI: redirectURL,
	}
	var out initiateResponse
	if err := c.call(ctx, "initiate_connection", http.MethodPost, "/api/v1/connectedAccounts", nil, body, &out); err != nil {
		return nil, err
	}

	id := out.ConnectionID
	if id == "" {
		id = out.ConnectedAccountID
	}
	return &ConnectionRequest{
		RedirectURL:  out.RedirectURL,
		ConnectionID: id,
		Status:       out.ConnectionStatus,
	}, nil
}

// SearchActions finds actions of app matching a natural-language use case
func (c *Client) SearchActions(ctx context.Context, useCase, app string) ([]ActionSummary, error) {
	q := url.Values{"useCase": {useCase}, "apps": {app}}
	var out actionList
	if err := c.call(ctx, "search_actions", http.MethodGet, "/api/v2/actions", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// DescribeAction fetches an action's input schema through a dry execute
// with empty arguments, scoped to the user.
func (c *Client) DescribeAction(ctx context.Context, actionID, userID string) (*ActionDescription, error) {
	body := describeRequest{
		EntityID:     userID,
		Arguments:    map[string]interface{}{},
		AllowTracing: false,
	}
	var out describeResponse
	path := "/api/v3/tools/execute/" + url.PathEscape(actionID)
	if err := c.call(ctx, "describe_action", http.MethodPost, path, nil, body, &out); err != nil {
		return nil, err
	}

	desc := &ActionDescription{
		ActionID:    actionID,
		Description: out.Description,
		Properties:  out.InputSchema.Properties,
		Required:    out.InputSchema.Required,
	}
	if desc.Description == "" {
		desc.Description = actionID
	}
	if desc.Properties == nil {
		desc.Properties = map[string]interface{}{}
	}
	return desc, nil
}

// ExecuteAction runs actionID for the user with params and returns the
// connector's answer untouched. A 200 answer that reports failure becomes
// an *ActionError.
func (c *Client) ExecuteAction(ctx context.Context, userID, actionID string, params map[string]interface{}) (map[string]interface{}, error) {
	body := executeRequest{EntityID: userID, Input: params}
	var out map[string]interface{}
	path := "/api/v2/actions/" + url.PathEscape(actionID) + "/execute"
	// A failed execute may still have taken effect upstream, so it is never re-sent
	if err := c.send(ctx, "execute_action", http.MethodPost, path, nil, body, &out, 1); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]interface{}{}
	}

	if ok, reported := successFlag(out); reported && !ok {
		msg := "unknown error"
		switch e := out["error"].(type) {
		case string:
			if e != "" {
				msg = e
			}
		case map[string]interface{}:
			if m, _ := e["message"].(string); m != "" {
				msg = m
			}
		}
		return out, &ActionError{ActionID: actionID, Message: msg}
	}
	return out, nil
}

// Ping verifies the key against a cheap listing call
func (c *Client) Ping(ctx context.Context) error {
	q := url.Values{"limit": {"1"}}
	return c.call(ctx, "ping", http.MethodGet, "/api/v1/apps", q, nil, nil)
}

// successFlag reads the execute answer's success flag. The service has
// spelled it both "successful" and "successfull".
func successFlag(out map[string]interface{}) (ok bool, reported bool) {
	for _, key := range []string{"successful", "successfull"} {
		if v, exists := out[key]; exists {
			b, isBool := v.(bool)
			return isBool && b, true
		}
	}
	return false, false
}

// call performs one logical request with retries (and the circuit breaker
// when configured), then decodes the 2xx body into out.
func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, body, out interface{}) error {
	return c.send(ctx, op, method, path, query, body, out, c.maxRetries+1)
}

// send is call with an explicit attempt budget
func (c *Client) send(ctx context.Context, op, method, path string, query url.Values, body, out interface{}, attempts int) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "connector."+op,
		attribute.String("connector.operation", op),
		attribute.String("http.method", method),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("connector %s: encoding request: %w", op, err)
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	start := time.Now()
	var raw []byte
	attempt := func() error {
		var doErr error
		raw, doErr = c.do(ctx, op, method, endpoint, payload)
		return doErr
	}

	retryCfg := &resilience.RetryConfig{
		MaxAttempts:   attempts,
		InitialDelay:  c.retryDelay,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
		ShouldRetry:   core.IsRetryable,
		OnRetry: func(n int, rerr error, delay time.Duration) {
			c.logger.WarnWithContext(ctx, "Connector request failed, retrying", map[string]interface{}{
				"operation":      "connector_retry",
				"connector_op":   op,
				"attempt":        n,
				"retry_delay_ms": delay.Milliseconds(),
				"error":          rerr.Error(),
			})
		},
	}

	if c.breaker != nil {
		err = resilience.RetryWithCircuitBreaker(ctx, retryCfg, c.breaker, attempt)
	} else {
		err = resilience.Retry(ctx, retryCfg, attempt)
	}
	if err != nil {
		c.logger.ErrorWithContext(ctx, "Connector request failed", map[string]interface{}{
			"operation":    "connector_request",
			"connector_op": op,
			"status_code":  StatusCode(err),
			"duration_ms":  time.Since(start).Milliseconds(),
			"error":        err.Error(),
		})
		return err
	}

	c.logger.DebugWithContext(ctx, "Connector request completed", map[string]interface{}{
		"operation":    "connector_request",
		"connector_op": op,
		"duration_ms":  time.Since(start).Milliseconds(),
	})

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("connector %s: decoding response: %v: %w", op, err, core.ErrUpstreamUnavailable)
	}
	return nil
}

// do sends a single HTTP request and returns the 2xx body
func (c *Client) do(ctx context.Context, op, method, endpoint string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("connector %s: creating request: %w", op, err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(serviceName, op, 0)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("connector %s: %v: %w", op, err, core.ErrUpstreamUnavailable)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.metrics.ObserveUpstream(serviceName, op, resp.StatusCode)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("connector %s: reading response: %v: %w", op, err, core.ErrUpstreamUnavailable)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Operation: op, StatusCode: resp.StatusCode, Message: upstreamMessage(resp.StatusCode, raw)}
	}
	return raw, nil
}

// upstreamMessage pulls a readable message out of an error body
func upstreamMessage(status int, raw []byte) string {
	var body struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		var s string
		if json.Unmarshal(body.Error, &s) == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}

	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		return http.StatusText(status)
	}
	return core.TruncateForLog(msg, 500)
}

// IsNotFound reports whether err is a 404 from the connector service
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.NotFound()
}
