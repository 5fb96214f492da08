package connector

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/itsneelabh/actionagent/core"
)

// Connection statuses reported by the connector service
const (
	StatusActive    = "ACTIVE"
	StatusInitiated = "INITIATED"
	StatusFailed    = "FAILED"
)

// Connection is a linked account between a user and an application
type Connection struct {
	ID      string `json:"id"`
	AppName string `json:"appName"`
	Status  string `json:"status"`
}

// Active reports whether the connection can be used to run actions
func (c Connection) Active() bool {
	return c.Status == StatusActive
}

type connectionList struct {
	Items []Connection `json:"items"`
}

// ConnectionRequest is the answer to initiating a connection
type ConnectionRequest struct {
	RedirectURL  string `json:"redirectUrl"`
	ConnectionID string `json:"connectionId"`
	Status       string `json:"connectionStatus"`
}

type initiateRequest struct {
	EntityID    string `json:"entityId"`
	UserUUID    string `json:"user_uuid"`
	AppName     string `json:"appName"`
	RedirectURI string `json:"redirectUri"`
}

type initiateResponse struct {
	RedirectURL        string `json:"redirectUrl"`
	ConnectionID       string `json:"connectionId"`
	ConnectedAccountID string `json:"connectedAccountId"`
	ConnectionStatus   string `json:"connectionStatus"`
}

// ActionSummary is one hit from an action search
type ActionSummary struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	AppName     string `json:"appName"`
}

type actionList struct {
	Items []ActionSummary `json:"items"`
}

// ActionDescription is the remote view of an action's parameters
type ActionDescription struct {
	ActionID    string
	Description string
	Properties  map[string]interface{}
	Required    []string
}

type describeRequest struct {
	EntityID     string                 `json:"entity_id"`
	Arguments    map[string]interface{} `json:"arguments"`
	AllowTracing bool                   `json:"allow_tracing"`
}

type describeResponse struct {
	Description string `json:"description"`
	InputSchema struct {
		Properties map[string]interface{} `json:"properties"`
		Required   []string               `json:"required"`
	} `json:"input_schema"`
}

type executeRequest struct {
	EntityID string                 `json:"entityId"`
	Input    map[string]interface{} `json:"input"`
}

// APIError is a non-2xx answer from the connector service
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("connector %s failed (status %d): %s", e.Operation, e.StatusCode, e.Message)
}

// Unwrap maps the status class onto core sentinels
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return core.ErrInvalidAPIKey
	case e.StatusCode == http.StatusTooManyRequests:
		return core.ErrRateLimited
	case e.StatusCode >= 500:
		return core.ErrUpstreamUnavailable
	default:
		return core.ErrUpstreamRejected
	}
}

// NotFound reports a 404 from the connector service
func (e *APIError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

// ActionError is an execution the connector accepted but reported as failed
type ActionError struct {
	ActionID string
	Message  string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s reported failure: %s", e.ActionID, e.Message)
}

func (e *ActionError) Unwrap() error { return core.ErrExecutionFailed }

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}
