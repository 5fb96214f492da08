// Package agent implements the natural-language-to-action pipeline: resolve
// an action for an instruction, fetch its schema, extract parameters with the
// model, execute the action through the connector and summarize the result.
package agent

import (
	"context"
	"sort"

	"github.com/itsneelabh/actionagent/catalog"
	"github.com/itsneelabh/actionagent/connector"
)

// ActionSearcher finds remote actions for a use case
type ActionSearcher interface {
	SearchActions(ctx context.Context, useCase, app string) ([]connector.ActionSummary, error)
}

// ActionDescriber fetches the remote description of an action
type ActionDescriber interface {
	DescribeAction(ctx context.Context, actionID, userID string) (*connector.ActionDescription, error)
}

// ActionRunner executes an action for a user
type ActionRunner interface {
	ExecuteAction(ctx context.Context, userID, actionID string, params map[string]interface{}) (map[string]interface{}, error)
}

// ConnectionService lists and initiates user connections
type ConnectionService interface {
	ListConnections(ctx context.Context, userID string) ([]connector.Connection, error)
	InitiateConnection(ctx context.Context, userID, app, redirectURL string) (*connector.ConnectionRequest, error)
}

// Connector is everything the pipeline needs from the connector service.
// *connector.Client implements it.
type Connector interface {
	ActionSearcher
	ActionDescriber
	ActionRunner
	ConnectionService
}

var _ Connector = (*connector.Client)(nil)

// ActionSchema describes the parameters of one action. It is immutable once
// built and may be cached by action id.
type ActionSchema struct {
	ActionID       string                 `json:"action_id"`
	Description    string                 `json:"description"`
	ParameterNames []string               `json:"parameter_names"`
	Properties     map[string]interface{} `json:"properties"`
	RequiredFields []string               `json:"required_fields"`
	OptionalFields []string               `json:"optional_fields"`
	SynonymMap     catalog.SynonymMap     `json:"synonym_map"`
}

// HasParameter reports whether name is a parameter of the action
func (s *ActionSchema) HasParameter(name string) bool {
	i := sort.SearchStrings(s.ParameterNames, name)
	return i < len(s.ParameterNames) && s.ParameterNames[i] == name
}

// ExtractionResult is the model's reading of an instruction.
// When Understood is false ClarifyingQuestion is set and Parameters is
// ignored; when true Parameters holds every required field.
type ExtractionResult struct {
	Understood         bool
	ClarifyingQuestion *string
	Parameters         map[string]interface{}
}

// Request is one run-agent call
type Request struct {
	Instruction string
	App         string
	UserID      string
}

// Response is the outcome of a run-agent call that did not fail
type Response struct {
	Message            string
	Success            bool
	NeedsClarification bool
	ActionID           string
}
