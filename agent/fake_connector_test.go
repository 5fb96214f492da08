package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/itsneelabh/actionagent/connector"
)

// fakeConnector is an in-memory Connector that records calls
type fakeConnector struct {
	mu sync.Mutex

	connections []connector.Connection
	listErr     error

	initiated   *connector.ConnectionRequest
	initiateErr error

	searchResults []connector.ActionSummary
	searchErr     error

	descriptions map[string]*connector.ActionDescription
	describeErr  error

	executeResult map[string]interface{}
	executeErr    error
	executeHook   func(ctx context.Context)

	listCalls     int
	searchCalls   int
	describeCalls int
	executeCalls  int
	lastParams    map[string]interface{}
	lastAction    string
	lastRedirect  string
	lastApp       string
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{
		descriptions:  map[string]*connector.ActionDescription{},
		executeResult: map[string]interface{}{"successful": true, "data": map[string]interface{}{}},
	}
}

func (f *fakeConnector) connect(app string) *fakeConnector {
	f.connections = append(f.connections, connector.Connection{
		ID:      "conn-" + strings.ToLower(app),
		AppName: app,
		Status:  connector.StatusActive,
	})
	return f
}

func (f *fakeConnector) ListConnections(ctx context.Context, userID string) ([]connector.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]connector.Connection(nil), f.connections...), nil
}

func (f *fakeConnector) InitiateConnection(ctx context.Context, userID, app, redirectURL string) (*connector.ConnectionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastApp = app
	f.lastRedirect = redirectURL
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	if f.initiated != nil {
		return f.initiated, nil
	}
	return &connector.ConnectionRequest{
		RedirectURL:  "https://auth.example.com/oauth?app=" + app,
		ConnectionID: "pending-1",
		Status:       connector.StatusInitiated,
	}, nil
}

func (f *fakeConnector) SearchActions(ctx context.Context, useCase, app string) ([]connector.ActionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	return f.searchResults, f.searchErr
}

func (f *fakeConnector) DescribeAction(ctx context.Context, actionID, userID string) (*connector.ActionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.describeCalls++
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	if d, ok := f.descriptions[actionID]; ok {
		return d, nil
	}
	return &connector.ActionDescription{
		ActionID:    actionID,
		Description: actionID,
		Properties:  map[string]interface{}{},
	}, nil
}

func (f *fakeConnector) ExecuteAction(ctx context.Context, userID, actionID string, params map[string]interface{}) (map[string]interface{}, error) {
	if f.executeHook != nil {
		f.executeHook(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executeCalls++
	f.lastAction = actionID
	f.lastParams = params
	if f.executeErr != nil {
		return nil, f.executeErr
	}
	return f.executeResult, nil
}

var _ Connector = (*fakeConnector)(nil)
