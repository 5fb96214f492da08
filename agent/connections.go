package agent

import (
	"context"
	"strings"

	"github.com/itsneelabh/actionagent/catalog"
	"github.com/itsneelabh/actionagent/connector"
	"github.com/itsneelabh/actionagent/core"
)

// connectionSuccessPath is where the OAuth flow sends the user back to
const connectionSuccessPath = "/connection-success"

// ConnectResult is the outcome of a connect-app request
type ConnectResult struct {
	Connected    bool
	ConnectionID string
	RedirectURL  string
}

// Connections answers whether a user has linked an app and starts the
// linking flow. Nothing is stored locally; every call asks the connector.
type Connections struct {
	service   ConnectionService
	catalog   *catalog.Catalog
	publicURL string
	logger    core.Logger
}

// NewConnections creates the connection manager
func NewConnections(service ConnectionService, cat *catalog.Catalog, publicURL string, logger core.Logger) *Connections {
	if cat == nil {
		cat = catalog.Default()
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Connections{
		service:   service,
		catalog:   cat,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}
}

// Find returns the user's active connection for app, or nil
func (c *Connections) Find(ctx context.Context, userID, app string) (*connector.Connection, error) {
	conns, err := c.service.ListConnections(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range conns {
		if conns[i].Active() && c.catalog.SameApp(conns[i].AppName, app) {
			return &conns[i], nil
		}
	}
	return nil, nil
}

// IsConnected reports whether the user has an active connection for app.
// It has no side effects and may be polled.
func (c *Connections) IsConnected(ctx context.Context, userID, app string) (bool, error) {
	conn, err := c.Find(ctx, userID, app)
	if err != nil {
		return false, err
	}
	return conn != nil, nil
}

// Connect returns the existing connection or starts a new one
func (c *Connections) Connect(ctx context.Context, userID, app string) (*ConnectResult, error) {
	existing, err := c.Find(ctx, userID, app)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &ConnectResult{Connected: true, ConnectionID: existing.ID}, nil
	}

	req, err := c.service.InitiateConnection(ctx, userID, c.catalog.AppName(app), c.publicURL+connectionSuccessPath)
	if err != nil {
		return nil, err
	}

	c.logger.InfoWithContext(ctx, "Connection initiated", map[string]interface{}{
		"operation":     "connect_app",
		"app":           c.catalog.AppName(app),
		"connection_id": req.ConnectionID,
	})
	return &ConnectResult{
		Connected:    false,
		ConnectionID: req.ConnectionID,
		RedirectURL:  req.RedirectURL,
	}, nil
}
