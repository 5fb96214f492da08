package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/actionagent/connector"
)

func TestConnections_IsConnected(t *testing.T) {
	fake := newFakeConnector()
	fake.connections = []connector.Connection{
		{ID: "c1", AppName: "gmail", Status: connector.StatusActive},
		{ID: "c2", AppName: "GITHUB", Status: connector.StatusInitiated},
		{ID: "c3", AppName: "googledocs", Status: connector.StatusActive},
	}
	conns := NewConnections(fake, nil, "http://localhost:3000", nil)
	ctx := context.Background()

	tests := []struct {
		app  string
		want bool
	}{
		{"GMAIL", true},
		{"gmail", true},
		{"github", false},
		{"google docs", true},
		{"youtube", false},
	}
	for _, tt := range tests {
		t.Run(tt.app, func(t *testing.T) {
			got, err := conns.IsConnected(ctx, "user-1", tt.app)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	// Polling the same question is side-effect free
	before := fake.listCalls
	for i := 0; i < 3; i++ {
		got, err := conns.IsConnected(ctx, "user-1", "gmail")
		require.NoError(t, err)
		assert.True(t, got)
	}
	assert.Equal(t, before+3, fake.listCalls)
	assert.Empty(t, fake.lastRedirect)
}

func TestConnections_Connect(t *testing.T) {
	t.Run("already connected", func(t *testing.T) {
		fake := newFakeConnector().connect("GMAIL")
		conns := NewConnections(fake, nil, "http://localhost:3000", nil)

		res, err := conns.Connect(context.Background(), "user-1", "gmail")
		require.NoError(t, err)
		assert.True(t, res.Connected)
		assert.Equal(t, "conn-gmail", res.ConnectionID)
		assert.Empty(t, res.RedirectURL)
	})

	t.Run("initiates with redirect", func(t *testing.T) {
		fake := newFakeConnector()
		conns := NewConnections(fake, nil, "https://app.example.com/", nil)

		res, err := conns.Connect(context.Background(), "user-1", "google calendar")
		require.NoError(t, err)
		assert.False(t, res.Connected)
		assert.Equal(t, "pending-1", res.ConnectionID)
		assert.Contains(t, res.RedirectURL, "GOOGLECALENDAR")
		assert.Equal(t, "https://app.example.com/connection-success", fake.lastRedirect)
		assert.Equal(t, "GOOGLECALENDAR", fake.lastApp)
	})

	t.Run("list failure", func(t *testing.T) {
		fake := newFakeConnector()
		fake.listErr = errors.New("network down")
		conns := NewConnections(fake, nil, "", nil)

		_, err := conns.Connect(context.Background(), "user-1", "gmail")
		assert.Error(t, err)
	})

	t.Run("initiate failure", func(t *testing.T) {
		fake := newFakeConnector()
		fake.initiateErr = &connector.APIError{Operation: "initiate_connection", StatusCode: 404, Message: "App not found"}
		conns := NewConnections(fake, nil, "", nil)

		_, err := conns.Connect(context.Background(), "user-1", "myspace")
		require.Error(t, err)
		assert.True(t, connector.IsNotFound(err))
	})
}
