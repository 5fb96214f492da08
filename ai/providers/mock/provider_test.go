package mock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/actionagent/ai"
	"github.com/itsneelabh/actionagent/core"
)

func TestFactory(t *testing.T) {
	factory := &Factory{}
	assert.Equal(t, "mock", factory.Name())
	assert.NotEmpty(t, factory.Description())

	client, err := factory.Create(&ai.Config{Model: "test-model"})
	require.NoError(t, err)
	require.NotNil(t, client)

	resp, err := client.GenerateResponse(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "test-model", resp.Model)
	assert.Equal(t, "{}", resp.Content)
}

func TestRegisteredWithAI(t *testing.T) {
	client, err := ai.NewClient(&ai.Config{Provider: "mock"})
	require.NoError(t, err)
	assert.IsType(t, &Client{}, client)
}

func TestClient_ScriptedResponses(t *testing.T) {
	c := NewClient(nil, "first", "second")
	ctx := context.Background()

	for _, want := range []string{"first", "second", "second"} {
		resp, err := c.GenerateResponse(ctx, "p", nil)
		require.NoError(t, err)
		assert.Equal(t, want, resp.Content)
	}
	assert.Equal(t, 3, c.CallCount())

	c.SetResponses("again")
	resp, err := c.GenerateResponse(ctx, "last", &core.AIOptions{Model: "m", Temperature: 0.1})
	require.NoError(t, err)
	assert.Equal(t, "again", resp.Content)
	assert.Equal(t, "m", resp.Model)
	assert.Equal(t, "last", c.LastPrompt())
	assert.InDelta(t, 0.1, c.LastOptions().Temperature, 1e-6)
	assert.Len(t, c.Prompts(), 4)
}

func TestClient_Error(t *testing.T) {
	c := NewClient(nil, "ok")
	boom := errors.New("boom")
	c.SetError(boom)

	_, err := c.GenerateResponse(context.Background(), "p", nil)
	assert.ErrorIs(t, err, boom)

	c.SetError(nil)
	resp, err := c.GenerateResponse(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
}

func TestClient_CanceledContext(t *testing.T) {
	c := NewClient(nil, "ok")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GenerateResponse(ctx, "p", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_Concurrent(t *testing.T) {
	c := NewClient(nil, "x")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.GenerateResponse(context.Background(), "p", nil)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, c.CallCount())
}
