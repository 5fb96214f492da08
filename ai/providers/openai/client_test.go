package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/actionagent/ai"
	"github.com/itsneelabh/actionagent/ai/providers"
	"github.com/itsneelabh/actionagent/core"
	"github.com/itsneelabh/actionagent/telemetry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewClient("test-key", server.URL, nil)
	c.RetryDelay = time.Millisecond
	return c
}

func writeCompletion(w http.ResponseWriter, content, finish string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ChatResponse{
		Model: "served-model",
		Choices: []Choice{{
			Message:      Message{Role: "assistant", Content: content},
			FinishReason: finish,
		}},
		Usage: Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	})
}

func TestGenerateResponse_Success(t *testing.T) {
	var got ChatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeCompletion(w, `{"understood":true}`, "stop")
	})

	resp, err := c.GenerateResponse(context.Background(), "extract this", &core.AIOptions{
		Temperature: 0.1,
		MaxTokens:   1000,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"understood":true}`, resp.Content)
	assert.Equal(t, "served-model", resp.Model)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	assert.Equal(t, DefaultModel, got.Model)
	assert.InDelta(t, 0.1, got.Temperature, 1e-6)
	assert.Equal(t, 1000, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, ai.DefaultSystemPrompt, got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "extract this", got.Messages[1].Content)
}

func TestGenerateResponse_Unauthorized(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	})

	_, err := c.GenerateResponse(context.Background(), "p", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidAPIKey)
	assert.True(t, providers.IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "auth failures are not retried")
}

func TestGenerateResponse_RetriesRateLimit(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeCompletion(w, "hello", "stop")
	})

	resp, err := c.GenerateResponse(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGenerateResponse_ServerErrorExhaustsRetries(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})
	c.MaxRetries = 1

	_, err := c.GenerateResponse(context.Background(), "p", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, core.ErrMaxRetriesExceeded)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGenerateResponse_EmptyChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := c.GenerateResponse(context.Background(), "p", nil)
	assert.ErrorIs(t, err, core.ErrUpstreamUnavailable)
}

func TestGenerateResponse_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := c.GenerateResponse(context.Background(), "p", nil)
	assert.ErrorIs(t, err, core.ErrUpstreamUnavailable)
}

func TestGenerateResponse_MissingKey(t *testing.T) {
	c := NewClient("", "http://127.0.0.1:0", nil)
	_, err := c.GenerateResponse(context.Background(), "p", nil)
	assert.ErrorIs(t, err, core.ErrInvalidAPIKey)
}

func TestGenerateResponse_RecordsUpstreamMetrics(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w, "ok", "length")
	})
	c.Metrics = telemetry.NewMetrics("test")

	resp, err := c.GenerateResponse(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.Equal(t, FinishReasonLength, resp.FinishReason)

	families, err := c.Metrics.Registry().Gather()
	require.NoError(t, err)
	found := false
	for _, f := range families {
		if f.GetName() == "test_upstream_requests_total" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestFactory_Create(t *testing.T) {
	f := &Factory{}
	_, err := f.Create(&ai.Config{})
	assert.ErrorIs(t, err, core.ErrMissingConfiguration)

	client, err := f.Create(&ai.Config{
		APIKey:      "k",
		BaseURL:     "https://example.test/v1/",
		Model:       "m",
		Temperature: 0.7,
		MaxTokens:   300,
		MaxRetries:  4,
		Timeout:     5 * time.Second,
	})
	require.NoError(t, err)

	c := client.(*Client)
	assert.Equal(t, "https://example.test/v1", c.baseURL)
	assert.Equal(t, "m", c.DefaultModel)
	assert.Equal(t, 300, c.DefaultMaxTokens)
	assert.Equal(t, 4, c.MaxRetries)
	assert.Equal(t, 5*time.Second, c.HTTPClient.Timeout)
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	require.NoError(t, c.Ping(context.Background()))

	c.apiKey = "wrong"
	assert.ErrorIs(t, c.Ping(context.Background()), core.ErrInvalidAPIKey)
}
