package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/actionagent/core"
)

func testConfig(connectorURL, aiURL string) *core.Config {
	cfg := core.DefaultConfig()
	cfg.Connector.BaseURL = connectorURL
	cfg.Connector.APIKey = "conn-key"
	cfg.Connector.MaxRetries = 0
	cfg.AI.BaseURL = aiURL
	cfg.AI.APIKey = "ai-key"
	cfg.AI.MaxRetries = 0
	return cfg
}

func TestVerify_AllChecksPass(t *testing.T) {
	connSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/apps", r.URL.Path)
		assert.Equal(t, "conn-key", r.Header.Get("x-api-key"))
		_, _ = w.Write([]byte(`{"items": []}`))
	}))
	defer connSrv.Close()

	aiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		assert.Equal(t, "Bearer ai-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer aiSrv.Close()

	var out bytes.Buffer
	err := verify(context.Background(), &out, testConfig(connSrv.URL, aiSrv.URL))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "connector  ok")
	assert.Contains(t, out.String(), "ai         ok")
}

func TestVerify_RejectedKey(t *testing.T) {
	connSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message": "invalid api key"}`))
	}))
	defer connSrv.Close()

	aiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer aiSrv.Close()

	var out bytes.Buffer
	err := verify(context.Background(), &out, testConfig(connSrv.URL, aiSrv.URL))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
	assert.Contains(t, out.String(), "connector  FAIL")
	assert.Contains(t, out.String(), "ai         ok")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, out.String(), "actionagent version development")
}
