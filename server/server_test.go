package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/actionagent/agent"
	"github.com/itsneelabh/actionagent/connector"
	"github.com/itsneelabh/actionagent/core"
	"github.com/itsneelabh/actionagent/telemetry"
)

type stubAgent struct {
	resp    *agent.Response
	err     error
	lastReq agent.Request
	calls   int
}

func (a *stubAgent) Run(ctx context.Context, req agent.Request) (*agent.Response, error) {
	a.calls++
	a.lastReq = req
	switch {
	case strings.TrimSpace(req.Instruction) == "":
		return nil, &agent.InputError{Field: "instruction"}
	case strings.TrimSpace(req.App) == "":
		return nil, &agent.InputError{Field: "app"}
	case strings.TrimSpace(req.UserID) == "":
		return nil, &agent.InputError{Field: "entityId"}
	}
	return a.resp, a.err
}

type stubConnections struct {
	connected  bool
	checkErr   error
	result     *agent.ConnectResult
	connectErr error
}

func (c *stubConnections) IsConnected(ctx context.Context, userID, app string) (bool, error) {
	return c.connected, c.checkErr
}

func (c *stubConnections) Connect(ctx context.Context, userID, app string) (*agent.ConnectResult, error) {
	return c.result, c.connectErr
}

func newTestServer(t *testing.T, a Agent, conns ConnectionManager, mutate func(*core.Config), opts ...Option) *httptest.Server {
	t.Helper()
	cfg := core.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	s, err := New(cfg, a, conns, opts...)
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, &stubAgent{}, &stubConnections{})
	assert.ErrorIs(t, err, core.ErrMissingConfiguration)

	_, err = New(core.DefaultConfig(), nil, &stubConnections{})
	assert.ErrorIs(t, err, core.ErrMissingConfiguration)
}

func TestCheckConnection(t *testing.T) {
	t.Run("connected", func(t *testing.T) {
		ts := newTestServer(t, &stubAgent{}, &stubConnections{connected: true}, nil)

		resp, err := http.Get(ts.URL + "/check-connection/user-1/GMAIL")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get(core.RequestIDHeader))

		body := decode(t, resp)
		assert.Equal(t, true, body["connected"])
		assert.Equal(t, "gmail", body["app"])
		assert.Equal(t, "user-1", body["userId"])
	})

	t.Run("error reads as not connected", func(t *testing.T) {
		ts := newTestServer(t, &stubAgent{}, &stubConnections{checkErr: errors.New("connector down")}, nil)

		resp, err := http.Get(ts.URL + "/api/check-connect-app/user-1/github")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, false, decode(t, resp)["connected"])
	})

	t.Run("missing parameter", func(t *testing.T) {
		ts := newTestServer(t, &stubAgent{}, &stubConnections{}, nil)

		resp, err := http.Get(ts.URL + "/check-connection/%20/github")
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decode(t, resp)
		assert.Equal(t, "Missing parameters", body["error"])
		assert.Equal(t, false, body["connected"])
	})
}

func TestConnectApp(t *testing.T) {
	t.Run("already connected", func(t *testing.T) {
		ts := newTestServer(t, &stubAgent{}, &stubConnections{result: &agent.ConnectResult{Connected: true, ConnectionID: "c1"}}, nil)

		resp, err := http.Get(ts.URL + "/connect-app/user-1/gmail")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode(t, resp)
		assert.Equal(t, true, body["connected"])
		assert.Equal(t, "c1", body["connectionId"])
		assert.NotContains(t, body, "redirectUrl")
	})

	t.Run("initiated", func(t *testing.T) {
		ts := newTestServer(t, &stubAgent{}, &stubConnections{result: &agent.ConnectResult{
			ConnectionID: "pending", RedirectURL: "https://auth.example.com/x",
		}}, nil)

		resp, err := http.Get(ts.URL + "/api/connect-app/user-1/gmail")
		require.NoError(t, err)
		body := decode(t, resp)
		assert.Equal(t, false, body["connected"])
		assert.Equal(t, "https://auth.example.com/x", body["redirectUrl"])
		assert.Equal(t, "pending", body["connectionId"])
	})

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", &connector.APIError{Operation: "initiate_connection", StatusCode: 404, Message: "App not found"}, "App not found. Please ensure the app is enabled in your Composio dashboard."},
		{"unauthorized", &connector.APIError{Operation: "initiate_connection", StatusCode: 401, Message: "bad key"}, "Invalid API key. Please check your Composio API key."},
		{"unavailable", &connector.APIError{Operation: "initiate_connection", StatusCode: 503, Message: "down"}, "The connection service is temporarily unavailable. Please try again later."},
		{"other", errors.New("weird"), "Failed to connect app"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &stubAgent{}, &stubConnections{connectErr: tt.err}, nil)

			resp, err := http.Get(ts.URL + "/connect-app/user-1/myspace")
			require.NoError(t, err)
			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			body := decode(t, resp)
			assert.Equal(t, tt.want, body["error"])
			assert.Equal(t, false, body["connected"])
			assert.NotContains(t, body, "details", "details are only sent in development")
		})
	}
}

func TestRunAgent(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		a := &stubAgent{resp: &agent.Response{Success: true, Message: "Email sent to John."}}
		ts := newTestServer(t, a, &stubConnections{}, nil)

		resp := postJSON(t, ts.URL+"/run-agent", `{"instruction": "send email to john@test.com", "app": "gmail", "entityId": "user-1"}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		body := decode(t, resp)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "Email sent to John.", body["response"])
		assert.NotContains(t, body, "needsClarification")
		assert.Equal(t, agent.Request{Instruction: "send email to john@test.com", App: "gmail", UserID: "user-1"}, a.lastReq)
	})

	t.Run("not connected is a 200", func(t *testing.T) {
		a := &stubAgent{resp: &agent.Response{Success: false, Message: "You have not connected the GITHUB app. Please connect it first."}}
		ts := newTestServer(t, a, &stubConnections{}, nil)

		resp := postJSON(t, ts.URL+"/api/run-agent", `{"instruction": "star facebook/react", "app": "github", "entityId": "user-1"}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode(t, resp)
		assert.Equal(t, false, body["success"])
	})

	t.Run("clarification", func(t *testing.T) {
		a := &stubAgent{resp: &agent.Response{Success: true, NeedsClarification: true, Message: "Who is the recipient?"}}
		ts := newTestServer(t, a, &stubConnections{}, nil)

		resp := postJSON(t, ts.URL+"/run-agent", `{"instruction": "send email", "app": "gmail", "entityId": "user-1"}`)
		body := decode(t, resp)
		assert.Equal(t, true, body["needsClarification"])
		assert.Equal(t, "Who is the recipient?", body["response"])
	})

	t.Run("invalid JSON", func(t *testing.T) {
		a := &stubAgent{}
		ts := newTestServer(t, a, &stubConnections{}, nil)

		resp := postJSON(t, ts.URL+"/run-agent", `{"instruction": `)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decode(t, resp)
		assert.Equal(t, invalidJSONMessage, body["response"])
		assert.Equal(t, false, body["success"])
		assert.Zero(t, a.calls)
	})

	fieldTests := []struct {
		body  string
		field string
	}{
		{`{"app": "gmail", "entityId": "u"}`, "instruction"},
		{`{"instruction": "hi", "app": 42, "entityId": "u"}`, "app"},
		{`{"instruction": "hi", "app": "gmail", "entityId": ""}`, "entityId"},
	}
	for _, tt := range fieldTests {
		t.Run("missing "+tt.field, func(t *testing.T) {
			ts := newTestServer(t, &stubAgent{}, &stubConnections{}, nil)

			resp := postJSON(t, ts.URL+"/run-agent", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decode(t, resp)
			assert.Equal(t, fmt.Sprintf("Missing or invalid '%s' parameter.", tt.field), body["response"])
			assert.NotEmpty(t, body["receivedKeys"])
		})
	}

	t.Run("classified failure", func(t *testing.T) {
		a := &stubAgent{err: fmt.Errorf("%w for: do a dance", core.ErrActionNotFound)}
		ts := newTestServer(t, a, &stubConnections{}, nil)

		resp := postJSON(t, ts.URL+"/run-agent", `{"instruction": "do a dance", "app": "github", "entityId": "u"}`)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		body := decode(t, resp)
		assert.Equal(t, "Something went wrong. I couldn't determine which action to perform. Please be more specific.", body["response"])
		assert.Equal(t, false, body["success"])
		assert.NotContains(t, body, "error")
	})

	t.Run("error detail in development", func(t *testing.T) {
		a := &stubAgent{err: errors.New("kaboom")}
		ts := newTestServer(t, a, &stubConnections{}, func(c *core.Config) { c.Development.Enabled = true })

		resp := postJSON(t, ts.URL+"/run-agent", `{"instruction": "x", "app": "github", "entityId": "u"}`)
		body := decode(t, resp)
		assert.Equal(t, "kaboom", body["error"])
	})
}

func TestPreflight(t *testing.T) {
	for _, corsEnabled := range []bool{true, false} {
		t.Run(fmt.Sprintf("cors enabled=%v", corsEnabled), func(t *testing.T) {
			ts := newTestServer(t, &stubAgent{}, &stubConnections{}, func(c *core.Config) { c.HTTP.CORS.Enabled = corsEnabled })

			req, err := http.NewRequest(http.MethodOptions, ts.URL+"/run-agent", nil)
			require.NoError(t, err)
			req.Header.Set("Origin", "http://localhost:3000")

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
			assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
			assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Content-Type")
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	metrics := telemetry.NewMetrics("test")
	metrics.ObserveRequest("gmail", "success")

	failing := false
	ts := newTestServer(t, &stubAgent{}, &stubConnections{}, nil,
		WithMetrics(metrics),
		WithHealthCheck("connector", func(ctx context.Context) error {
			if failing {
				return errors.New("unreachable")
			}
			return nil
		}),
	)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, map[string]interface{}{"connector": "ok"}, body["dependencies"])

	failing = true
	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "degraded", decode(t, resp)["status"])

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `test_agent_requests_total{app="gmail",outcome="success"} 1`)
}
