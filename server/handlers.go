package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/itsneelabh/actionagent/agent"
	"github.com/itsneelabh/actionagent/connector"
	"github.com/itsneelabh/actionagent/core"
)

const invalidJSONMessage = "Invalid request format. Please ensure you're sending valid JSON."

type checkConnectionResponse struct {
	Connected bool   `json:"connected"`
	App       string `json:"app,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Error     string `json:"error,omitempty"`
}

type connectAppResponse struct {
	Connected    bool   `json:"connected"`
	ConnectionID string `json:"connectionId,omitempty"`
	RedirectURL  string `json:"redirectUrl,omitempty"`
	Message      string `json:"message,omitempty"`
	Error        string `json:"error,omitempty"`
	Details      string `json:"details,omitempty"`
}

type runAgentResponse struct {
	Response           string   `json:"response"`
	Success            bool     `json:"success"`
	NeedsClarification bool     `json:"needsClarification,omitempty"`
	Error              string   `json:"error,omitempty"`
	ReceivedKeys       []string `json:"receivedKeys,omitempty"`
}

// handleCheckConnection never fails with 5xx: connector errors read as
// "not connected" so polling clients keep working.
func (s *Server) handleCheckConnection(w http.ResponseWriter, r *http.Request) {
	userID, app := pathParams(r)
	if userID == "" || app == "" {
		s.writeJSON(w, r, http.StatusBadRequest, checkConnectionResponse{Error: "Missing parameters"})
		return
	}

	connected, err := s.connections.IsConnected(r.Context(), userID, app)
	if err != nil {
		s.logger.WarnWithContext(r.Context(), "Connection check failed", map[string]interface{}{
			"operation": "check_connection",
			"app":       app,
			"error":     err.Error(),
		})
		connected = false
	}

	s.writeJSON(w, r, http.StatusOK, checkConnectionResponse{
		Connected: connected,
		App:       strings.ToLower(app),
		UserID:    userID,
	})
}

func (s *Server) handleConnectApp(w http.ResponseWriter, r *http.Request) {
	userID, app := pathParams(r)
	if userID == "" || app == "" {
		s.writeJSON(w, r, http.StatusBadRequest, connectAppResponse{Error: "Missing userId or app parameter"})
		return
	}

	res, err := s.connections.Connect(r.Context(), userID, app)
	if err != nil {
		s.logger.ErrorWithContext(r.Context(), "Connect app failed", map[string]interface{}{
			"operation": "connect_app",
			"app":       app,
			"error":     err.Error(),
		})
		resp := connectAppResponse{Error: connectErrorMessage(err)}
		if s.detailedErrors() {
			resp.Details = err.Error()
		}
		s.writeJSON(w, r, http.StatusInternalServerError, resp)
		return
	}

	if res.Connected {
		s.writeJSON(w, r, http.StatusOK, connectAppResponse{
			Connected:    true,
			ConnectionID: res.ConnectionID,
			Message:      "App already connected",
		})
		return
	}
	s.writeJSON(w, r, http.StatusOK, connectAppResponse{
		Connected:    false,
		ConnectionID: res.ConnectionID,
		RedirectURL:  res.RedirectURL,
		Message:      "Please complete authentication in the opened window",
	})
}

// connectErrorMessage explains a failed connect-app call
func connectErrorMessage(err error) string {
	text := strings.ToLower(err.Error())
	switch {
	case connector.IsNotFound(err) || strings.Contains(text, "not found"):
		return "App not found. Please ensure the app is enabled in your Composio dashboard."
	case errors.Is(err, core.ErrInvalidAPIKey) || strings.Contains(text, "unauthorized"):
		return "Invalid API key. Please check your Composio API key."
	case core.IsUpstreamError(err) || core.IsRetryable(err):
		return "The connection service is temporarily unavailable. Please try again later."
	}
	return "Failed to connect app"
}

func (s *Server) handleRunAgent(w http.ResponseWriter, r *http.Request) {
	if limit := s.config.HTTP.MaxBodyBytes; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		resp := runAgentResponse{Response: invalidJSONMessage}
		if err != nil && s.detailedErrors() {
			resp.Error = err.Error()
		}
		s.writeJSON(w, r, http.StatusBadRequest, resp)
		return
	}

	req := agent.Request{
		Instruction: stringField(body, "instruction"),
		App:         stringField(body, "app"),
		UserID:      stringField(body, "entityId"),
	}

	resp, err := s.agent.Run(r.Context(), req)
	if err != nil {
		var inputErr *agent.InputError
		if errors.As(err, &inputErr) {
			s.writeJSON(w, r, http.StatusBadRequest, runAgentResponse{
				Response:     inputErr.Error(),
				ReceivedKeys: keys(body),
			})
			return
		}

		out := runAgentResponse{Response: agent.UserMessage(err)}
		if s.detailedErrors() {
			out.Error = err.Error()
		}
		s.writeJSON(w, r, http.StatusInternalServerError, out)
		return
	}

	s.writeJSON(w, r, http.StatusOK, runAgentResponse{
		Response:           resp.Message,
		Success:            resp.Success,
		NeedsClarification: resp.NeedsClarification,
	})
}

// preflight answers OPTIONS on any path with permissive CORS headers.
// It only sees requests the configured CORS middleware let through.
func (s *Server) preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		h := w.Header()
		if h.Get("Access-Control-Allow-Origin") == "" {
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		w.WriteHeader(http.StatusOK)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	deps := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	s.writeJSON(w, r, code, map[string]interface{}{
		"status":       status,
		"service":      s.config.Name,
		"uptime":       time.Since(s.startedAt).Round(time.Second).String(),
		"dependencies": deps,
	})
}

func (s *Server) detailedErrors() bool {
	return s.config.Development.Enabled || s.config.Development.ErrorDetails
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent
		s.logger.ErrorWithContext(r.Context(), "Failed to encode response", map[string]interface{}{
			"path":  r.URL.Path,
			"error": err.Error(),
		})
	}
}

func pathParams(r *http.Request) (userID, app string) {
	return strings.TrimSpace(chi.URLParam(r, "userId")), strings.TrimSpace(chi.URLParam(r, "app"))
}

// stringField returns body[key] when it is a string; other types read as empty
func stringField(body map[string]interface{}, key string) string {
	s, _ := body[key].(string)
	return s
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
