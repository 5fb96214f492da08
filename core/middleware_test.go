package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	NoOpLogger
	mu      sync.Mutex
	entries []recordedEntry
}

type recordedEntry struct {
	level  string
	msg    string
	fields map[string]interface{}
}

func (l *recordingLogger) add(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, recordedEntry{level: level, msg: msg, fields: fields})
}

func (l *recordingLogger) InfoWithContext(_ context.Context, msg string, fields map[string]interface{}) {
	l.add("INFO", msg, fields)
}

func (l *recordingLogger) WarnWithContext(_ context.Context, msg string, fields map[string]interface{}) {
	l.add("WARN", msg, fields)
}

func (l *recordingLogger) ErrorWithContext(_ context.Context, msg string, fields map[string]interface{}) {
	l.add("ERROR", msg, fields)
}

func TestRequestIDMiddlewareGeneratesID(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	_, err := uuid.Parse(seen)
	assert.NoError(t, err, "generated request id should be a UUID")
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDMiddlewareHonoursHeader(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "upstream-id")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "upstream-id", seen)
}

func TestRequestIDFromContextEmpty(t *testing.T) {
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
}

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		devMode   bool
		status    int
		wantLevel string
	}{
		{"production success is silent", false, http.StatusOK, ""},
		{"dev mode logs success", true, http.StatusOK, "INFO"},
		{"client error warns", false, http.StatusBadRequest, "WARN"},
		{"server error", false, http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &recordingLogger{}
			handler := LoggingMiddleware(logger, tt.devMode, time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/run-agent", nil))

			if tt.wantLevel == "" {
				assert.Empty(t, logger.entries)
				return
			}
			if assert.Len(t, logger.entries, 1) {
				entry := logger.entries[0]
				assert.Equal(t, tt.wantLevel, entry.level)
				assert.Equal(t, tt.status, entry.fields["status"])
				assert.Equal(t, "/run-agent", entry.fields["path"])
				assert.Equal(t, "http_request", entry.fields["operation"])
			}
		})
	}
}

func TestLoggingMiddlewareSlowRequest(t *testing.T) {
	logger := &recordingLogger{}
	handler := LoggingMiddleware(logger, false, 5*time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if assert.Len(t, logger.entries, 1) {
		assert.Equal(t, "HTTP request slow", logger.entries[0].msg)
	}
}
