package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// ProductionLogger writes structured logs as JSON (production, Kubernetes)
// or as single human-readable lines (local development).
//
// It is safe for concurrent use. Loggers derived with WithComponent share
// the parent's output and level.
type ProductionLogger struct {
	level       string
	format      string
	serviceName string
	component   string
	timeFormat  string
	output      io.Writer
	mu          *sync.Mutex
}

var levelRank = map[string]int{
	"DEBUG": 0,
	"INFO":  1,
	"WARN":  2,
	"ERROR": 3,
}

// NewProductionLogger creates a logger from the logging configuration.
func NewProductionLogger(cfg LoggingConfig, serviceName string) *ProductionLogger {
	format := cfg.Format
	if format == "" {
		format = "json"
	}
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339Nano
	}

	var out io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}

	return &ProductionLogger{
		level:       strings.ToUpper(cfg.Level),
		format:      format,
		serviceName: serviceName,
		component:   "app",
		timeFormat:  timeFormat,
		output:      out,
		mu:          &sync.Mutex{},
	}
}

// WithComponent returns a logger that tags entries with the given component
func (l *ProductionLogger) WithComponent(component string) Logger {
	clone := *l
	clone.component = component
	return &clone
}

// SetOutput changes the output writer (useful for testing)
func (l *ProductionLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

func (l *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	l.log(context.Background(), "INFO", msg, fields)
}

func (l *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	l.log(context.Background(), "WARN", msg, fields)
}

func (l *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	l.log(context.Background(), "ERROR", msg, fields)
}

func (l *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	l.log(context.Background(), "DEBUG", msg, fields)
}

func (l *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(ctx, "INFO", msg, fields)
}

func (l *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(ctx, "WARN", msg, fields)
}

func (l *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(ctx, "ERROR", msg, fields)
}

func (l *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(ctx, "DEBUG", msg, fields)
}

func (l *ProductionLogger) shouldLog(level string) bool {
	current, ok1 := levelRank[l.level]
	message, ok2 := levelRank[level]
	if !ok1 || !ok2 {
		return true
	}
	return message >= current
}

func (l *ProductionLogger) log(ctx context.Context, level, msg string, fields map[string]interface{}) {
	if !l.shouldLog(level) {
		return
	}

	entry := make(map[string]interface{}, len(fields)+8)
	for k, v := range fields {
		entry[k] = v
	}
	if ctx != nil {
		if id := RequestIDFromContext(ctx); id != "" {
			entry["request_id"] = id
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			entry["trace_id"] = sc.TraceID().String()
			entry["span_id"] = sc.SpanID().String()
		}
	}

	timestamp := time.Now().Format(l.timeFormat)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.format == "json" {
		entry["timestamp"] = timestamp
		entry["level"] = level
		entry["service"] = l.serviceName
		entry["component"] = l.component
		entry["message"] = msg
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(l.output, string(data))
		}
		return
	}

	keys := make([]string, 0, len(entry))
	for k := range entry {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry[k])
	}
	fmt.Fprintf(l.output, "%s [%s] [%s:%s] %s%s\n",
		timestamp, level, l.serviceName, l.component, msg, b.String())
}

// TruncateForLog shortens user content before it is logged
func TruncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
