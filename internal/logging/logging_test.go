package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo, true)

	ctx := ContextWithRequestID(context.Background(), "rid-123")
	l.ErrorContext(ctx, "persist_failed", map[string]any{"file": "cat.jpg"}, errors.New("disk full"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not json: %v (%q)", err, buf.String())
	}
	want := map[string]any{
		"level":      "error",
		"message":    "persist_failed",
		"request_id": "rid-123",
		"error":      "disk full",
		"file":       "cat.jpg",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %#v, want %#v", k, entry[k], v)
		}
	}
	if caller, _ := entry["caller"].(string); !strings.Contains(caller, "logging_test.go:") {
		t.Errorf("caller = %q, want logging_test.go:<line>", caller)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("missing time")
	}
}

func TestLogger_PackageFunctionsReportCaller(t *testing.T) {
	var buf bytes.Buffer
	prev := Default()
	SetDefault(New(&buf, LevelInfo, true))
	t.Cleanup(func() { SetDefault(prev) })

	InfoContext(context.Background(), "listing", nil)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not json: %v (%q)", err, buf.String())
	}
	if caller, _ := entry["caller"].(string); !strings.Contains(caller, "logging_test.go:") {
		t.Errorf("caller = %q, want logging_test.go:<line>", caller)
	}
	if _, ok := entry["request_id"]; ok {
		t.Errorf("request_id set without one in context: %v", entry)
	}
}

func TestLogger_TextSortedFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDebug, false)

	ctx := ContextWithRequestID(context.Background(), "rid-7")
	l.InfoContext(ctx, "listing", map[string]any{"zeta": 1, "alpha": "a"})

	out := buf.String()
	if !strings.Contains(out, "INF") || !strings.Contains(out, "listing") {
		t.Errorf("missing level or message: %q", out)
	}
	if !strings.Contains(out, "request_id=rid-7") {
		t.Errorf("missing request id: %q", out)
	}
	if strings.Index(out, "alpha=a") > strings.Index(out, "zeta=1") {
		t.Errorf("fields not sorted: %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("text logger wrote json: %q", out)
	}
}

func TestLogger_MinLevel(t *testing.T) {
	tests := []struct {
		name  string
		min   Level
		write func(l *Logger)
		want  bool
	}{
		{"debug suppressed at info", LevelInfo, func(l *Logger) { l.Debug("x", nil) }, false},
		{"info passes at info", LevelInfo, func(l *Logger) { l.Info("x", nil) }, true},
		{"warn suppressed at error", LevelError, func(l *Logger) { l.Warn("x", nil) }, false},
		{"error passes at error", LevelError, func(l *Logger) { l.Error("x", nil, nil) }, true},
		{"unknown level means info", Level("loud"), func(l *Logger) { l.Debug("x", nil) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.write(New(&buf, tt.min, true))
			if got := buf.Len() > 0; got != tt.want {
				t.Errorf("wrote=%v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"error":   LevelError,
		"info":    LevelInfo,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRequestIDFromContext_Missing(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
