package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBuffered(level slog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Level: level, Output: &buf, Component: ComponentServices}), &buf
}

func TestLoggerStampsComponentOnce(t *testing.T) {
	l, buf := newBuffered(slog.LevelInfo)
	l.WithComponent(ComponentSession).Info("loaded", FieldYear, 2024)
	out := buf.String()
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=session") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo, "junk": slog.LevelInfo}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Output: &buf})
	l.Info("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("expected JSON output, got %q", buf.String())
	}
}

func TestMiddlewareAndFromContext(t *testing.T) {
	l, buf := newBuffered(slog.LevelInfo)
	h := Middleware(l)(RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Fatalf("request id missing: %q", buf.String())
	}
	if FromContext(context.Background()) == nil {
		t.Fatalf("expected default logger")
	}
}

func TestStructuredLogger(t *testing.T) {
	l, buf := newBuffered(slog.LevelInfo)
	sl := NewStructuredLogger(l)
	r := httptest.NewRequest(http.MethodGet, "/api/periods", nil)
	sl.LogHTTPEnd(context.Background(), r, 502, 12, "127.0.0.1")
	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Fatalf("5xx must log at error: %q", buf.String())
	}
	buf.Reset()
	sl.LogError(context.Background(), "failed", errors.New("boom"), ComponentRemote, OpLoad, nil)
	if !strings.Contains(buf.String(), "error=boom") || !strings.Contains(buf.String(), "component=remote") {
		t.Fatalf("unexpected error log: %q", buf.String())
	}
}
