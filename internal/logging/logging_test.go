package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil)).With("request_id", "abc")

	ctx := ContextWithLogger(context.Background(), l)
	FromContext(ctx).Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["request_id"] != "abc" {
		t.Fatalf("expected request_id in log, got %v", entry)
	}

	fallback := slog.New(slog.NewJSONHandler(&buf, nil))
	if got := FromContext(context.Background(), fallback); got != fallback {
		t.Fatalf("expected fallback logger")
	}
}

func TestNew_FansOutByLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var debugBuf, errorBuf bytes.Buffer
	l := New(
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&errorBuf, &slog.HandlerOptions{Level: slog.LevelError}),
	).With("component", "test")

	l.Debug("quiet")
	l.Error("loud")

	if strings.Count(debugBuf.String(), "\n") != 2 {
		t.Errorf("expected both records in debug handler, got %q", debugBuf.String())
	}
	if strings.Count(errorBuf.String(), "\n") != 1 || !strings.Contains(errorBuf.String(), "loud") {
		t.Errorf("expected only the error record, got %q", errorBuf.String())
	}
	if !strings.Contains(errorBuf.String(), `"component":"test"`) {
		t.Errorf("expected attrs to propagate, got %q", errorBuf.String())
	}
	if slog.Default().Handler() == prev.Handler() {
		t.Errorf("expected New to install the default logger")
	}
}

func TestNewGormLogger(t *testing.T) {
	var buf bytes.Buffer
	gl := NewGormLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	ctx := context.Background()
	query := func() (string, int64) { return "SELECT * FROM books", 0 }

	gl.Trace(ctx, time.Now(), query, gorm.ErrRecordNotFound)
	gl.Trace(ctx, time.Now(), query, nil)
	if buf.Len() != 0 {
		t.Fatalf("expected fast and not-found queries to stay quiet, got %q", buf.String())
	}

	gl.Trace(ctx, time.Now(), query, errors.New("connection reset"))
	if !strings.Contains(buf.String(), "connection reset") || !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Fatalf("expected failed query at error level, got %q", buf.String())
	}

	buf.Reset()
	gl.Trace(ctx, time.Now().Add(-2*time.Second), query, nil)
	if !strings.Contains(buf.String(), `"level":"WARN"`) {
		t.Fatalf("expected slow query warning, got %q", buf.String())
	}
}
