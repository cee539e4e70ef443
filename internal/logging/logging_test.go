package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithOptions_JSONDefault(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithOptions(Options{Writer: &buf})
	log.Debug("hidden")
	log.Info("shown", slog.String("pattern", "A"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("want 1 line at info level, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if rec["pattern"] != "A" {
		t.Errorf("pattern attr = %v", rec["pattern"])
	}
}

func TestNewWithOptions_TextDebug(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithOptions(Options{Level: "DEBUG", Format: "text", Writer: &buf})
	log.Debug("visible")
	if !strings.Contains(buf.String(), "msg=visible") {
		t.Errorf("expected text debug line, got %q", buf.String())
	}
}

func TestWith_AddsAttrsToContextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), NewWithOptions(Options{Format: "text", Writer: &buf}))
	ctx = With(ctx, "request_id", "r-1")
	FromContext(ctx).Info("hello")

	if !strings.Contains(buf.String(), "request_id=r-1") {
		t.Errorf("missing request_id in %q", buf.String())
	}
}

func TestFromContext_Default(t *testing.T) {
	t.Parallel()

	if FromContext(context.Background()) != slog.Default() {
		t.Error("expected slog.Default when context has no logger")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
