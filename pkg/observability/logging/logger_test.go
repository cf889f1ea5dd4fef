// Copyright File Registry Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", Output: &buf})
	l.Info("File registered", "id", 1)
	l.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if rec["msg"] != "File registered" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec["id"] != float64(1) {
		t.Errorf("id = %v", rec["id"])
	}
}

func TestWithAndContext(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: "debug", Format: "text", Output: &buf})
	reqLogger := base.With("request_id", "req-1")

	ctx := NewContext(context.Background(), reqLogger)
	FromContext(ctx, base).Info("hello")
	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Errorf("expected request_id attr, got %q", buf.String())
	}

	if got := FromContext(context.Background(), base); got != base {
		t.Error("expected fallback logger for empty context")
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger should not be enabled for errors")
	}
}
