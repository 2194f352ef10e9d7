package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFileLoggerWritesJSON(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFileLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	logger.Info("audit started", "thought_number", 1)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "engine.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log entry is not valid JSON: %v", err)
	}
	if entry["msg"] != "audit started" {
		t.Errorf("msg = %v, want %q", entry["msg"], "audit started")
	}
	if entry["thought_number"] != float64(1) {
		t.Errorf("thought_number = %v, want 1", entry["thought_number"])
	}
}

func TestChildLoggerInheritsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelDebug)

	child := logger.WithSession("sess-1").WithComponent("queue").WithJob("job-9")
	child.Warn("job retried")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry["session_id"] != "sess-1" {
		t.Errorf("session_id = %v", entry["session_id"])
	}
	if entry["component"] != "queue" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["job_id"] != "job-9" {
		t.Errorf("job_id = %v", entry["job_id"])
	}
}

func TestChildLoggerDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelDebug)

	_ = logger.WithSession("sess-1")
	logger.Info("parent entry")

	if strings.Contains(buf.String(), "sess-1") {
		t.Error("parent logger should not carry the child's session attribute")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelWarn)

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("visible")
	logger.Error("also visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("entries below WARN should be filtered")
	}
	if !strings.Contains(out, "visible") {
		t.Error("WARN and ERROR entries should be written")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNopDiscards(t *testing.T) {
	logger := Nop()
	logger.Error("nothing happens")
	if err := logger.Close(); err != nil {
		t.Errorf("Close on nop logger failed: %v", err)
	}
}
