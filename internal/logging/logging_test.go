package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("json", "info", &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("shown", "post_id", "p1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["msg"] != "shown" || entry["post_id"] != "p1" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNewTextDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("text", "debug", &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("token rejected", "kind", "expired")
	if !strings.Contains(buf.String(), "kind=expired") {
		t.Fatalf("expected text output with debug entry, got %q", buf.String())
	}
}

func TestNewRejectsUnknown(t *testing.T) {
	var buf bytes.Buffer
	if _, err := New("xml", "info", &buf); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	if _, err := New("json", "loud", &buf); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
