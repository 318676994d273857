package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestInitWriter_TagsService(t *testing.T) {
	var buf bytes.Buffer
	lg := InitWriter(&buf, "trader", slog.LevelInfo)

	lg.Info("tick complete", slog.String("window_id", "btc-15m-123"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if line["service"] != "trader" {
		t.Errorf("service = %v, want trader", line["service"])
	}
	if line["window_id"] != "btc-15m-123" {
		t.Errorf("window_id = %v", line["window_id"])
	}
	if line["msg"] != "tick complete" {
		t.Errorf("msg = %v", line["msg"])
	}
}

func TestInitWriter_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	lg := InitWriter(&buf, "trader", slog.LevelWarn)

	lg.Info("should be dropped")
	lg.Warn("should pass")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Error("info line emitted below the configured level")
	}
	if !strings.Contains(out, "should pass") {
		t.Error("warn line missing")
	}
}
