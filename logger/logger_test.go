package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestBasicLoggerWritesArgs(t *testing.T) {
	var buf bytes.Buffer
	lgr := &BasicLogger{Writer: &buf}

	lgr.Info("deal saved", "deal_id", "deal-1")
	output := buf.String()
	if !strings.Contains(output, "[INFO] deal saved") {
		t.Fatalf("expected output to contain message, got %q", output)
	}
	if !strings.Contains(output, "deal_id=deal-1") {
		t.Fatalf("expected output to include args, got %q", output)
	}
}

func TestBasicLoggerWithFieldsAndName(t *testing.T) {
	var buf bytes.Buffer
	lgr := (&BasicLogger{Writer: &buf}).Named("lifecycle")
	withFields := lgr.WithFields(map[string]any{
		"org_id": "org-1",
	})

	withFields.Debug("check", "allowed", true)
	output := buf.String()
	if !strings.Contains(output, "lifecycle: check") {
		t.Fatalf("expected logger name in output, got %q", output)
	}
	if !strings.Contains(output, "org_id=org-1") || !strings.Contains(output, "allowed=true") {
		t.Fatalf("expected fields and args, got %q", output)
	}
}

func TestBasicLoggerHonorsMinLevel(t *testing.T) {
	var buf bytes.Buffer
	lgr := &BasicLogger{Writer: &buf, MinLevel: LevelWarn}

	lgr.Info("skipped")
	lgr.Warn("kept")
	output := buf.String()
	if strings.Contains(output, "skipped") {
		t.Fatalf("expected info to be filtered, got %q", output)
	}
	if !strings.Contains(output, "[WARN] kept") {
		t.Fatalf("expected warn entry, got %q", output)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("WARNING") != LevelWarn {
		t.Fatalf("expected warn level")
	}
	if ParseLevel("unknown") != LevelInfo {
		t.Fatalf("expected info fallback")
	}
}
