package logs

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_Fanout(t *testing.T) {
	SetLevel(slog.LevelInfo)
	var text, js bytes.Buffer
	logger := New(Options{Text: &text, JSON: &js})
	logger.Info("compiled", "target", "c")

	if !strings.Contains(text.String(), "msg=compiled") || !strings.Contains(text.String(), "target=c") {
		t.Errorf("text sink missing record:\n%s", text.String())
	}
	var rec map[string]any
	if err := json.Unmarshal(js.Bytes(), &rec); err != nil {
		t.Fatalf("json sink: %v (%q)", err, js.String())
	}
	if rec["msg"] != "compiled" || rec["target"] != "c" {
		t.Errorf("unexpected json record: %v", rec)
	}
}

func TestSetLevel(t *testing.T) {
	defer SetLevel(slog.LevelInfo)
	var text bytes.Buffer
	logger := New(Options{Text: &text})

	SetLevel(slog.LevelInfo)
	logger.Debug("hidden")
	if text.Len() != 0 {
		t.Errorf("debug record emitted at info level: %q", text.String())
	}

	SetLevel(slog.LevelDebug)
	logger.Debug("shown")
	if !strings.Contains(text.String(), "shown") {
		t.Errorf("debug record not emitted at debug level")
	}
	if !Enabled(logger, slog.LevelDebug) {
		t.Errorf("Enabled(debug) = false at debug level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDiscard(t *testing.T) {
	Discard().Error("nothing")
}
