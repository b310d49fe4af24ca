package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{in: "debug", want: zerolog.DebugLevel},
		{in: "INFO", want: zerolog.InfoLevel},
		{in: "warn", want: zerolog.WarnLevel},
		{in: "warning", want: zerolog.WarnLevel},
		{in: "error", want: zerolog.ErrorLevel},
		{in: "", want: zerolog.InfoLevel},
		{in: "verbose", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWithComponent(t *testing.T) {
	defer Init("info", false)

	var buf bytes.Buffer
	InitWithWriter("debug", false, &buf)

	WithComponent("recorder").Info().Str("path", "out.mp4").Msg("Recording started")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v: %s", err, buf.String())
	}
	if entry["component"] != "recorder" {
		t.Errorf("component = %v, want recorder", entry["component"])
	}
	if entry["path"] != "out.mp4" {
		t.Errorf("path = %v, want out.mp4", entry["path"])
	}
	if entry["message"] != "Recording started" {
		t.Errorf("message = %v", entry["message"])
	}
}

func TestInitLevelFilters(t *testing.T) {
	defer Init("info", false)

	var buf bytes.Buffer
	InitWithWriter("warn", false, &buf)

	WithComponent("test").Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("info message logged at warn level: %s", buf.String())
	}

	WithComponent("test").Warn().Msg("shown")
	if buf.Len() == 0 {
		t.Error("warn message not logged at warn level")
	}
}
