package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		result := test.level.String()
		if result != test.expected {
			t.Errorf("LogLevel(%d).String() = %s, expected %s", test.level, result, test.expected)
		}
	}
}

func TestLogLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{LogLevel(999), slog.LevelInfo},
	}

	for _, test := range tests {
		result := test.level.SlogLevel()
		if result != test.expected {
			t.Errorf("LogLevel(%d).SlogLevel() = %v, expected %v", test.level, result, test.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tc := range tests {
		got, err := ParseLevel(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestInit_TextFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: LevelInfo, Output: &buf})

	Debug("Test", "hidden %d", 1)
	Info("Test", "visible %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message should be filtered, got: %s", out)
	}
	if !strings.Contains(out, "visible 2") {
		t.Errorf("expected info message, got: %s", out)
	}
	if !strings.Contains(out, "subsystem=Test") {
		t.Errorf("expected subsystem attribute, got: %s", out)
	}
}

func TestInit_JSONIncludesError(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: LevelDebug, Format: FormatJSON, Output: &buf})

	Error("OAuth", errors.New("boom"), "refresh failed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "refresh failed" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["subsystem"] != "OAuth" {
		t.Errorf("subsystem = %v", entry["subsystem"])
	}
	if entry["error"] != "boom" {
		t.Errorf("error = %v", entry["error"])
	}
}

func TestTruncateID(t *testing.T) {
	if got := TruncateID("abc"); got != "abc" {
		t.Errorf("TruncateID(short) = %q", got)
	}
	if got := TruncateID("0123456789abcdef"); got != "01234567..." {
		t.Errorf("TruncateID(long) = %q", got)
	}
}
