package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := New(path, LevelWarn, false)
	if err != nil {
		t.Fatal(err)
	}

	l.Debug("debug line")
	l.Info("info line")
	l.Warn("warn line")
	l.Error("error line %d", 42)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)

	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Errorf("lines below the level were written:\n%s", out)
	}
	if !strings.Contains(out, "[WARN] warn line") {
		t.Errorf("warn line missing:\n%s", out)
	}
	if !strings.Contains(out, "[ERROR] error line 42") {
		t.Errorf("error line missing or unformatted:\n%s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"nonsense", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWriterAdapter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := New(path, LevelInfo, false)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := l.Write([]byte("framework line\n")); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "framework line") {
		t.Errorf("adapter did not log:\n%s", data)
	}
}
