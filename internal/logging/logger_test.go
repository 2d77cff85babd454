package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo).With("deps")

	l.Debug("hidden %d", 1)
	l.Info("link pred=%s succ=%s", "a", "b")
	l.Warn("store slow")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug line should be filtered at info level")
	}
	if !strings.Contains(out, "INFO deps: link pred=a succ=b") {
		t.Errorf("missing info line: %q", out)
	}
	if !strings.Contains(out, "WARN deps: store slow") {
		t.Errorf("missing warn line: %q", out)
	}
}

func TestLogger_Nil(t *testing.T) {
	var l *Logger
	l.Info("no panic")
	if l.With("x") != nil {
		t.Error("With on nil logger should stay nil")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
