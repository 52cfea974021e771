package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"info", zapcore.InfoLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel(loud) succeeded")
	}
}

func TestNew(t *testing.T) {
	for _, dev := range []bool{false, true} {
		logger, err := New("warn", dev)
		if err != nil {
			t.Fatalf("New(warn, %v) error = %v", dev, err)
		}
		if logger.Core().Enabled(zapcore.InfoLevel) {
			t.Errorf("New(warn, %v) logs at info", dev)
		}
		if !logger.Core().Enabled(zapcore.ErrorLevel) {
			t.Errorf("New(warn, %v) drops errors", dev)
		}
	}

	if _, err := New("loud", false); err == nil {
		t.Error("New(loud) succeeded")
	}
}
