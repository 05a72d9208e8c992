package logging

import "testing"

func TestNoopLoggerDoesNotPanic(t *testing.T) {
	var l Logger = NoopLogger{}
	l.Debug("x", nil)
	l.Info("x", map[string]any{"k": "v"})
	l.Warn("x", nil)
	l.Error("x", nil)
}

func TestNewZapLoggerLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		l := NewZapLogger(level)
		if l == nil {
			t.Fatalf("NewZapLogger(%q) returned nil", level)
		}
		l.Info("startup", map[string]any{"level": level})
	}
}
