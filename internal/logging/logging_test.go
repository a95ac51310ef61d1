package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	logger, err := New("warn")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if logger.Level() != zapcore.WarnLevel {
		t.Fatalf("Level() = %v, want warn", logger.Level())
	}

	logger.SetLevel(zapcore.DebugLevel)
	if logger.Level() != zapcore.DebugLevel {
		t.Fatalf("Level() = %v, want debug", logger.Level())
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("core should be enabled at debug after SetLevel")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNop(t *testing.T) {
	logger := Nop()
	logger.SetLevel(zapcore.ErrorLevel)
	logger.Info("discarded")
}
