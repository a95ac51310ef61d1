// Package logging builds the zap logger shared by the bridges and the CLI.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap logger whose level can be changed after construction.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// New returns a development-style logger at the named level ("debug", "info", ...).
func New(level string) (*Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	logConf := zap.NewDevelopmentConfig()
	logConf.Level = zap.NewAtomicLevelAt(lvl)
	logConf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logConf.DisableStacktrace = true

	logger, err := logConf.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &Logger{Logger: logger, level: logConf.Level}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop(), level: zap.NewAtomicLevel()}
}

// Level returns the current level.
func (l *Logger) Level() zapcore.Level {
	return l.level.Level()
}

// SetLevel changes the level of this logger and every logger derived from it.
func (l *Logger) SetLevel(lvl zapcore.Level) {
	if l.level.Level() == lvl {
		return
	}
	l.level.SetLevel(lvl)
	l.Info("log level changed", zap.Stringer("level", lvl))
}
