package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// Logger is the logging surface the pipeline packages share. Fields travel
// as plain maps so each package can declare its own local copy of this
// interface without importing zap.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// New builds the process logger. JSON output for deployments, console for
// local runs.
func New(levelStr, format string) *zap.Logger {
	level := zapcore.InfoLevel
	switch levelStr {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	logger, _ := cfg.Build()
	return logger
}

// adapter implements Logger on top of zap.
type adapter struct {
	l *zap.Logger
}

func (a *adapter) Debug(msg string, fields map[string]interface{}) {
	a.l.Debug(msg, zapFields(fields)...)
}

func (a *adapter) Info(msg string, fields map[string]interface{}) {
	a.l.Info(msg, zapFields(fields)...)
}

func (a *adapter) Warn(msg string, fields map[string]interface{}) {
	a.l.Warn(msg, zapFields(fields)...)
}

func (a *adapter) Error(msg string, fields map[string]interface{}) {
	a.l.Error(msg, zapFields(fields)...)
}

func (a *adapter) With(fields map[string]interface{}) Logger {
	return &adapter{l: a.l.With(zapFields(fields)...)}
}

func zapFields(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

// NewZapAdapter wraps an existing *zap.Logger.
func NewZapAdapter(l *zap.Logger) Logger {
	return &adapter{l: l}
}

// NewTestLogger routes output through testing.T so failures show the run's
// log lines.
func NewTestLogger(t testing.TB) Logger {
	return &adapter{l: zaptest.NewLogger(t)}
}
