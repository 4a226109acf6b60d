// Package rlog provides the structured logger shared by every subsystem
// (planner, statistics manager, cursor engine). It wraps zap rather than
// hand-rolling JSON formatting and file rotation: every log entry carries a
// "component" and "operation" field, matching the shape the rest of the
// planner uses to tag its own cache keys and metrics.
package rlog

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a thin, component-scoped wrapper over *zap.Logger.
type Logger struct {
	z *zap.Logger
}

var (
	baseOnce sync.Once
	base     *zap.Logger
)

func defaultBase() *zap.Logger {
	baseOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		z, err := cfg.Build()
		if err != nil {
			z = zap.NewNop()
		}
		base = z
	})
	return base
}

// New returns a Logger scoped to component (e.g. "planner", "statistics",
// "cursor"). All entries get a "component" field set to this value.
func New(component string) *Logger {
	return &Logger{z: defaultBase().With(zap.String("component", component))}
}

// NewWithCore builds a Logger over a caller-supplied zap core, for tests
// that want to assert on emitted entries.
func NewWithCore(component string, core zapcore.Core) *Logger {
	return &Logger{z: zap.New(core).With(zap.String("component", component))}
}

func (l *Logger) WithFields(fields ...zap.Field) *Logger {
	return &Logger{z: l.z.With(fields...)}
}

func (l *Logger) Debug(operation, msg string, fields ...zap.Field) {
	l.z.Debug(msg, append(fields, zap.String("operation", operation))...)
}

func (l *Logger) Info(operation, msg string, fields ...zap.Field) {
	l.z.Info(msg, append(fields, zap.String("operation", operation))...)
}

func (l *Logger) Warn(operation, msg string, fields ...zap.Field) {
	l.z.Warn(msg, append(fields, zap.String("operation", operation))...)
}

func (l *Logger) Error(operation, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("operation", operation))
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	l.z.Error(msg, fields...)
}

func (l *Logger) Sync() error { return l.z.Sync() }
