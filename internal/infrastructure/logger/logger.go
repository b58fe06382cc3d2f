package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/taskmaster/agenda/internal/infrastructure/config"
)

// Logger wraps zap.SugaredLogger to provide application-specific logging
type Logger struct {
	*zap.SugaredLogger
	ring *Ring
}

// New creates a new logger instance that also keeps the most recent
// entries in memory
func New(cfg config.LoggerConfig) (*Logger, error) {
	var zapConfig zap.Config

	if cfg.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	// Set log level
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	// Configure output
	switch cfg.Output {
	case "", "stdout":
		zapConfig.OutputPaths = []string{"stdout"}
		zapConfig.ErrorOutputPaths = []string{"stderr"}
	case "stderr":
		zapConfig.OutputPaths = []string{"stderr"}
		zapConfig.ErrorOutputPaths = []string{"stderr"}
	default:
		zapConfig.OutputPaths = []string{cfg.Output}
		zapConfig.ErrorOutputPaths = []string{cfg.Output}
	}

	// Add caller information in development
	if cfg.Format != "json" {
		zapConfig.Development = true
		zapConfig.DisableStacktrace = false
	}

	ring := NewRing(cfg.BufferSize, level)

	zapLogger, err := zapConfig.Build(
		zap.AddCallerSkip(1),
		zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, ring.Core())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return &Logger{
		SugaredLogger: zapLogger.Sugar(),
		ring:          ring,
	}, nil
}

// NewNop returns a logger that discards everything but still records
// entries in a small ring, which is what tests usually want to inspect.
func NewNop() *Logger {
	ring := NewRing(100, zapcore.DebugLevel)
	return &Logger{
		SugaredLogger: zap.New(ring.Core()).Sugar(),
		ring:          ring,
	}
}

// WithFields adds structured fields to the logger
func (l *Logger) WithFields(fields ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(fields...),
		ring:          l.ring,
	}
}

// WithError adds an error field to the logger
func (l *Logger) WithError(err error) *Logger {
	return l.WithFields("error", err.Error())
}

// WithRequestID adds a request ID field to the logger
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.WithFields("request_id", requestID)
}

// WithComponent adds a component field to the logger
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithFields("component", component)
}

// Recent returns the buffered entries, oldest first. An empty level returns
// every entry, otherwise only entries of exactly that level.
func (l *Logger) Recent(level string) []Entry {
	if l.ring == nil {
		return nil
	}
	return l.ring.Entries(level)
}

// LogMutation records the outcome of one optimistic mutation
func (l *Logger) LogMutation(collection, op string, err error) {
	fields := []interface{}{
		"collection", collection,
		"op", op,
	}

	if err != nil {
		fields = append(fields, "error", err.Error())
		l.Errorw("Mutation rolled back", fields...)
	} else {
		l.Debugw("Mutation persisted", fields...)
	}
}

// Close flushes any buffered log entries
func (l *Logger) Close() error {
	return l.SugaredLogger.Sync()
}
