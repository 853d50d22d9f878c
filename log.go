package videoreader

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Severity is the level of an engine log message.
// The numeric values are part of the engine ABI.
type Severity int32

const (
	SeverityFatal Severity = iota
	SeverityError
	SeverityWarning
	SeverityInfo
	SeverityDebug
)

func (s Severity) String() string {
	switch s {
	case SeverityFatal:
		return "fatal"
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	case SeverityDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ZapLevel maps the severity to a zap level. Fatal maps to error so that an
// engine message never terminates the process.
func (s Severity) ZapLevel() zapcore.Level {
	switch s {
	case SeverityFatal, SeverityError:
		return zapcore.ErrorLevel
	case SeverityWarning:
		return zapcore.WarnLevel
	case SeverityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// LogSink receives engine log messages. It is called synchronously on the
// goroutine that is inside the engine call, zero or more times per call.
type LogSink func(severity Severity, message string)

// ZapSink forwards engine messages to l.
func ZapSink(l *zap.Logger) LogSink {
	l = l.WithOptions(zap.AddCallerSkip(1))
	return func(severity Severity, message string) {
		// engine lines usually carry their own newline
		message = strings.TrimRight(message, "\n")
		if ce := l.Check(severity.ZapLevel(), message); ce != nil {
			ce.Write(zap.Stringer("severity", severity))
		}
	}
}

var logger atomic.Pointer[zap.Logger]

// Logger returns the package logger. It is a no-op logger by default.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return nopLogger
}

// SetLogger configures the package logger. Nil restores the no-op logger.
// Sessions keep the logger they were opened with.
func SetLogger(l *zap.Logger) {
	logger.Store(l)
}

var nopLogger = zap.NewNop()
