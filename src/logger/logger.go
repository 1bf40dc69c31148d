package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"market-metrics/src/models"
)

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name    string
	handler slog.Handler // without the component attribute
	logger  *slog.Logger
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance writing to stdout. cfg may be nil.
func NewLogger(cfg *models.MConfig, name string) *Logger {
	level, format := "INFO", "text"
	if cfg != nil {
		if cfg.LogLevel != "" {
			level = cfg.LogLevel
		}
		if cfg.LogFormat != "" {
			format = cfg.LogFormat
		}
	}
	return NewLoggerWithWriter(os.Stdout, level, format, name)
}

// -----------------------------------------------------------------------------

// NewLoggerWithWriter creates a Logger on an arbitrary writer.
func NewLoggerWithWriter(w io.Writer, level, format, name string) *Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{
		name:    name,
		handler: handler,
		logger:  slog.New(handler).With(slog.String("component", name)),
	}
}

// -----------------------------------------------------------------------------

// ParseLevel maps config level names onto slog levels. Unknown names mean INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR", "CRITICAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// -----------------------------------------------------------------------------

// Named returns a logger for another component sharing the same handler.
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		name:    name,
		handler: l.handler,
		logger:  slog.New(l.handler).With(slog.String("component", name)),
	}
}

// With returns a logger carrying extra attributes (e.g. run_id, symbol).
func (l *Logger) With(args ...any) *Logger {
	return &Logger{name: l.name, handler: l.handler, logger: l.logger.With(args...)}
}

// Name returns the component name.
func (l *Logger) Name() string {
	return l.name
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), slog.Bool("critical", true))
	os.Exit(1)
}
