// Package observability provides structured logging and Prometheus metrics
// for the call orchestration service.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// ContextKey is the type for context keys used in logging.
type ContextKey string

const (
	// CallIDKey is the context key for the canonical call connection ID.
	CallIDKey ContextKey = "call_id"

	// PatientIDKey is the context key for patient IDs.
	PatientIDKey ContextKey = "patient_id"
)

// DefaultRedactPatterns covers the secrets most likely to leak into call
// logs: provider API keys, bearer tokens, and connection strings.
var DefaultRedactPatterns = []string{
	`(?i)(api[_-]?key|apikey)[\s:=]+["']?([a-zA-Z0-9_\-]{16,})["']?`,
	`(?i)(bearer|token)[\s:]+([a-zA-Z0-9_\-\.]{16,})`,
	`(?i)(secret|password|passwd|pwd)[\s:=]+["']?([^\s"']{8,})["']?`,
	`sk-ant-[a-zA-Z0-9_-]{95,}`,
	`sk-[a-zA-Z0-9]{48,}`,
	`(?i)accesskey=[^\s;"']+`,
}

// LogConfig configures the logging behavior.
type LogConfig struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error"
	Level string

	// Format specifies output format: "json" or "text"
	Format string

	// Output is the writer for log output (defaults to os.Stdout)
	Output io.Writer

	// RedactPatterns are additional regex patterns for sensitive data
	// redaction on top of DefaultRedactPatterns.
	RedactPatterns []string
}

// Logger wraps slog with call correlation and secret redaction.
type Logger struct {
	logger  *slog.Logger
	redacts []*regexp.Regexp
}

// NewLogger creates a structured logger. Level defaults to "info" and
// format to "json".
func NewLogger(config LogConfig) *Logger {
	if config.Output == nil {
		config.Output = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: LogLevelFromString(config.Level)}
	var handler slog.Handler
	if strings.EqualFold(config.Format, "text") {
		handler = slog.NewTextHandler(config.Output, opts)
	} else {
		handler = slog.NewJSONHandler(config.Output, opts)
	}

	patterns := append(DefaultRedactPatterns, config.RedactPatterns...)
	redacts := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		if re, err := regexp.Compile(pattern); err == nil {
			redacts = append(redacts, re)
		}
	}

	return &Logger{logger: slog.New(handler), redacts: redacts}
}

// NewTestLogger returns a logger that discards everything.
func NewTestLogger() *Logger {
	return &Logger{logger: slog.New(slog.DiscardHandler)}
}

// LogLevelFromString converts a string to a slog.Level, defaulting to
// LevelInfo when unrecognized.
func LogLevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Slog exposes the underlying slog logger for collaborators that take one
// directly. Redaction does not apply on this path.
func (l *Logger) Slog() *slog.Logger {
	return l.logger
}

// WithFields returns a new logger with the given fields added to all
// records.
func (l *Logger) WithFields(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...), redacts: l.redacts}
}

// Debug logs a debug-level message with optional key-value pairs.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args...)
}

// Info logs an info-level message with optional key-value pairs.
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args...)
}

// Warn logs a warning-level message with optional key-value pairs.
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args...)
}

// Error logs an error-level message with optional key-value pairs.
func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args...)
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	attrs := make([]any, 0, len(args)+4)
	if callID, ok := ctx.Value(CallIDKey).(string); ok && callID != "" {
		attrs = append(attrs, "call_id", callID)
	}
	if patientID, ok := ctx.Value(PatientIDKey).(string); ok && patientID != "" {
		attrs = append(attrs, "patient_id", patientID)
	}
	for _, arg := range args {
		attrs = append(attrs, l.redactValue(arg))
	}
	l.logger.Log(ctx, level, l.redactString(msg), attrs...)
}

func (l *Logger) redactValue(v any) any {
	switch val := v.(type) {
	case string:
		return l.redactString(val)
	case error:
		return l.redactString(val.Error())
	default:
		return v
	}
}

func (l *Logger) redactString(s string) string {
	for _, re := range l.redacts {
		s = re.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

// WithCallID adds the canonical call ID to the context.
func WithCallID(ctx context.Context, callID string) context.Context {
	return context.WithValue(ctx, CallIDKey, callID)
}

// WithPatientID adds a patient ID to the context.
func WithPatientID(ctx context.Context, patientID string) context.Context {
	return context.WithValue(ctx, PatientIDKey, patientID)
}
