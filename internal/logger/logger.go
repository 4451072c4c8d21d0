package logger

import (
	"context"
	"log/slog"
	"os"
)

var (
	// default logger instance
	defaultLogger *slog.Logger
)

// initializes the logger based on environment
func init() {
	defaultLogger = New(os.Getenv("ENVIRONMENT"))
}

// builds a logger for the given environment name
func New(env string) *slog.Logger {
	var handler slog.Handler

	if env == "production" {
		// production: JSON output for log shipping
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		// development: human-readable text output
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	return slog.New(handler).With("service", "storefront")
}

// replaces the default logger (called once config is loaded)
func SetDefault(l *slog.Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// returns the default logger instance
func Default() *slog.Logger {
	return defaultLogger
}

// creates a logger with additional context fields
func With(args ...any) *slog.Logger {
	return defaultLogger.With(args...)
}

// returns the logger stored in ctx, or the default one
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return defaultLogger
	}

	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}

	return defaultLogger
}

// adds logger to context
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

type loggerKey struct{}

func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

// logs an error with context
func ErrorErr(err error, msg string, args ...any) {
	args = append(args, "error", err)
	defaultLogger.Error(msg, args...)
}

// logs a fatal error with error and exits
func FatalErr(err error, msg string, args ...any) {
	args = append(args, "error", err)
	defaultLogger.Error(msg, args...)
	os.Exit(1)
}
