package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

// Context keys picked up by WithContext. Middleware and workers set
// these so every log line in a request or job carries the same fields.
const (
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
	ServiceKey   contextKey = "service"
)

var defaultLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
	Level: levelFromEnv(),
}))

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Default() *slog.Logger {
	return defaultLogger
}

// WithContext returns the default logger annotated with whatever request
// metadata the context carries.
func WithContext(ctx context.Context) *slog.Logger {
	l := defaultLogger

	if requestID := ctx.Value(RequestIDKey); requestID != nil {
		l = l.With("request_id", requestID)
	}
	if userID := ctx.Value(UserIDKey); userID != nil {
		l = l.With("user_id", userID)
	}
	if service := ctx.Value(ServiceKey); service != nil {
		l = l.With("service", service)
	}

	return l
}

func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

func InfoContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Info(msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Error(msg, args...)
}

func DebugContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Debug(msg, args...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Warn(msg, args...)
}
