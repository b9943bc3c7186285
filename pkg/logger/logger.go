package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

var defaultLogger *slog.Logger

type ctxKey struct{}

// Init configures the process-wide logger. Production gets JSON at info level,
// everything else a text handler at debug level unless level or format override it.
func Init(env, level, format string) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{Level: parseLevel(level, env)}
	if useJSON(format, env) {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

func LoggerWrapper() *slog.Logger {
	if defaultLogger == nil {
		// lazy initialize a development logger to avoid nil pointer panics
		Init("development", "", "")
	}
	return defaultLogger
}

// With returns a context whose logger carries the given attributes.
func With(ctx context.Context, args ...any) context.Context {
	return context.WithValue(ctx, ctxKey{}, FromContext(ctx).With(args...))
}

// FromContext returns the request-scoped logger, falling back to the default one.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if lg, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && lg != nil {
			return lg
		}
	}
	return LoggerWrapper()
}

func parseLevel(level, env string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if env == "production" {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

func useJSON(format, env string) bool {
	switch strings.ToLower(format) {
	case "json":
		return true
	case "text":
		return false
	}
	return env == "production"
}
