// Package observability provides structured logging and metrics for
// the flow engine. Logging uses slog; metrics use OpenTelemetry with a
// no-op fallback when no meter provider is configured.
package observability

import (
	"io"
	"log/slog"
)

// NewLogger creates a configured slog.Logger. It does not set the
// global logger, so callers can hold isolated instances.
func NewLogger(levelStr, formatStr string, w io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if formatStr == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
