// Package logging configures the process-wide structured logger (C12).
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New builds a slog.Logger writing JSON to stderr at the given level name
// (case-insensitive; one of "debug", "info", "warn", "error"; unrecognized
// values fall back to "info"), and installs it as slog.Default.
func New(level string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(level)})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
