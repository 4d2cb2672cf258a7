package logging

import (
	"log/slog"
	"os"
	"strings"
)

// DefaultLevel applies when the configured level string is empty or
// unrecognized.
const DefaultLevel = slog.LevelInfo

// New creates a text slog.Logger at the given level. Logs go to stderr
// so command output on stdout stays machine-readable.
func New(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: Level(level),
	})
	return slog.New(handler)
}

// Level parses a configured level string, falling back to DefaultLevel.
func Level(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return DefaultLevel
	}
}
