package logging

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// ParseLevel maps a textual level to slog. Unknown values report false.
func ParseLevel(value string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func LevelFromEnv() slog.Level {
	level, _ := ParseLevel(os.Getenv("LOG_LEVEL"))
	return level
}

func CreateLogger(level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	})
	logger := slog.New(handler)
	return logger
}
