// Package logging configures the process-wide slog logger.
//
// Usage:
//
//	logging.Setup("dev")                          // colored tint output, level from LOG_LEVEL
//	logging.Setup("prod")                         // JSON lines on stdout
//	logging.SetupWithLevel("dev", slog.LevelDebug) // explicit level override
//
// Environment variables:
//
//	LOG_LEVEL: debug, info, warn, error (default: info)
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup configures logging for env at the level specified by LOG_LEVEL
// (default: INFO).
func Setup(env string) {
	SetupWithLevel(env, levelFromEnv())
}

// SetupWithLevel configures logging for env at the given level.
func SetupWithLevel(env string, level slog.Level) {
	slog.SetDefault(slog.New(NewHandler(env, level, nil)))
}

// NewHandler returns a tint handler in dev and a JSON handler otherwise. A nil
// w writes colored output to stderr and JSON to stdout.
func NewHandler(env string, level slog.Level, w io.Writer) slog.Handler {
	if env == "dev" {
		if w == nil {
			w = os.Stderr
		}
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		})
	}
	if w == nil {
		w = os.Stdout
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

func levelFromEnv() slog.Level {
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}

// ParseLevel maps a level name to a slog level, defaulting to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
