package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the default logger.
type Options struct {
	Level  string
	Format string
	// File, when set, adds a size-rotated log file next to stdout.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Setup initialises the global slog default logger.
// level may be "debug", "info", "warn", or "error" (default "info").
// format may be "json" or "text" (default "json").
func Setup(o Options) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(o.Level)}

	var out io.Writer = os.Stdout
	if o.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    o.MaxSizeMB,
			MaxBackups: o.MaxBackups,
			Compress:   true,
		})
	}

	var handler slog.Handler
	if strings.ToLower(o.Format) == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
