package cli

import (
	"io"
	"log/slog"

	"github.com/roach88/flowbuilder/internal/config"
)

// newLogger builds the process logger from the log section of cfg.
// verbose forces debug level.
func newLogger(cfg config.LogConfig, verbose bool, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

// defaultLogConfig is used by commands that do not read the config file.
// Only warnings and errors reach the terminal unless --verbose is set.
func defaultLogConfig() config.LogConfig {
	return config.LogConfig{Level: "warn", Format: "text"}
}
