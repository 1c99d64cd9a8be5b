package config

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger writes to stdout: JSON at info level in production, text with
// source locations at debug level otherwise.
func NewLogger(env string) *slog.Logger {
	return NewLoggerTo(env, os.Stdout)
}

// NewLoggerTo is NewLogger on another writer. CLIs that print their result to
// stdout log to stderr with it.
func NewLoggerTo(env string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: env == "development",
		Level:     slog.LevelDebug,
	}

	if env == "production" {
		opts.Level = slog.LevelInfo
		return slog.New(slog.NewJSONHandler(w, opts)).With("service", "estoque")
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
