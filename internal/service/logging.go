package service

import (
	"io"
	"log/slog"
	"os"

	"modelcore/pkg/model"
)

// NewLogger builds a text slog logger at the given level, writing to w
// (stderr when nil). *slog.Logger satisfies model.Logger directly.
func NewLogger(level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

var _ model.Logger = (*slog.Logger)(nil)
