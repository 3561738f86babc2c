package app

import (
	"io"
	"log/slog"
)

// newLogger creates the run's slog.Logger without touching the global
// default, so tests can run apps with isolated loggers. Diagnostics go
// to errW; job narration is the out writer's business, not the
// logger's.
func newLogger(cfg *Config, errW io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case cfg.Debug:
		level = slog.LevelDebug
	case cfg.Terse:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(errW, &slog.HandlerOptions{Level: level}))
}
