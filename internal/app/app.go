package app

import (
	"io"
	"log/slog"

	"github.com/specialistvlad/stagemake/internal/config"
	"github.com/specialistvlad/stagemake/internal/resolver"
)

// App encapsulates one build run's dependencies and configuration.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	loader config.Loader
	rules  *resolver.Registry
}

// NewApp constructs a fully initialized App with its own isolated
// logger and a rule registry pre-populated with the built-in
// destination rules. outW receives job narration; errW receives
// diagnostics.
func NewApp(outW, errW io.Writer, cfg *Config, loader config.Loader) *App {
	return &App{
		outW:   outW,
		logger: newLogger(cfg, errW),
		config: cfg,
		loader: loader,
		rules:  resolver.NewRegistry(),
	}
}

// Rules exposes the destination-rule registry so a host can register
// custom "func:" derivers before Run.
func (a *App) Rules() *resolver.Registry {
	return a.rules
}
