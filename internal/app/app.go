package app

import (
	"io"
	"log/slog"
)

// Options configures the shared facade.
type Options struct {
	// ConfigPath points to the optional gate config file.
	ConfigPath string
	// StatePath points to the controller state snapshot. Empty means the
	// per-user default location.
	StatePath string
	// Logger receives facade and daemon logs. Defaults to a discard
	// logger so library use stays quiet.
	Logger *slog.Logger
}

// App exposes high-level operations that the CLI/TUI can reuse.
type App struct {
	cfgPath   string
	statePath string
	log       *slog.Logger
}

// New constructs the shared facade.
func New(opts Options) *App {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &App{
		cfgPath:   opts.ConfigPath,
		statePath: opts.StatePath,
		log:       log,
	}
}
