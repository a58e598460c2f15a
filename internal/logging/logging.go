// Package logging configures structured logging. Log output always goes
// to a file (or stderr as a last resort): in native-host mode stdout
// carries the message channel and must stay clean.
package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	envLogPath  = "XGATE_LOG"
	envLogLevel = "XGATE_LOG_LEVEL"
)

// New returns a JSON slog logger for the named component.
func New(component string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFromEnv()}

	path := LogPath(component)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			return slog.New(slog.NewJSONHandler(f, opts)).With("component", component)
		}
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts)).With("component", component)
}

// LogPath returns the per-OS log file location for a component.
func LogPath(component string) string {
	if override := os.Getenv(envLogPath); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	name := component + ".log"
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", "xgate", name)
	case "linux":
		if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
			return filepath.Join(dir, "xgate", name)
		}
		return filepath.Join(home, ".cache", "xgate", name)
	default:
		return filepath.Join(home, ".xgate", "logs", name)
	}
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv(envLogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
