package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"time"
)

const (
	// DefaultWatchPattern matches the agent CLIs in any command line.
	DefaultWatchPattern = `(?i)\b(codex|claude(?:-code)?|claude_code)\b`

	defaultPollInterval = time.Second
	defaultHeartbeat    = 15 * time.Second

	envConfigPath   = "XGATE_CONFIG"
	envWatchPattern = "XGATE_WATCH_PATTERN"
	envPollInterval = "XGATE_POLL_INTERVAL"
	envHeartbeat    = "XGATE_HEARTBEAT"
)

// Gate aggregates the process monitor settings. It is loaded once at
// monitor start; changing the file afterwards requires a restart.
type Gate struct {
	WatchPattern    string
	RequireTerminal bool
	Invert          bool
	PollInterval    time.Duration
	Heartbeat       time.Duration
}

// Default returns the built-in configuration.
func Default() Gate {
	return Gate{
		WatchPattern:    DefaultWatchPattern,
		RequireTerminal: true,
		Invert:          false,
		PollInterval:    defaultPollInterval,
		Heartbeat:       defaultHeartbeat,
	}
}

// Compile returns the compiled watch pattern.
func (g Gate) Compile() (*regexp.Regexp, error) {
	re, err := regexp.Compile(g.WatchPattern)
	if err != nil {
		return nil, fmt.Errorf("compile watch_pattern: %w", err)
	}
	return re, nil
}

// Validate checks the invariants every loaded configuration must hold.
func (g Gate) Validate() error {
	if _, err := g.Compile(); err != nil {
		return err
	}
	if g.PollInterval <= 0 {
		return errors.New("poll_interval_seconds must be > 0")
	}
	if g.Heartbeat <= 0 {
		return errors.New("heartbeat_seconds must be > 0")
	}
	return nil
}

// Load builds a Gate from an optional JSON file path plus environment
// overrides. An empty path falls back to XGATE_CONFIG and then the
// per-user default location; a missing file at the default location
// yields the defaults, while an explicitly named file must exist.
func Load(path string) (Gate, error) {
	explicit := path != ""
	if path == "" {
		if env := os.Getenv(envConfigPath); env != "" {
			path = env
			explicit = true
		} else {
			path = DefaultPath()
		}
	}

	cfg := Default()
	fileCfg, err := loadFromFile(path)
	switch {
	case err == nil:
		cfg = fileCfg
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// keep defaults
	default:
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "xgate", "config.json")
	case "linux":
		if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
			return filepath.Join(dir, "xgate", "config.json")
		}
		return filepath.Join(home, ".config", "xgate", "config.json")
	default:
		return filepath.Join(home, ".xgate", "config.json")
	}
}

func applyEnvOverrides(cfg *Gate) error {
	if v := os.Getenv(envWatchPattern); v != "" {
		cfg.WatchPattern = v
	}
	if v := os.Getenv(envPollInterval); v != "" {
		dur, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", envPollInterval, v, err)
		}
		cfg.PollInterval = dur
	}
	if v := os.Getenv(envHeartbeat); v != "" {
		dur, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", envHeartbeat, v, err)
		}
		cfg.Heartbeat = dur
	}
	return nil
}

type fileConfig struct {
	WatchPattern        *string  `json:"watch_pattern"`
	RequireTerminal     *bool    `json:"require_terminal"`
	Invert              *bool    `json:"invert"`
	PollIntervalSeconds *float64 `json:"poll_interval_seconds"`
	HeartbeatSeconds    *float64 `json:"heartbeat_seconds"`
}

func loadFromFile(path string) (Gate, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	var raw fileConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return cfg, err
	}

	if raw.WatchPattern != nil {
		cfg.WatchPattern = *raw.WatchPattern
	}
	if raw.RequireTerminal != nil {
		cfg.RequireTerminal = *raw.RequireTerminal
	}
	if raw.Invert != nil {
		cfg.Invert = *raw.Invert
	}
	if raw.PollIntervalSeconds != nil {
		cfg.PollInterval = secondsToDuration(*raw.PollIntervalSeconds)
	}
	if raw.HeartbeatSeconds != nil {
		cfg.Heartbeat = secondsToDuration(*raw.HeartbeatSeconds)
	}
	return cfg, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
