package controller

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
)

// StateSnapshot is the durable mirror of enforcement state that external
// UI collaborators read.
type StateSnapshot struct {
	Blocking    bool        `json:"blocking"`
	Connected   bool        `json:"connected"`
	Last        *LastStatus `json:"last_status"`
	UpdatedUnix int64       `json:"updated_unix"`
}

// DefaultStatePath returns the per-user state file location.
func DefaultStatePath() string {
	if override := os.Getenv("XGATE_STATE"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "xgate", "state.json")
	case "linux":
		if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
			return filepath.Join(dir, "xgate", "state.json")
		}
		return filepath.Join(home, ".local", "state", "xgate", "state.json")
	default:
		return filepath.Join(home, ".xgate", "state.json")
	}
}

// ReadState loads a snapshot written by a running controller.
func ReadState(path string) (StateSnapshot, error) {
	var s StateSnapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, err
	}
	return s, nil
}

// writeState mirrors the current enforcement state to the state file via
// temp-file rename. Best-effort: a write failure never disturbs
// enforcement.
func (c *Controller) writeState() {
	if c.statePath == "" {
		return
	}
	st := c.status()
	snap := StateSnapshot{
		Blocking:    st.Blocking,
		Connected:   st.Connected,
		Last:        st.Last,
		UpdatedUnix: c.now().Unix(),
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		c.log.Warn("state snapshot failed", "error", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.statePath), 0o755); err != nil {
		c.log.Warn("state snapshot failed", "path", c.statePath, "error", err)
		return
	}
	tmp := c.statePath + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		c.log.Warn("state snapshot failed", "path", tmp, "error", err)
		return
	}
	if err := os.Rename(tmp, c.statePath); err != nil {
		c.log.Warn("state snapshot failed", "path", c.statePath, "error", err)
	}
}
