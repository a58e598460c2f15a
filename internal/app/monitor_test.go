package app

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"xgate/internal/controller"
)

func TestAppStatusNotRunning(t *testing.T) {
	stubMonitor(t, false, nil)

	app := New(Options{})
	st, err := app.Status()
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if st.Running {
		t.Fatal("expected not running")
	}
}

func TestAppStatusRunningWithPID(t *testing.T) {
	stubMonitor(t, true, nil)
	monitorPID = func() (int, error) { return 4242, nil }

	app := New(Options{})
	st, err := app.Status()
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if !st.Running || st.PID != 4242 {
		t.Fatalf("status = %+v", st)
	}
}

func TestAppGateStateReadsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	snap := controller.StateSnapshot{Blocking: true, Connected: false, UpdatedUnix: 1700000000}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	app := New(Options{StatePath: path})
	got, err := app.GateState()
	if err != nil {
		t.Fatalf("GateState returned error: %v", err)
	}
	if !got.Blocking || got.Connected || got.UpdatedUnix != 1700000000 {
		t.Fatalf("snapshot = %+v", got)
	}
}

func TestAppGateStateMissingFile(t *testing.T) {
	app := New(Options{StatePath: filepath.Join(t.TempDir(), "absent.json")})
	if _, err := app.GateState(); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
