package app

import (
	"xgate/internal/config"
	"xgate/internal/controller"
	"xgate/internal/monitor"
)

// MonitorStatus reports whether the monitor daemon is up and its PID.
type MonitorStatus struct {
	Running bool
	PID     int
}

// Status returns monitor daemon liveness.
func (a *App) Status() (MonitorStatus, error) {
	if !monitorIsRunning() {
		return MonitorStatus{Running: false}, nil
	}
	pid, err := monitorPID()
	if err != nil {
		return MonitorStatus{Running: true}, err
	}
	return MonitorStatus{Running: true, PID: pid}, nil
}

// GateState reads the controller's last written state snapshot.
func (a *App) GateState() (controller.StateSnapshot, error) {
	path := a.statePath
	if path == "" {
		path = controller.DefaultStatePath()
	}
	return controller.ReadState(path)
}

// MonitorHandle holds a running monitor daemon instance.
type MonitorHandle struct {
	srv *monitor.Server
}

// Close stops the running monitor instance.
func (h *MonitorHandle) Close() error {
	if h == nil || h.srv == nil {
		return nil
	}
	return h.srv.Close()
}

// StartMonitor starts the monitor daemon and returns a handle for
// closing it.
func (a *App) StartMonitor() (*MonitorHandle, error) {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return nil, err
	}
	srv, err := monitor.Start(cfg, a.log)
	if err != nil {
		return nil, err
	}
	return &MonitorHandle{srv: srv}, nil
}

// StopMonitor attempts to stop the running monitor daemon.
func (a *App) StopMonitor(force bool) error {
	return monitor.StopRunning(force)
}
