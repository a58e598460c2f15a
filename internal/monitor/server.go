package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"syscall"
	"time"

	"xgate/internal/channel"
	"xgate/internal/config"
)

// Server wraps the UNIX listener serving watch sessions.
type Server struct {
	ln   net.Listener
	path string
	w    *Watcher
	log  *slog.Logger
}

// Start binds the UNIX socket and serves watch sessions, one per
// accepted connection.
func Start(cfg config.Gate, log *slog.Logger) (*Server, error) {
	w, err := New(cfg, log)
	if err != nil {
		return nil, err
	}

	if err := EnsureRuntimeDir(); err != nil {
		return nil, err
	}
	path := SocketPath()

	// If a stale socket file exists but no monitor answers, remove it.
	if _, err := os.Stat(path); err == nil && !IsRunning() {
		if err := os.Remove(path); err != nil {
			return nil, err
		}
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, err
	}
	s := &Server{ln: ln, path: path, w: w, log: log}
	if err := WritePID(os.Getpid()); err != nil {
		s.Close()
		return nil, err
	}
	go s.serve()
	return s, nil
}

// Close stops the server and unlinks the socket.
func (s *Server) Close() error {
	var err error
	if s.ln != nil {
		err = s.ln.Close()
		if err != nil {
			return err
		}
	}
	if s.path != "" {
		err = os.Remove(s.path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return RemovePID()
}

func (s *Server) serve() {
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(c)
	}
}

func (s *Server) handle(c net.Conn) {
	conn := channel.NewConn(c)
	defer conn.Close()
	if err := s.w.Serve(context.Background(), conn); err != nil {
		s.log.Warn("watch session ended", "error", err)
	}
}

// StopRunning sends a termination signal to the currently running
// monitor daemon if any.
func StopRunning(force bool) error {
	pid, err := RunningPID()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if IsRunning() {
				return fmt.Errorf("monitor is running but PID file %q is missing; stop it manually", PIDPath())
			}
			return nil
		}
		return fmt.Errorf("unable to read monitor PID: %w", err)
	}
	if pid == os.Getpid() {
		return errors.New("refusing to stop current process")
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := sendSignal(proc, syscall.SIGTERM); err != nil {
		return err
	}
	if waitForShutdown(3 * time.Second) {
		return nil
	}
	if !force {
		return fmt.Errorf("monitor process %d did not exit after SIGTERM", pid)
	}
	if err := sendSignal(proc, syscall.SIGKILL); err != nil {
		return err
	}
	if waitForShutdown(2 * time.Second) {
		return nil
	}
	return fmt.Errorf("monitor process %d did not exit after SIGKILL", pid)
}

func sendSignal(proc *os.Process, sig syscall.Signal) error {
	if err := proc.Signal(sig); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			_ = RemovePID()
			return nil
		}
		return err
	}
	return nil
}

func waitForShutdown(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !IsRunning() {
			_ = RemovePID()
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(100 * time.Millisecond)
	}
}
