package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"xgate/internal/channel"
)

// SocketBaseName is the UNIX socket filename.
const SocketBaseName = "xgate.sock"

const pidFileName = "xgate.pid"

// SocketPath returns the full path to the UNIX socket.
// Order of precedence (first wins):
// 1) XGATE_SOCKET (absolute path to socket)
// 2) if runtime=linux:
//   - XGATE_RUNTIME_DIR or $XDG_RUNTIME_DIR or /run/user/<UID>
//     else (darwin, *bsd, etc):
//   - XGATE_RUNTIME_DIR or /tmp
func SocketPath() string {
	if explicit := os.Getenv("XGATE_SOCKET"); explicit != "" {
		return explicit
	}

	uid := currentUID()

	if rd := os.Getenv("XGATE_RUNTIME_DIR"); rd != "" {
		return filepath.Join(rd, SocketBaseName)
	}

	if runtime.GOOS == "linux" {
		if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
			return filepath.Join(v, SocketBaseName)
		}
		return filepath.Join("/run/user", uid, SocketBaseName)
	}

	// macOS / BSD / other unix: keep it short to avoid sun_path length limit
	return filepath.Join("/tmp", "xgate-"+uid+".sock")
}

// EnsureRuntimeDir creates the socket's parent directory if needed.
func EnsureRuntimeDir() error {
	return os.MkdirAll(filepath.Dir(SocketPath()), 0o700)
}

// PIDPath returns the full path to the PID file.
func PIDPath() string {
	return filepath.Join(filepath.Dir(SocketPath()), pidFileName)
}

// WritePID stores the provided pid into the pid file.
func WritePID(pid int) error {
	if err := EnsureRuntimeDir(); err != nil {
		return err
	}
	return os.WriteFile(PIDPath(), []byte(fmt.Sprintf("%d\n", pid)), 0o600)
}

// RemovePID removes the pid file if it exists.
func RemovePID() error {
	if err := os.Remove(PIDPath()); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// RunningPID returns the pid stored in the pid file if any.
func RunningPID() (int, error) {
	data, err := os.ReadFile(PIDPath())
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, err
	}
	return pid, nil
}

// Dial connects to the monitor daemon's socket.
func Dial(ctx context.Context) (*channel.Conn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "unix", SocketPath())
	if err != nil {
		return nil, fmt.Errorf("dial monitor socket: %w", err)
	}
	return channel.NewConn(c), nil
}

// IsRunning connects to the monitor and waits for its initial decision
// push, returning true if one arrives promptly.
func IsRunning() bool {
	path := SocketPath()
	if _, err := os.Stat(path); err != nil {
		return false
	}

	c, err := net.DialTimeout("unix", path, 300*time.Millisecond)
	if err != nil {
		return false
	}
	defer c.Close()
	_ = c.SetReadDeadline(time.Now().Add(300 * time.Millisecond))

	msg, err := channel.NewConn(c).Read()
	return err == nil && msg.Type == channel.KindStatus
}

func currentUID() string {
	u, err := user.Current()
	if err == nil && u != nil && u.Uid != "" {
		return u.Uid
	}
	return "0"
}
