package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"xgate/internal/channel"
	"xgate/internal/monitor"
)

// monitorConn is the slice of channel.Conn the facade uses, kept as an
// interface so tests can script both directions.
type monitorConn interface {
	Read() (channel.Message, error)
	Write(channel.Message) error
	Close() error
}

var (
	monitorIsRunning = monitor.IsRunning
	monitorPID       = monitor.RunningPID
	dialMonitor      = func(ctx context.Context) (monitorConn, error) {
		return monitor.Dial(ctx)
	}
)

func resetMonitorDeps() {
	monitorIsRunning = monitor.IsRunning
	monitorPID = monitor.RunningPID
	dialMonitor = func(ctx context.Context) (monitorConn, error) {
		return monitor.Dial(ctx)
	}
}

// withConn dials the running monitor and hands the connection to fn. The
// connection is closed when ctx expires so blocked reads unwind.
func (a *App) withConn(ctx context.Context, timeout time.Duration, fn func(context.Context, monitorConn) error) error {
	if timeout <= 0 {
		return errors.New("timeout must be greater than 0")
	}
	if !monitorIsRunning() {
		return errors.New("monitor is not running")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dialMonitor(ctx)
	if err != nil {
		return fmt.Errorf("connect to monitor: %w", err)
	}
	watchdog := make(chan struct{})
	defer close(watchdog)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchdog:
		}
	}()
	defer conn.Close()

	return fn(ctx, conn)
}
