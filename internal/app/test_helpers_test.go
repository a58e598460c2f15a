package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"xgate/internal/channel"
)

// fakeConn scripts the monitor side of a connection. Incoming messages
// are queued on a channel; Close unblocks any pending Read.
type fakeConn struct {
	incoming chan channel.Message

	mu     sync.Mutex
	writes []channel.Message
	closed bool

	onWrite func(*fakeConn, channel.Message)
}

func newFakeConn() *fakeConn {
	return &fakeConn{incoming: make(chan channel.Message, 8)}
}

func (f *fakeConn) Read() (channel.Message, error) {
	msg, ok := <-f.incoming
	if !ok {
		return channel.Message{}, io.EOF
	}
	return msg, nil
}

func (f *fakeConn) Write(m channel.Message) error {
	f.mu.Lock()
	f.writes = append(f.writes, m)
	f.mu.Unlock()
	if f.onWrite != nil {
		f.onWrite(f, m)
	}
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.incoming)
	}
	return nil
}

func (f *fakeConn) written() []channel.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]channel.Message(nil), f.writes...)
}

func stubMonitor(t *testing.T, running bool, dial func(context.Context) (monitorConn, error)) {
	t.Helper()
	resetMonitorDeps()
	monitorIsRunning = func() bool { return running }
	monitorPID = func() (int, error) { return 0, errors.New("pid not stubbed") }
	if dial == nil {
		dial = func(context.Context) (monitorConn, error) {
			return nil, errors.New("dial not stubbed")
		}
	}
	dialMonitor = dial
	t.Cleanup(resetMonitorDeps)
}
