package controller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"xgate/internal/channel"
	"xgate/internal/policy"
	"xgate/internal/rules"
)

const testRedirect = "http://127.0.0.1:8717/blocked"

// spyEngine counts Replace calls on top of the in-memory table.
type spyEngine struct {
	mu    sync.Mutex
	table *rules.Table
	calls int
	fail  error
}

func newSpyEngine() *spyEngine {
	return &spyEngine{table: rules.NewTable(nil)}
}

func (s *spyEngine) Replace(ctx context.Context, tx rules.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.calls++
	return s.table.Replace(ctx, tx)
}

func (s *spyEngine) Active() []rules.Rule {
	return s.table.Active()
}

func (s *spyEngine) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestController(t *testing.T, eng *spyEngine) *Controller {
	t.Helper()
	c, err := New(Options{
		Engine:      eng,
		Dial:        func(context.Context) (*channel.Conn, error) { return nil, errors.New("dial not stubbed") },
		RedirectURL: testRedirect,
		Logger:      discardLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// attachConn marks the controller connected with a drained pipe so
// handler-level tests can exercise writes.
func attachConn(t *testing.T, c *Controller) {
	t.Helper()
	client, server := net.Pipe()
	c.conn = channel.NewConn(server)
	c.connected = true
	go func() { _, _ = io.Copy(io.Discard, client) }()
	t.Cleanup(func() { client.Close(); server.Close() })
}

func status(block, active bool, replyTo *uint64) channel.Message {
	return channel.NewStatus(policy.Decision{
		AgentActive: active,
		ShouldBlock: block,
		Timestamp:   time.Now(),
	}, "", replyTo)
}

func TestStatusBlocksByDefaultWhenDisconnected(t *testing.T) {
	c := newTestController(t, newSpyEngine())
	st := c.status()
	if !st.Blocking {
		t.Fatal("disconnected controller must report blocking")
	}
	if st.Connected {
		t.Fatal("controller must start disconnected")
	}
	if st.Last != nil {
		t.Fatalf("last status should be nil before any decision, got %+v", st.Last)
	}
}

func TestApplyDecisionIsIdempotent(t *testing.T) {
	eng := newSpyEngine()
	c := newTestController(t, eng)
	c.connected = true

	c.handleMessage(status(true, true, nil))
	if eng.callCount() != 1 {
		t.Fatalf("engine calls after first block = %d, want 1", eng.callCount())
	}
	if got := len(eng.Active()); got != 3 {
		t.Fatalf("active rules = %d, want 3", got)
	}

	// Same decision again: no enforcement call.
	c.handleMessage(status(true, true, nil))
	if eng.callCount() != 1 {
		t.Fatalf("engine calls after repeat block = %d, want 1", eng.callCount())
	}

	c.handleMessage(status(false, false, nil))
	if eng.callCount() != 2 {
		t.Fatalf("engine calls after allow = %d, want 2", eng.callCount())
	}
	if got := len(eng.Active()); got != 0 {
		t.Fatalf("active rules after allow = %d, want 0", got)
	}

	c.handleMessage(status(false, false, nil))
	if eng.callCount() != 2 {
		t.Fatalf("engine calls after repeat allow = %d, want 2", eng.callCount())
	}
}

func TestDisconnectForcesBlockImmediately(t *testing.T) {
	eng := newSpyEngine()
	c := newTestController(t, eng)
	attachConn(t, c)

	// Reach a cached ALLOW state.
	c.handleMessage(status(false, true, nil))
	if got := len(eng.Active()); got != 0 {
		t.Fatalf("active rules in allow state = %d", got)
	}

	c.handleDisconnect(errors.New("read: connection reset"))

	// BLOCK must be installed by the disconnect handler itself, not at
	// some later decision.
	if got := len(eng.Active()); got != 3 {
		t.Fatalf("active rules after disconnect = %d, want 3", got)
	}
	st := c.status()
	if !st.Blocking || st.Connected {
		t.Fatalf("status after disconnect = %+v", st)
	}
	// The cached decision is still visible so UIs can say why.
	if st.Last == nil || st.Last.ShouldBlock {
		t.Fatalf("last status = %+v, want preserved allow decision", st.Last)
	}
}

func TestRepliesMatchManyOutstandingRequestsOutOfOrder(t *testing.T) {
	eng := newSpyEngine()
	c := newTestController(t, eng)
	attachConn(t, c)

	reply1 := make(chan pollOutcome, 1)
	reply2 := make(chan pollOutcome, 1)
	c.startPoll(reply1)
	c.startPoll(reply2)
	if len(c.pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(c.pending))
	}

	id1, id2 := uint64(1), uint64(2)
	c.handleMessage(status(false, true, &id2))
	c.handleMessage(status(true, false, &id1))

	out2 := <-reply2
	if out2.err != nil || out2.decision.ShouldBlock {
		t.Fatalf("reply 2 outcome = %+v", out2)
	}
	out1 := <-reply1
	if out1.err != nil || !out1.decision.ShouldBlock {
		t.Fatalf("reply 1 outcome = %+v", out1)
	}
	if len(c.pending) != 0 {
		t.Fatalf("pending after replies = %d", len(c.pending))
	}
}

func TestUnknownReplyIDIsDropped(t *testing.T) {
	eng := newSpyEngine()
	c := newTestController(t, eng)
	attachConn(t, c)

	reply := make(chan pollOutcome, 1)
	c.startPoll(reply)

	id3 := uint64(3)
	c.handleMessage(status(true, true, &id3))

	if len(reply) != 0 {
		t.Fatal("stray reply must not resolve an unrelated caller")
	}
	if len(c.pending) != 1 {
		t.Fatalf("pending = %d, want untouched 1", len(c.pending))
	}
	if eng.callCount() != 0 {
		t.Fatal("stray reply must not drive enforcement")
	}
}

func TestExpireRemovesPendingAndLaterReplyIsNoop(t *testing.T) {
	eng := newSpyEngine()
	c := newTestController(t, eng)
	attachConn(t, c)

	reply := make(chan pollOutcome, 1)
	c.startPoll(reply)

	c.handleExpire(1)
	out := <-reply
	if !errors.Is(out.err, ErrTimeout) {
		t.Fatalf("outcome = %+v, want ErrTimeout", out)
	}
	if len(c.pending) != 0 {
		t.Fatalf("pending after expire = %d", len(c.pending))
	}

	// Stray late reply for the expired id: dropped entirely.
	id1 := uint64(1)
	c.handleMessage(status(true, true, &id1))
	if len(reply) != 0 {
		t.Fatal("late reply must not reach the caller")
	}

	// Expiring again is a no-op.
	c.handleExpire(1)
}

func TestPollWhileDisconnectedFailsFast(t *testing.T) {
	c := newTestController(t, newSpyEngine())
	reply := make(chan pollOutcome, 1)
	c.startPoll(reply)
	out := <-reply
	if !errors.Is(out.err, ErrNotConnected) {
		t.Fatalf("outcome = %+v, want ErrNotConnected", out)
	}
}

func TestKeepaliveRetriesFailedForcedBlock(t *testing.T) {
	eng := newSpyEngine()
	c := newTestController(t, eng)
	attachConn(t, c)

	// Cached ALLOW, then the backend rejects the forced BLOCK at
	// disconnect time.
	c.handleMessage(status(false, true, nil))
	if got := len(eng.Active()); got != 0 {
		t.Fatalf("active rules in allow state = %d", got)
	}
	eng.mu.Lock()
	eng.fail = errors.New("backend busy")
	eng.mu.Unlock()
	c.handleDisconnect(errors.New("read: connection reset"))
	if c.currentBlock {
		t.Fatal("currentBlock must not claim a BLOCK the backend rejected")
	}

	// Backend recovers; the next keepalive tick must reinstall BLOCK
	// rather than only attempting a reconnect.
	eng.mu.Lock()
	eng.fail = nil
	eng.mu.Unlock()
	c.handleKeepalive(context.Background())
	if got := len(eng.Active()); got != 3 {
		t.Fatalf("active rules after keepalive = %d, want 3", got)
	}
	if !c.currentBlock {
		t.Fatal("currentBlock must record the applied BLOCK")
	}

	// Further ticks while still disconnected leave the set alone.
	calls := eng.callCount()
	c.handleKeepalive(context.Background())
	if eng.callCount() != calls {
		t.Fatalf("engine calls changed on idle keepalive: %d -> %d", calls, eng.callCount())
	}
}

func TestRuleFailureKeepsLastAppliedState(t *testing.T) {
	eng := newSpyEngine()
	c := newTestController(t, eng)
	c.connected = true
	eng.fail = errors.New("backend rejected")

	c.handleMessage(status(true, true, nil))
	if c.currentBlock {
		t.Fatal("currentBlock must keep its last applied value after a failed transaction")
	}
}

func TestTeardownRemovesRules(t *testing.T) {
	eng := newSpyEngine()
	c := newTestController(t, eng)
	c.connected = true
	c.handleMessage(status(true, true, nil))
	if got := len(eng.Active()); got != 3 {
		t.Fatalf("active rules = %d", got)
	}

	c.teardown()
	if got := len(eng.Active()); got != 0 {
		t.Fatalf("active rules after teardown = %d, want 0", got)
	}
}

func TestPollTimesOutThroughEventLoop(t *testing.T) {
	eng := newSpyEngine()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	// Peer that reads frames and never replies.
	go func() { _, _ = io.Copy(io.Discard, server) }()

	dialed := false
	c, err := New(Options{
		Engine: eng,
		Dial: func(context.Context) (*channel.Conn, error) {
			if dialed {
				return nil, errors.New("gone")
			}
			dialed = true
			return channel.NewConn(client), nil
		},
		RedirectURL: testRedirect,
		PollTimeout: 50 * time.Millisecond,
		Keepalive:   time.Hour,
		Logger:      discardLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = c.Run(ctx) }()

	waitFor(t, time.Second, func() bool {
		st, err := c.Status(ctx)
		return err == nil && st.Connected
	})

	start := time.Now()
	_, err = c.Poll(ctx)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Poll error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond || elapsed > time.Second {
		t.Fatalf("Poll rejected after %v, want ~50ms", elapsed)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestTimestampPreservedInLastStatus(t *testing.T) {
	c := newTestController(t, newSpyEngine())
	c.connected = true
	ts := time.Unix(1700000000, 0)
	msg := channel.NewStatus(policy.Decision{AgentActive: true, ShouldBlock: true, Timestamp: ts}, "agent detected", nil)
	c.handleMessage(msg)

	st := c.status()
	if st.Last == nil {
		t.Fatal("last status missing")
	}
	if st.Last.Reason != "agent detected" {
		t.Fatalf("reason = %q", st.Last.Reason)
	}
	if st.Last.Timestamp.Sub(ts) > time.Millisecond || ts.Sub(st.Last.Timestamp) > time.Millisecond {
		t.Fatalf("timestamp = %v, want ~%v", st.Last.Timestamp, ts)
	}
}
