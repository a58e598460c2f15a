// Package controller owns enforcement state. It consumes decisions from
// the process monitor and applies them to the redirect rule set, failing
// closed whenever the channel is down.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"xgate/internal/channel"
	"xgate/internal/policy"
	"xgate/internal/rules"
)

// DefaultPollTimeout bounds how long a correlated poll waits for its
// reply.
const DefaultPollTimeout = 1500 * time.Millisecond

// DefaultKeepalive paces the channel ping and reconnect attempts.
const DefaultKeepalive = 25 * time.Second

var (
	// ErrTimeout reports a poll whose reply did not arrive in time. The
	// failure is local to that caller; enforcement state is untouched.
	ErrTimeout = errors.New("poll timed out")
	// ErrNotConnected reports an operation that needs a live channel.
	ErrNotConnected = errors.New("not connected to monitor")
)

// LastStatus mirrors the most recent decision message received.
type LastStatus struct {
	ShouldBlock bool      `json:"should_block"`
	AgentActive bool      `json:"agent_active"`
	Reason      string    `json:"reason,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Status is the state exposed to UI collaborators. Blocking is true
// whenever the channel is down, regardless of the last decision.
type Status struct {
	Blocking  bool
	Connected bool
	Last      *LastStatus
}

// DialFunc opens a channel to the process monitor.
type DialFunc func(ctx context.Context) (*channel.Conn, error)

// Options configures a Controller.
type Options struct {
	Engine      rules.Engine
	Dial        DialFunc
	RedirectURL string
	Keepalive   time.Duration
	PollTimeout time.Duration
	// StatePath, when set, receives a JSON snapshot of the enforcement
	// state after every change.
	StatePath string
	Logger    *slog.Logger
}

// Controller is the single writer of enforcement state. All mutable
// fields below the marker are owned by the event loop: handlers for
// message arrival, timer firing, and queries run serially and always to
// completion, so no handler ever observes a half-applied transaction.
type Controller struct {
	engine      rules.Engine
	dial        DialFunc
	redirectURL string
	keepalive   time.Duration
	pollTimeout time.Duration
	statePath   string
	log         *slog.Logger
	now         func() time.Time

	msgs chan connEvent
	cmds chan command
	done chan struct{}

	// event-loop owned state
	conn         *channel.Conn
	gen          uint64
	connected    bool
	currentBlock bool
	last         *LastStatus
	lastUpdate   time.Time
	pending      map[uint64]*pendingRequest
	nextID       uint64
}

type connEvent struct {
	gen uint64
	msg *channel.Message
	err error
}

type command interface{ isCommand() }

type statusCmd struct{ reply chan Status }

type pollCmd struct{ reply chan pollOutcome }

type expireCmd struct{ id uint64 }

func (statusCmd) isCommand() {}
func (pollCmd) isCommand()   {}
func (expireCmd) isCommand() {}

type pollOutcome struct {
	decision policy.Decision
	err      error
}

// New validates options and builds a Controller. Run must be called for
// it to do anything.
func New(opts Options) (*Controller, error) {
	if opts.Engine == nil {
		return nil, errors.New("controller: engine is required")
	}
	if opts.Dial == nil {
		return nil, errors.New("controller: dial is required")
	}
	if opts.RedirectURL == "" {
		return nil, errors.New("controller: redirect URL is required")
	}
	if opts.Keepalive <= 0 {
		opts.Keepalive = DefaultKeepalive
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		engine:      opts.Engine,
		dial:        opts.Dial,
		redirectURL: opts.RedirectURL,
		keepalive:   opts.Keepalive,
		pollTimeout: opts.PollTimeout,
		statePath:   opts.StatePath,
		log:         log,
		now:         time.Now,
		msgs:        make(chan connEvent, 16),
		cmds:        make(chan command),
		done:        make(chan struct{}),
		pending:     make(map[uint64]*pendingRequest),
	}, nil
}

// Run drives the event loop until ctx is cancelled. Enforcement starts
// forced to BLOCK before any decision is available.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)

	c.forceBlock("starting disconnected")
	c.attemptConnect(ctx)

	keepalive := time.NewTicker(c.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			c.teardown()
			return ctx.Err()

		case ev := <-c.msgs:
			if ev.gen != c.gen {
				continue // stale event from an abandoned connection
			}
			if ev.err != nil {
				c.handleDisconnect(ev.err)
				continue
			}
			c.handleMessage(*ev.msg)

		case <-keepalive.C:
			c.handleKeepalive(ctx)

		case cmd := <-c.cmds:
			switch cmd := cmd.(type) {
			case statusCmd:
				cmd.reply <- c.status()
			case pollCmd:
				c.startPoll(cmd.reply)
			case expireCmd:
				c.handleExpire(cmd.id)
			}
		}
	}
}

// Status answers the UI-facing query.
func (c *Controller) Status(ctx context.Context) (Status, error) {
	cmd := statusCmd{reply: make(chan Status, 1)}
	select {
	case c.cmds <- cmd:
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
	select {
	case st := <-cmd.reply:
		return st, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// Poll requests a fresh decision from the monitor and waits for the
// correlated reply.
func (c *Controller) Poll(ctx context.Context) (policy.Decision, error) {
	cmd := pollCmd{reply: make(chan pollOutcome, 1)}
	select {
	case c.cmds <- cmd:
	case <-ctx.Done():
		return policy.Decision{}, ctx.Err()
	}
	select {
	case out := <-cmd.reply:
		return out.decision, out.err
	case <-ctx.Done():
		return policy.Decision{}, ctx.Err()
	}
}

// --- event handlers: invoked only from the event loop ---

func (c *Controller) handleMessage(msg channel.Message) {
	if msg.Type != channel.KindStatus {
		return
	}
	if msg.ReplyTo != nil {
		c.resolvePending(msg)
		return
	}
	c.applyDecision(msg)
}

// applyDecision replaces the installed rule set when the decision flips,
// then records it. Identical decisions touch nothing but the status
// mirror.
func (c *Controller) applyDecision(msg channel.Message) {
	d := msg.Decision()
	if d.ShouldBlock != c.currentBlock {
		if err := c.applyRules(d.ShouldBlock); err != nil {
			c.log.Error("rule application failed", "should_block", d.ShouldBlock, "error", err)
			return
		}
		c.currentBlock = d.ShouldBlock
		c.log.Info("enforcement changed", "blocking", c.currentBlock, "reason", msg.Reason)
	}
	c.last = &LastStatus{
		ShouldBlock: d.ShouldBlock,
		AgentActive: d.AgentActive,
		Reason:      msg.Reason,
		Timestamp:   d.Timestamp,
	}
	c.lastUpdate = c.now()
	c.writeState()
}

// handleDisconnect forces BLOCK immediately; disconnection always wins
// over any cached ALLOW state.
func (c *Controller) handleDisconnect(cause error) {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	wasConnected := c.connected
	c.connected = false
	c.gen++
	c.failPending(ErrNotConnected)
	if wasConnected {
		c.log.Warn("channel disconnected", "error", cause)
	}
	c.forceBlock("disconnected")
}

func (c *Controller) forceBlock(reason string) {
	if !c.currentBlock {
		if err := c.applyRules(true); err != nil {
			// currentBlock keeps its last successfully applied value; the
			// status surface still reports blocking while disconnected.
			c.log.Error("fail-closed rule application failed", "error", err)
			c.writeState()
			return
		}
		c.currentBlock = true
		c.log.Info("enforcement forced to block", "reason", reason)
	}
	c.lastUpdate = c.now()
	c.writeState()
}

func (c *Controller) applyRules(block bool) error {
	tx := rules.AllowTransaction()
	if block {
		tx = rules.BlockTransaction(c.redirectURL)
	}
	return c.engine.Replace(context.Background(), tx)
}

func (c *Controller) handleKeepalive(ctx context.Context) {
	if !c.connected {
		// A forced BLOCK that failed when the channel dropped must not
		// stay unapplied; each keepalive tick retries it until the
		// backend accepts.
		if !c.currentBlock {
			c.forceBlock("keepalive retry")
		}
		c.attemptConnect(ctx)
		return
	}
	if err := c.conn.Write(channel.NewPing()); err != nil {
		c.handleDisconnect(fmt.Errorf("write ping: %w", err))
	}
}

func (c *Controller) attemptConnect(ctx context.Context) {
	dialCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	conn, err := c.dial(dialCtx)
	if err != nil {
		c.log.Debug("connect attempt failed", "error", err)
		return
	}
	c.conn = conn
	c.connected = true
	c.gen++
	go c.readLoop(conn, c.gen)
	if err := conn.Write(channel.NewHello()); err != nil {
		c.handleDisconnect(fmt.Errorf("write hello: %w", err))
		return
	}
	c.log.Info("connected to monitor")
	c.writeState()
}

func (c *Controller) readLoop(conn *channel.Conn, gen uint64) {
	for {
		msg, err := conn.Read()
		if errors.Is(err, channel.ErrMalformed) {
			continue
		}
		ev := connEvent{gen: gen}
		if err != nil {
			ev.err = err
		} else {
			ev.msg = &msg
		}
		select {
		case c.msgs <- ev:
		case <-c.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (c *Controller) status() Status {
	st := Status{
		Blocking:  c.currentBlock || !c.connected,
		Connected: c.connected,
	}
	if c.last != nil {
		last := *c.last
		st.Last = &last
	}
	return st
}

// teardown runs on deliberate shutdown. Unlike a channel drop, stopping
// the controller removes the redirect rules: leaving them pointing at a
// dead block page would break the gated domains outright.
func (c *Controller) teardown() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.failPending(ErrNotConnected)
	if err := c.applyRules(false); err != nil {
		c.log.Error("rule cleanup failed on shutdown", "error", err)
		return
	}
	c.currentBlock = false
	c.writeState()
}
