// Package monitor implements the process monitor: it samples the
// process table at a fixed cadence, derives gate decisions, and serves
// them over the message channel.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"xgate/internal/channel"
	"xgate/internal/config"
	"xgate/internal/policy"
	"xgate/internal/procscan"
)

// Watcher runs watch sessions against the configured scanner. The loop
// is single-threaded: sampling happens synchronously inside each tick,
// and the poll interval is a minimum spacing between samples, not a
// compensated fixed period.
type Watcher struct {
	cfg config.Gate
	log *slog.Logger

	// swapped in tests
	agentActive func() bool
	now         func() time.Time
}

// New compiles the watch pattern and builds a Watcher. Configuration
// errors here are fatal to the monitor; callers report them and exit.
func New(cfg config.Gate, log *slog.Logger) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	re, err := cfg.Compile()
	if err != nil {
		return nil, err
	}
	scan := procscan.New(re, cfg.RequireTerminal)
	return &Watcher{
		cfg:         cfg,
		log:         log,
		agentActive: scan.AgentActive,
		now:         time.Now,
	}, nil
}

// Sample takes one fresh decision.
func (w *Watcher) Sample() policy.Decision {
	return policy.Decide(w.agentActive(), w.cfg.Invert, w.now())
}

func reasonFor(d policy.Decision) string {
	if d.AgentActive {
		return "agent detected"
	}
	return "no agent detected"
}

// Serve runs one watch session over conn until the peer goes away or a
// write fails. It pushes an initial decision immediately, then pushes on
// change after each tick and sends heartbeats at the configured
// interval; poll requests are answered with a freshly sampled decision
// tagged with the request id.
func (w *Watcher) Serve(ctx context.Context, conn *channel.Conn) error {
	done := make(chan struct{})
	defer close(done)

	inbox := make(chan channel.Message)
	var readErr error
	go func() {
		defer close(inbox)
		for {
			msg, err := conn.Read()
			if err != nil {
				if errors.Is(err, channel.ErrMalformed) {
					w.log.Debug("ignoring malformed message", "error", err)
					continue
				}
				readErr = err
				return
			}
			select {
			case inbox <- msg:
			case <-done:
				return
			}
		}
	}()

	last := w.Sample()
	if err := w.push(conn, last, nil); err != nil {
		return err
	}
	lastSentAt := w.now()
	w.log.Info("watch session started",
		"should_block", last.ShouldBlock, "agent_active", last.AgentActive)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-inbox:
			if !ok {
				if readErr != nil && !errors.Is(readErr, io.EOF) {
					return fmt.Errorf("read channel: %w", readErr)
				}
				w.log.Info("channel closed by peer")
				return nil
			}
			switch msg.Type {
			case channel.KindHello:
				d := w.Sample()
				if err := w.push(conn, d, msg.ID); err != nil {
					return err
				}
				last, lastSentAt = d, w.now()
			case channel.KindPoll:
				// Fresh sample for every reply, even if nothing changed.
				if err := w.push(conn, w.Sample(), msg.ID); err != nil {
					return err
				}
			case channel.KindPing:
				// traffic only, no reply
			}

		case <-ticker.C:
			d := w.Sample()
			changed := d.ShouldBlock != last.ShouldBlock
			heartbeatDue := w.now().Sub(lastSentAt) >= w.cfg.Heartbeat
			if !changed && !heartbeatDue {
				continue
			}
			if changed {
				w.log.Info("decision changed",
					"should_block", d.ShouldBlock, "agent_active", d.AgentActive)
			}
			if err := w.push(conn, d, nil); err != nil {
				return err
			}
			last, lastSentAt = d, w.now()
		}
	}
}

func (w *Watcher) push(conn *channel.Conn, d policy.Decision, replyTo *uint64) error {
	if err := conn.Write(channel.NewStatus(d, reasonFor(d), replyTo)); err != nil {
		return fmt.Errorf("write decision: %w", err)
	}
	return nil
}

// RunStdio serves a single session over the process's stdin/stdout, the
// shape the browser-registered native host endpoint runs in. Channel
// failure terminates the session; the spawner owns restarts.
func RunStdio(ctx context.Context, cfg config.Gate, log *slog.Logger, r io.Reader, wr io.WriteCloser) error {
	w, err := New(cfg, log)
	if err != nil {
		return err
	}
	return w.Serve(ctx, channel.NewPipeConn(r, wr))
}
