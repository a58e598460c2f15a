package app

import (
	"context"
	"fmt"
	"time"

	"xgate/internal/channel"
	"xgate/internal/policy"
)

// PingResult is one correlated round trip through a running monitor.
type PingResult struct {
	Decision policy.Decision
	RTT      time.Duration
}

// Ping sends a poll to the monitor and waits for the matching reply,
// skipping any unsolicited pushes that arrive in between.
func (a *App) Ping(ctx context.Context, timeout time.Duration) (PingResult, error) {
	var res PingResult
	err := a.withConn(ctx, timeout, func(ctx context.Context, conn monitorConn) error {
		const pollID uint64 = 1
		start := time.Now()
		if err := conn.Write(channel.NewPoll(pollID)); err != nil {
			return fmt.Errorf("send poll: %w", err)
		}
		for {
			msg, err := conn.Read()
			if err != nil {
				if ctx.Err() != nil {
					return fmt.Errorf("monitor did not reply within %s", timeout)
				}
				return fmt.Errorf("read reply: %w", err)
			}
			if msg.Type != channel.KindStatus || msg.ReplyTo == nil || *msg.ReplyTo != pollID {
				continue
			}
			res = PingResult{Decision: msg.Decision(), RTT: time.Since(start)}
			return nil
		}
	})
	return res, err
}
