package controller

import (
	"time"

	"xgate/internal/channel"
)

// pendingRequest correlates one outstanding poll with its caller. It
// lives from request until matching reply or deadline, whichever comes
// first.
type pendingRequest struct {
	id    uint64
	reply chan pollOutcome
	timer *time.Timer
}

// startPoll issues a correlated request. Multiple polls may be
// outstanding at once; replies are matched strictly by id.
func (c *Controller) startPoll(reply chan pollOutcome) {
	if !c.connected {
		reply <- pollOutcome{err: ErrNotConnected}
		return
	}

	c.nextID++
	id := c.nextID
	if err := c.conn.Write(channel.NewPoll(id)); err != nil {
		reply <- pollOutcome{err: err}
		c.handleDisconnect(err)
		return
	}

	req := &pendingRequest{id: id, reply: reply}
	req.timer = time.AfterFunc(c.pollTimeout, func() {
		select {
		case c.cmds <- expireCmd{id: id}:
		case <-c.done:
		}
	})
	c.pending[id] = req
}

// resolvePending delivers a reply to its caller. A reply that matches no
// pending id is dropped without side effects.
func (c *Controller) resolvePending(msg channel.Message) {
	id := *msg.ReplyTo
	req, ok := c.pending[id]
	if !ok {
		c.log.Debug("dropping reply with unknown id", "id", id)
		return
	}
	delete(c.pending, id)
	req.timer.Stop()
	req.reply <- pollOutcome{decision: msg.Decision()}

	// A matched reply is a decision like any other.
	c.applyDecision(msg)
}

// handleExpire fails one caller on deadline. Enforcement state is left
// untouched, and a stray reply arriving later finds nothing to resolve.
func (c *Controller) handleExpire(id uint64) {
	req, ok := c.pending[id]
	if !ok {
		return
	}
	delete(c.pending, id)
	req.reply <- pollOutcome{err: ErrTimeout}
}

func (c *Controller) failPending(err error) {
	for id, req := range c.pending {
		req.timer.Stop()
		delete(c.pending, id)
		req.reply <- pollOutcome{err: err}
	}
}
