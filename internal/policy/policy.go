// Package policy derives block/allow decisions from process activity.
package policy

import "time"

// Decision is the computed outcome of one sampling cycle.
type Decision struct {
	AgentActive bool
	ShouldBlock bool
	Timestamp   time.Time
}

// Decide maps the observed agent state onto a gate decision. With invert
// set, the gated domains are a reward: they open while the agent runs and
// close when it stops.
func Decide(agentActive, invert bool, now time.Time) Decision {
	block := agentActive
	if invert {
		block = !agentActive
	}
	return Decision{
		AgentActive: agentActive,
		ShouldBlock: block,
		Timestamp:   now,
	}
}
