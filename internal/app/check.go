package app

import (
	"time"

	"xgate/internal/config"
	"xgate/internal/policy"
	"xgate/internal/procscan"
)

// CheckResult is a one-shot local sample and decision, produced without
// any daemon involvement.
type CheckResult struct {
	AgentActive bool      `json:"agent_active"`
	ShouldBlock bool      `json:"should_block"`
	Pattern     string    `json:"pattern"`
	Timestamp   time.Time `json:"timestamp"`
}

var sampleDecision = func(cfg config.Gate) (policy.Decision, error) {
	pattern, err := cfg.Compile()
	if err != nil {
		return policy.Decision{}, err
	}
	sc := procscan.New(pattern, cfg.RequireTerminal)
	return policy.Decide(sc.AgentActive(), cfg.Invert, time.Now()), nil
}

func resetSampleDeps() {
	sampleDecision = func(cfg config.Gate) (policy.Decision, error) {
		pattern, err := cfg.Compile()
		if err != nil {
			return policy.Decision{}, err
		}
		sc := procscan.New(pattern, cfg.RequireTerminal)
		return policy.Decide(sc.AgentActive(), cfg.Invert, time.Now()), nil
	}
}

// Check samples the process table once using the configured pattern.
func (a *App) Check() (CheckResult, error) {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return CheckResult{}, err
	}
	d, err := sampleDecision(cfg)
	if err != nil {
		return CheckResult{}, err
	}
	return CheckResult{
		AgentActive: d.AgentActive,
		ShouldBlock: d.ShouldBlock,
		Pattern:     cfg.WatchPattern,
		Timestamp:   d.Timestamp,
	}, nil
}
