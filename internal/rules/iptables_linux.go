//go:build linux

package rules

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const natChain = "XGATE_REDIRECT"

// IPTablesApplier rebuilds a dedicated nat chain from the active rule
// set. The chain is flushed and repopulated on every change, so the
// visible rules always correspond to exactly one applied transaction.
type IPTablesApplier struct{}

// NewPlatformApplier returns the enforcement backend for this OS.
func NewPlatformApplier() Applier {
	return &IPTablesApplier{}
}

// Apply rebuilds the chain, or tears it down when the set is empty.
// Teardown tolerates absent rules so removal stays idempotent.
func (a *IPTablesApplier) Apply(ctx context.Context, active []Rule) error {
	if len(active) == 0 {
		teardownChain(ctx)
		return nil
	}

	// Create-if-missing, then flush; both are safe to repeat.
	exec.CommandContext(ctx, "iptables", "-t", "nat", "-N", natChain).Run()
	if out, err := exec.CommandContext(ctx, "iptables", "-t", "nat", "-F", natChain).CombinedOutput(); err != nil {
		return fmt.Errorf("flush %s: %w: %s", natChain, err, strings.TrimSpace(string(out)))
	}

	for _, r := range active {
		host, port, err := redirectHostPort(r.RedirectURL)
		if err != nil {
			return fmt.Errorf("rule %d: %w", r.ID, err)
		}
		for _, dport := range []string{"80", "443"} {
			out, err := exec.CommandContext(ctx, "iptables", "-t", "nat",
				"-A", natChain,
				"-p", "tcp", "-d", r.Domain, "--dport", dport,
				"-j", "DNAT", "--to-destination", host+":"+port,
			).CombinedOutput()
			if err != nil {
				return fmt.Errorf("install rule %d: %w: %s", r.ID, err, strings.TrimSpace(string(out)))
			}
		}
	}

	// Hook the chain into OUTPUT once.
	if exec.CommandContext(ctx, "iptables", "-t", "nat", "-C", "OUTPUT", "-j", natChain).Run() != nil {
		out, err := exec.CommandContext(ctx, "iptables", "-t", "nat", "-I", "OUTPUT", "1", "-j", natChain).CombinedOutput()
		if err != nil {
			return fmt.Errorf("hook %s into OUTPUT: %w: %s", natChain, err, strings.TrimSpace(string(out)))
		}
	}
	return nil
}

func teardownChain(ctx context.Context) {
	exec.CommandContext(ctx, "iptables", "-t", "nat", "-D", "OUTPUT", "-j", natChain).Run()
	exec.CommandContext(ctx, "iptables", "-t", "nat", "-F", natChain).Run()
	exec.CommandContext(ctx, "iptables", "-t", "nat", "-X", natChain).Run()
}
