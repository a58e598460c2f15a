//go:build darwin

package rules

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

const pfAnchor = "com.xgate.redirect"

// PFApplier renders the active rule set into a pf anchor. pf resolves
// the domain names when the ruleset is loaded, so the anchor has to be
// reloaded rather than edited in place; that matches the whole-set
// replace contract.
type PFApplier struct {
	// Anchor overrides the default anchor name.
	Anchor string
}

// NewPlatformApplier returns the enforcement backend for this OS.
func NewPlatformApplier() Applier {
	return &PFApplier{}
}

func (a *PFApplier) anchor() string {
	if a.Anchor != "" {
		return a.Anchor
	}
	return pfAnchor
}

// Apply loads the rendered ruleset into the anchor, or flushes the
// anchor when the set is empty. Flushing an already-empty anchor is a
// no-op for pf, which keeps removal idempotent.
func (a *PFApplier) Apply(ctx context.Context, active []Rule) error {
	if len(active) == 0 {
		out, err := exec.CommandContext(ctx, "pfctl", "-a", a.anchor(), "-F", "rules").CombinedOutput()
		if err != nil {
			return fmt.Errorf("flush pf anchor: %w: %s", err, strings.TrimSpace(string(out)))
		}
		return nil
	}

	rendered, err := renderPF(active)
	if err != nil {
		return err
	}
	file, err := os.CreateTemp("", "xgate_pf_*.conf")
	if err != nil {
		return fmt.Errorf("write pf rules: %w", err)
	}
	defer os.Remove(file.Name())
	if _, err := file.WriteString(rendered); err != nil {
		file.Close()
		return fmt.Errorf("write pf rules: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("write pf rules: %w", err)
	}

	out, err := exec.CommandContext(ctx, "pfctl", "-a", a.anchor(), "-f", file.Name(), "-E").CombinedOutput()
	if err != nil {
		return fmt.Errorf("load pf anchor: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func renderPF(active []Rule) (string, error) {
	var b strings.Builder
	b.WriteString("# xgate managed redirect rules\n")
	for _, r := range active {
		host, port, err := redirectHostPort(r.RedirectURL)
		if err != nil {
			return "", fmt.Errorf("rule %d: %w", r.ID, err)
		}
		fmt.Fprintf(&b, "rdr pass inet proto tcp from any to %s port {80, 443} -> %s port %s\n",
			r.Domain, host, port)
	}
	return b.String(), nil
}
