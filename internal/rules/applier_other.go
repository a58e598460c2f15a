//go:build !darwin && !linux

package rules

// NewPlatformApplier returns nil on platforms without a packet-level
// backend; the table still tracks the rule set for the status surface.
func NewPlatformApplier() Applier {
	return nil
}
