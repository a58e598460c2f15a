package policy

import (
	"testing"
	"time"
)

func TestDecide(t *testing.T) {
	cases := []struct {
		active, invert, block bool
	}{
		{active: true, invert: false, block: true},
		{active: true, invert: true, block: false},
		{active: false, invert: false, block: false},
		{active: false, invert: true, block: true},
	}
	now := time.Now()
	for _, tc := range cases {
		d := Decide(tc.active, tc.invert, now)
		if d.ShouldBlock != tc.block {
			t.Errorf("Decide(active=%t, invert=%t) block = %t, want %t",
				tc.active, tc.invert, d.ShouldBlock, tc.block)
		}
		if d.AgentActive != tc.active {
			t.Errorf("Decide(active=%t, invert=%t) active = %t", tc.active, tc.invert, d.AgentActive)
		}
		if !d.Timestamp.Equal(now) {
			t.Errorf("timestamp not preserved: %v", d.Timestamp)
		}
	}
}
