//go:build !windows

package procscan

import "testing"

func TestParsePS(t *testing.T) {
	out := "  1234 ttys001   /bin/zsh -il\n" +
		" 5678 ??       /usr/libexec/somethingd --flag value\n" +
		"garbage line\n" +
		"   12\n" +
		"\n" +
		"  42 pts/0    node /home/u/bin/codex resume abc\n"

	procs := parsePS(out)
	if len(procs) != 3 {
		t.Fatalf("parsed %d rows, want 3: %+v", len(procs), procs)
	}
	if procs[0].PID != 1234 || procs[0].TTY != "ttys001" || procs[0].Command != "/bin/zsh -il" {
		t.Errorf("row 0 = %+v", procs[0])
	}
	if procs[1].PID != 5678 || procs[1].TTY != "??" {
		t.Errorf("row 1 = %+v", procs[1])
	}
	if procs[2].Command != "node /home/u/bin/codex resume abc" {
		t.Errorf("row 2 command = %q", procs[2].Command)
	}
}
