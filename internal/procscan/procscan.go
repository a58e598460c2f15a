// Package procscan samples the OS process table and detects whether a
// watched agent process is currently running.
package procscan

import (
	"regexp"
	"strings"
)

// Process is one sampled row of the process table. Rows are recreated on
// every sample and never persisted.
type Process struct {
	PID     int
	TTY     string
	Command string
}

// HasTerminal reports whether the row's TTY column names a real
// controlling terminal. ps prints "?" (Linux) or "??" (macOS) for
// processes without one.
func (p Process) HasTerminal() bool {
	return !strings.Contains(p.TTY, "?")
}

// listProcesses is swapped out in tests; the real implementation is
// platform specific.
var listProcesses = platformListProcesses

// Scanner matches sampled processes against the configured watch pattern.
type Scanner struct {
	pattern         *regexp.Regexp
	requireTerminal bool
}

// New builds a Scanner for the given compiled pattern.
func New(pattern *regexp.Regexp, requireTerminal bool) *Scanner {
	return &Scanner{pattern: pattern, requireTerminal: requireTerminal}
}

// AgentActive samples the process table once and reports whether any
// process matches. Any single match counts; there is no precedence among
// matches. An empty or unreadable process table reports false, never an
// error.
func (s *Scanner) AgentActive() bool {
	procs, err := listProcesses()
	if err != nil {
		return false
	}
	return s.Match(procs)
}

// Match applies the watch pattern and the terminal requirement to an
// already-sampled set of rows.
func (s *Scanner) Match(procs []Process) bool {
	for _, p := range procs {
		if s.requireTerminal && !p.HasTerminal() {
			continue
		}
		if s.pattern.MatchString(p.Command) {
			return true
		}
	}
	return false
}
