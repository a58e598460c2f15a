//go:build !windows

package procscan

import (
	"os/exec"
	"strconv"
	"strings"
	"unicode"
)

// platformListProcesses enumerates processes via ps. The "=" suffixes
// suppress header lines; the column order is fixed so the command, which
// may contain whitespace, comes last.
func platformListProcesses() ([]Process, error) {
	out, err := exec.Command("ps", "-axo", "pid=,tty=,command=").Output()
	if err != nil {
		return nil, err
	}
	return parsePS(string(out)), nil
}

func parsePS(out string) []Process {
	var procs []Process
	for _, line := range strings.Split(out, "\n") {
		fields := splitColumns(line, 3)
		if len(fields) < 3 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		procs = append(procs, Process{
			PID:     pid,
			TTY:     fields[1],
			Command: fields[2],
		})
	}
	return procs
}

// splitColumns splits on runs of whitespace into at most n fields,
// keeping internal whitespace of the final field intact.
func splitColumns(line string, n int) []string {
	var fields []string
	rest := strings.TrimSpace(line)
	for len(fields) < n-1 {
		idx := strings.IndexFunc(rest, unicode.IsSpace)
		if idx < 0 {
			break
		}
		fields = append(fields, rest[:idx])
		rest = strings.TrimLeftFunc(rest[idx:], unicode.IsSpace)
	}
	if rest != "" {
		fields = append(fields, rest)
	}
	return fields
}
