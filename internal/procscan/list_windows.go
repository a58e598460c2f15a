//go:build windows

package procscan

import (
	"os/exec"
	"strings"
)

// platformListProcesses enumerates process command lines through CIM.
// Windows has no portable notion of a controlling terminal, so every row
// reports an empty TTY, which counts as terminal-attached; detection
// degrades to a pure existence check.
func platformListProcesses() ([]Process, error) {
	out, err := exec.Command(
		"powershell", "-NoProfile", "-Command",
		"Get-CimInstance Win32_Process | Select-Object -ExpandProperty CommandLine",
	).Output()
	if err != nil {
		return nil, err
	}
	var procs []Process
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		procs = append(procs, Process{Command: line})
	}
	return procs, nil
}
