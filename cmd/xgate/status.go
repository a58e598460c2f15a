package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cmdStatus)
}

var cmdStatus = &cobra.Command{
	Use:   "status",
	Short: "Show monitor liveness and gate state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl := newController()
		out := cmd.OutOrStdout()

		st, err := ctrl.Status()
		if err != nil {
			fmt.Fprintf(out, "monitor: running, pid unknown (%v)\n", err)
		} else if st.Running {
			fmt.Fprintf(out, "monitor: running (pid %d)\n", st.PID)
		} else {
			fmt.Fprintln(out, "monitor: not running")
		}

		snap, err := ctrl.GateState()
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Fprintln(out, "gate: no state recorded (is `xgate watch` running?)")
				return nil
			}
			return fmt.Errorf("read gate state: %w", err)
		}

		mode := "allowing"
		if snap.Blocking {
			mode = "blocking"
		}
		channelState := "disconnected (fail closed)"
		if snap.Connected {
			channelState = "connected"
		}
		fmt.Fprintf(out, "gate: %s, channel %s\n", mode, channelState)
		if last := snap.Last; last != nil {
			fmt.Fprintf(out, "last decision: agent_active=%t should_block=%t at %s\n",
				last.AgentActive, last.ShouldBlock, last.Timestamp.Format(time.RFC1123))
			if last.Reason != "" {
				fmt.Fprintf(out, "reason: %s\n", last.Reason)
			}
		}
		if snap.UpdatedUnix > 0 {
			fmt.Fprintf(out, "state written: %s\n", time.Unix(snap.UpdatedUnix, 0).Format(time.RFC1123))
		}
		return nil
	},
}
