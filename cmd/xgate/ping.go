package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cmdPing)
}

var pingTimeoutSeconds int

func init() {
	cmdPing.Flags().IntVarP(&pingTimeoutSeconds, "timeout", "t", 2, "Timeout in seconds for the monitor round trip")
}

var cmdPing = &cobra.Command{
	Use:   "ping",
	Short: "Round-trip a correlated poll through the running monitor",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newController().Ping(cmd.Context(), time.Duration(pingTimeoutSeconds)*time.Second)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "agent_active=%t should_block=%t rtt=%s\n",
			res.Decision.AgentActive, res.Decision.ShouldBlock, res.RTT.Round(time.Millisecond))
		return nil
	},
}
