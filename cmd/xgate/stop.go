package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cmdStop)
}

var stopForce bool

func init() {
	cmdStop.Flags().BoolVarP(&stopForce, "force", "f", false, "SIGKILL the monitor if it does not stop in time")
}

var cmdStop = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running monitor daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newController().StopMonitor(stopForce); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Monitor stopped")
		return nil
	},
}
