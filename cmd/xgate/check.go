package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cmdCheck)
}

var cmdCheck = &cobra.Command{
	Use:   "check",
	Short: "Sample the process table once and print the decision as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newController().Check()
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}
