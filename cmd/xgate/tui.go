package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"xgate/internal/app"
	"xgate/internal/tui"
)

func init() {
	rootCmd.AddCommand(cmdTUI)
}

var cmdTUI = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive status dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		facade := app.New(app.Options{ConfigPath: configPath, StatePath: statePath})
		if err := tui.Run(facade); err != nil {
			return fmt.Errorf("tui exited with error: %w", err)
		}
		return nil
	},
}
