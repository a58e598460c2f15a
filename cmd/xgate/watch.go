package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"xgate/internal/blockpage"
	gatectl "xgate/internal/controller"
	"xgate/internal/logging"
	"xgate/internal/monitor"
	"xgate/internal/rules"
)

func init() {
	rootCmd.AddCommand(cmdWatch)
}

var (
	watchPageAddr string
	watchNoRules  bool
)

func init() {
	cmdWatch.Flags().StringVar(&watchPageAddr, "page", blockpage.DefaultAddr, "Address for the local block page")
	cmdWatch.Flags().BoolVar(&watchNoRules, "dry-run", false, "Track state without installing redirect rules")
}

var cmdWatch = &cobra.Command{
	Use:   "watch",
	Short: "Run the gate controller against the monitor",
	Long:  `Connects to the running monitor, applies redirect rules for the gated domains on every decision flip, and serves the local block page. Enforcement starts blocked and stays blocked whenever the monitor is unreachable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logging.New("watch")

		var applier rules.Applier
		if !watchNoRules {
			applier = rules.NewPlatformApplier()
			if applier == nil {
				fmt.Fprintln(os.Stderr, "No rule backend for this platform; tracking state only.")
			}
		}
		table := rules.NewTable(applier)

		path := statePath
		if path == "" {
			path = gatectl.DefaultStatePath()
		}

		var ctrl *gatectl.Controller
		page := blockpage.New(watchPageAddr, func(ctx context.Context) (blockpage.Status, error) {
			st, err := ctrl.Status(ctx)
			if err != nil {
				return blockpage.Status{}, err
			}
			bs := blockpage.Status{Blocking: st.Blocking, Connected: st.Connected}
			if st.Last != nil {
				bs.AgentActive = st.Last.AgentActive
				bs.Reason = st.Last.Reason
				bs.Timestamp = st.Last.Timestamp
			}
			return bs, nil
		}, log)

		ctrl, err := gatectl.New(gatectl.Options{
			Engine:      table,
			Dial:        monitor.Dial,
			RedirectURL: page.URL(),
			StatePath:   path,
			Logger:      log,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pageErr := make(chan error, 1)
		go func() { pageErr <- page.Run(ctx) }()

		fmt.Fprintln(os.Stdout, "Gate controller running. Ctrl+C to stop (rules are removed on exit).")
		if err := ctrl.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		stop()
		if err := <-pageErr; err != nil {
			return err
		}
		return nil
	},
}
