package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"xgate/internal/app"
	"xgate/internal/logging"
	"xgate/internal/monitor"
)

func init() {
	rootCmd.AddCommand(cmdMonitor)
}

var monitorForceRestart bool

func init() {
	cmdMonitor.Flags().BoolVarP(&monitorForceRestart, "force", "f", false, "Restart the monitor if it is already running")
}

var cmdMonitor = &cobra.Command{
	Use:   "monitor",
	Short: "Run the process monitor daemon in the foreground",
	Long:  `The monitor samples the process table on an interval and pushes block/allow decisions to connected controllers over the local socket. If a monitor is already running, nothing happens unless --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if monitor.IsRunning() {
			if !monitorForceRestart {
				pid, err := monitor.RunningPID()
				var message string
				if pid != 0 {
					message = fmt.Sprintf("Monitor is already running (pid %d). Stop it manually or re-run with --force.", pid)
				} else {
					message = "Monitor is already running. Stop it manually or re-run with --force."
				}
				if err != nil {
					message = fmt.Sprintf("Error checking if monitor is running: %v", err)
				}
				fmt.Fprintln(os.Stdout, message)
				return nil
			}
			fmt.Fprintln(os.Stdout, "Stopping existing monitor process...")
			if err := monitor.StopRunning(true); err != nil {
				return err
			}
		}

		facade := app.New(app.Options{
			ConfigPath: configPath,
			Logger:     logging.New("monitor"),
		})
		handle, err := facade.StartMonitor()
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "Started monitor process")
		runSpin := spinner.New(spinner.CharSets[21], 120*time.Millisecond, spinner.WithWriter(os.Stdout))
		runSpin.Suffix = " Watching for agent sessions..."
		runSpin.Start()

		sigc := make(chan os.Signal, 2)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		<-sigc
		runSpin.Stop()
		return handle.Close()
	},
}
