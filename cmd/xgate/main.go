package main

import (
	"context"
	"log"
	"time"

	"github.com/spf13/cobra"

	"xgate/internal/app"
	"xgate/internal/controller"
)

var rootCmd = &cobra.Command{
	Use:   "xgate [command]",
	Short: "xgate: gates distracting sites while an agent CLI runs",
	Long:  `xgate watches the process table for agent CLIs attached to a terminal and blocks a fixed set of sites while one is running. The monitor samples and decides; the watch command enforces.`,
}

var (
	configPath string
	statePath  string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to JSON config file")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "", "Path to the controller state snapshot")
}

// controllerAPI is the subset of app.App the commands use, kept behind a
// factory so tests can stub it.
type controllerAPI interface {
	Status() (app.MonitorStatus, error)
	GateState() (controller.StateSnapshot, error)
	Ping(context.Context, time.Duration) (app.PingResult, error)
	Check() (app.CheckResult, error)
	StopMonitor(force bool) error
}

var controllerFactory = func() controllerAPI {
	return app.New(app.Options{ConfigPath: configPath, StatePath: statePath})
}

func newController() controllerAPI {
	return controllerFactory()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
