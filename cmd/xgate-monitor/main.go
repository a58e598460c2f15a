package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"xgate/internal/app"
	"xgate/internal/config"
	"xgate/internal/logging"
	"xgate/internal/monitor"
)

// Native-messaging entry point. The browser launches this binary with
// the extension origin as a positional argument and speaks the framed
// protocol over stdin/stdout, so all human-facing output goes to stderr
// or the log file.
func main() {
	configPath := flag.String("config", "", "Path to JSON config file")
	check := flag.Bool("check", false, "Sample once, print the decision as JSON, and exit")
	flag.Parse()

	if *check {
		facade := app.New(app.Options{ConfigPath: *configPath})
		res, err := facade.Check()
		if err != nil {
			log.Fatalf("check failed: %v", err)
		}
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			log.Fatalf("encode result: %v", err)
		}
		fmt.Fprintln(os.Stdout, string(data))
		return
	}

	logger := logging.New("native-host")
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("native host starting", "origin", flag.Arg(0))
	if err := monitor.RunStdio(ctx, cfg, logger, os.Stdin, os.Stdout); err != nil {
		logger.Error("session ended with error", "error", err)
		os.Exit(1)
	}
	logger.Info("native host exiting")
}
