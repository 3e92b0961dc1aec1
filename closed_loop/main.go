package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"mpc-drive-core/utils"
)

func main() {
	var (
		iface    = flag.String("iface", "", "SocketCAN interface for command TX (empty disables)")
		scenPath = flag.String("scenario", "closed_loop/track_s_bend.json", "Scenario JSON file")
		cfgPath  = flag.String("config", "", "MPC tuning YAML (overrides scenario's mpc_config)")
		logLevel = flag.String("log", "info", "trace|debug|info|warn|error")
	)
	flag.Parse()

	log, err := utils.NewFileLogger("closed_loop.log", utils.ParseLevel(*logLevel), true)
	if err != nil {
		_, _ = os.Stderr.WriteString("ERROR: cannot open closed_loop.log: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Close()

	cfg := RunnerConfig{
		Interface:    *iface,
		ScenarioPath: *scenPath,
		ConfigPath:   *cfgPath,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := NewRunner(ctx, cfg, log)
	if err != nil {
		log.Error("Startup failed: %v", err)
		os.Exit(1)
	}
	defer runner.Close()

	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		log.Error("Run failed: %v", err)
		os.Exit(1)
	}
}
