package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/christian-bunn/elevator-control-system/internal/elevconfig"
	"github.com/christian-bunn/elevator-control-system/internal/elevctl"
	"github.com/christian-bunn/elevator-control-system/internal/logger"
)

const CONFIG_PATH = "controller.yaml"

var Logger = logger.GetLogger()

func main() {
	elevconfig.LoadEnv()
	logger.GetLoggerConfigured(logger.LevelFromEnv())

	cfg, err := elevconfig.LoadController(CONFIG_PATH)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := elevctl.NewServer(cfg)
	if err := server.Serve(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	Logger.Info().Msg("Controller stopped")
}
