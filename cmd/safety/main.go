package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/christian-bunn/elevator-control-system/internal/elevsafety"
	"github.com/christian-bunn/elevator-control-system/internal/elevshm"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s {car name}\n", os.Args[0])
		os.Exit(1)
	}

	carName := os.Args[1]
	region, err := elevshm.Open(carName)
	if err != nil {
		fmt.Printf("Unable to access car %s.\n", carName)
		os.Exit(1)
	}
	defer region.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	monitor := elevsafety.NewMonitor(region, os.Stdout)
	monitor.Run(ctx)
}
