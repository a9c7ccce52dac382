package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/christian-bunn/elevator-control-system/internal/elevcar"
	"github.com/christian-bunn/elevator-control-system/internal/elevconfig"
	"github.com/christian-bunn/elevator-control-system/internal/elevfloor"
	"github.com/christian-bunn/elevator-control-system/internal/elevshm"
	"github.com/christian-bunn/elevator-control-system/internal/logger"
)

var Logger = logger.GetLogger()

func main() {
	if len(os.Args) != 5 {
		fmt.Fprintf(os.Stderr, "Usage: %s {name} {lowest floor} {highest floor} {delay}\n", os.Args[0])
		os.Exit(1)
	}

	name := os.Args[1]
	lowest, lowErr := elevfloor.Parse(os.Args[2])
	highest, highErr := elevfloor.Parse(os.Args[3])
	delayMs, delayErr := strconv.Atoi(os.Args[4])

	if name == "" || strings.ContainsRune(name, '/') ||
		lowErr != nil || highErr != nil || delayErr != nil || delayMs <= 0 ||
		elevfloor.Compare(lowest, highest) > 0 {
		fmt.Fprintf(os.Stderr, "Invalid arguments.\n")
		os.Exit(1)
	}
	delay := time.Duration(delayMs) * time.Millisecond

	elevconfig.LoadEnv()
	logger.GetLoggerConfigured(logger.LevelFromEnv())

	region, err := elevshm.Create(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create shared memory for car %s.\n", name)
		os.Exit(1)
	}

	region.Lock()
	region.Initialise(lowest)
	region.Unlock()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	Logger.Info().Msgf("Car %s starting, range %s..%s, delay %v", name, lowest, highest, delay)

	driver := elevcar.NewDriver(region, lowest, highest, delay)
	companion := elevcar.NewCompanion(region, driver, name, lowest, highest, delay, elevconfig.ControllerAddress())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		companion.Run(ctx)
	}()

	driver.Run(ctx)
	wg.Wait()

	// Wake any waiters still parked on the record before it goes away.
	region.Lock()
	region.Broadcast()
	region.Unlock()

	if err := region.Unlink(); err != nil {
		Logger.Warn().Msgf("Car %s: unlink shared memory: %v", name, err)
	}
	region.Close()
	Logger.Info().Msgf("Car %s stopped", name)
}
