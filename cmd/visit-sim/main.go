package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/footprint/internal/simulate"
	"github.com/okian/footprint/pkg/logger"
)

// Default configuration constants.
const (
	defaultDevices    = 200
	defaultVisits     = 2000
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout    = 30 * time.Second
	defaultRunTimeout = 10 * time.Minute
	defaultBotShare   = 0.1
	defaultRetryShare = 0.05
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		devices    = flag.Int("devices", defaultDevices, "Number of distinct simulated devices")
		visits     = flag.Int("visits", defaultVisits, "Number of visits to submit")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed       = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Seed for generated traffic") //nolint:gosec // clock is positive
		botShare   = flag.Float64("bots", defaultBotShare, "Fraction of devices behaving like scripts")
		retryShare = flag.Float64("retries", defaultRetryShare, "Fraction of visits re-sent with the same event id")
		logFormat  = flag.String("log-format", "text", "Log format: text or json")
		verbose    = flag.Bool("verbose", false, "Log every failed visit")
	)
	flag.Parse()

	if err := logger.InitWithFormat(*logFormat); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	cfg := &simulate.Config{
		BaseURL:    *baseURL,
		Devices:    *devices,
		Visits:     *visits,
		Workers:    *workers,
		Timeout:    *timeout,
		Seed:       *seed,
		BotShare:   *botShare,
		RetryShare: *retryShare,
		Verbose:    *verbose,
	}

	if _, err := simulate.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		cancel()
		stop()
		os.Exit(1)
	}
}
