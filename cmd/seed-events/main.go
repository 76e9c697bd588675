package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/singpath/progressd/internal/simulator"
	"github.com/singpath/progressd/pkg/logger"
)

// Default configuration constants.
const (
	defaultEvents       = 3
	defaultParticipants = 10
	defaultSolutions    = 200
	defaultWorkers      = 4
	defaultFlush        = 100 * time.Millisecond
	defaultSettle       = 30 * time.Second
	defaultRunTimeout   = 10 * time.Minute
)

func main() {
	var (
		owner        = flag.String("owner", "demo-owner", "Public id owning the generated events")
		events       = flag.Int("events", defaultEvents, "Number of events to generate")
		participants = flag.Int("participants", defaultParticipants, "Participants per event")
		solutions    = flag.Int("solutions", defaultSolutions, "Number of solutions to submit")
		workers      = flag.Int("workers", defaultWorkers, "Number of concurrent submitters")
		flush        = flag.Duration("flush", defaultFlush, "Patch coalescing window of the daemon")
		settle       = flag.Duration("settle", defaultSettle, "How long to wait for progress to settle")
		logFile      = flag.String("log", "", "Log file for simulation output (default: simulation_TIMESTAMP.log)")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging")
		help         = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulator.ShowHelp()
		return
	}

	if err := simulator.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &simulator.Config{
		Owner:         *owner,
		NumEvents:     *events,
		Participants:  *participants,
		NumSolutions:  *solutions,
		Workers:       *workers,
		FlushInterval: *flush,
		SettleTimeout: *settle,
		LogFile:       *logFile,
		Verbose:       *verbose,
	}

	if err := simulator.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return
	}
}
