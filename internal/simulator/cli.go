// Package simulator generates demo classroom events and drives the
// daemon against an in-memory feed, verifying the recorded progress.
package simulator

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/singpath/progressd/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "simulation_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Progressd Event Simulator
=========================

Generates demo events, tasks and participants on an in-memory feed,
runs the progress monitor over them, submits solutions and verifies
the recorded completions.

Usage:
  go run cmd/seed-events/main.go [options]

Options:
  -owner string
        Public id owning the generated events (default "demo-owner")
  -events int
        Number of events to generate (default 3)
  -participants int
        Participants per event (default 10)
  -solutions int
        Number of solutions to submit (default 200)
  -workers int
        Number of concurrent submitters (default 4)
  -flush duration
        Patch coalescing window of the daemon (default 100ms)
  -settle duration
        How long to wait for progress to settle (default 30s)
  -log string
        Log file for simulation output (default: simulation_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Run with default settings
  go run cmd/seed-events/main.go

  # A bigger classroom
  go run cmd/seed-events/main.go -events 10 -participants 50 -solutions 5000
`)
}
