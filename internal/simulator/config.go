package simulator

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	Owner         string        // Public id owning the generated events
	NumEvents     int           // Number of events to generate
	Participants  int           // Participants per event
	NumSolutions  int           // Number of solutions to submit
	Workers       int           // Number of concurrent submitters
	FlushInterval time.Duration // Patch coalescing window of the daemon
	SettleTimeout time.Duration // How long to wait for progress to settle
	LogFile       string        // Log file for simulation output
	Verbose       bool          // Enable verbose logging
}

// Stats holds simulation statistics.
type Stats struct {
	EventsGenerated     int
	TasksGenerated      int
	SolutionsSubmitted  int
	ExpectedCompletions int
	RecordedCompletions int
	MissingCompletions  int
	SpuriousCompletions int
	StartTime           time.Time
	EndTime             time.Time
	Duration            time.Duration
}
