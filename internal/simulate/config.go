// Package simulate drives synthetic visitor traffic against a running
// footprint API and checks what comes back.
package simulate

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL string        // Base URL of the service
	Devices int           // Number of distinct simulated devices
	Visits  int           // Total visits to submit across devices
	Workers int           // Number of concurrent submitters
	Timeout time.Duration // HTTP request timeout
	Seed    uint64        // Faker seed; equal seeds give equal devices
	// BotShare is the fraction of devices that behave like scripted clients.
	BotShare float64
	// RetryShare is the fraction of visits re-sent with the same event id.
	RetryShare float64
	Verbose    bool
}

// Stats holds run statistics.
type Stats struct {
	VisitsGenerated  int
	VisitsSubmitted  int
	VisitsSuccessful int
	VisitsDuplicate  int
	VisitsFailed     int
	VisitorIDs       int
	Anomalous        int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
