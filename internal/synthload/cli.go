package synthload

import (
	"fmt"
	"os"

	"github.com/soundshape/panelsync/pkg/logger"
)

// SetupLogging initializes the shared logger for a CLI run.
func SetupLogging(verbose bool) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the load tool.
func ShowHelp() {
	os.Stdout.WriteString(`Panelsync Load Tool
===================

Generates synthetic audio buffers and randomized composition updates to
exercise a running panelsync service.

Usage:
  go run cmd/synthload/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -updates int
        Number of composition updates to submit (default 500)
  -buffers int
        Number of synthetic audio buffers to upload (default 8)
  -samples int
        Samples per synthetic buffer (default 44100)
  -workers int
        Number of concurrent upload workers (default 4)
  -timeout duration
        HTTP request timeout (default 30s)
  -seed int
        Seed for the mutation sequence; 0 picks one from the clock
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Run with default settings
  go run cmd/synthload/main.go

  # Longer run against a non-default port, replayable
  go run cmd/synthload/main.go -updates 5000 -url http://localhost:8080 -seed 42
`)
}
