package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/soundshape/panelsync/internal/synthload"
)

// Default configuration constants.
const (
	defaultNumUpdates = 500
	defaultNumBuffers = 8
	defaultBufferLen  = 44100
	defaultWorkers    = 4
	defaultTimeout    = 30 * time.Second
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numUpdates = flag.Int("updates", defaultNumUpdates, "Number of composition updates to submit")
		numBuffers = flag.Int("buffers", defaultNumBuffers, "Number of synthetic audio buffers to upload")
		bufferLen  = flag.Int("samples", defaultBufferLen, "Samples per synthetic buffer")
		workers    = flag.Int("workers", defaultWorkers, "Number of concurrent upload workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed       = flag.Int64("seed", 0, "Seed for the mutation sequence; 0 picks one from the clock")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		synthload.ShowHelp()
		return
	}

	if err := synthload.SetupLogging(*verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &synthload.Config{
		BaseURL:    *baseURL,
		NumUpdates: *numUpdates,
		NumBuffers: *numBuffers,
		BufferLen:  *bufferLen,
		Workers:    *workers,
		Timeout:    *timeout,
		Seed:       *seed,
		Verbose:    *verbose,
	}

	if err := synthload.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Run failed: " + err.Error() + "\n")
		return
	}
}
