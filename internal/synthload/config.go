package synthload

import "time"

// Config holds configuration for a synthetic load run.
type Config struct {
	BaseURL    string        // Base URL of the service
	NumUpdates int           // Number of composition updates to submit
	NumBuffers int           // Number of synthetic audio buffers to upload
	BufferLen  int           // Samples per synthetic buffer
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	Seed       int64         // Seed for the mutation sequence; 0 means time-based
	Verbose    bool          // Enable verbose logging
}

// Session identifies an uploaded buffer on the server.
type Session struct {
	SessionID   string `json:"session_id"`
	Fingerprint string `json:"fingerprint"`
	SampleCount int    `json:"sample_count"`
}

// UpdateResult mirrors the pipeline result returned by POST /composition.
type UpdateResult struct {
	Branch        string   `json:"branch"`
	ChangedParams []string `json:"changed_params"`
}

// Stats accumulates per-run counters.
type Stats struct {
	BuffersUploaded  int
	UpdatesSubmitted int
	UpdatesAccepted  int
	UpdatesRejected  int
	BranchCounts     map[string]int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
