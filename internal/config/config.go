// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load(ctx) layers defaults, optional YAML file, and environment.
// - External errors are wrapped via this package's error kinds.
package config

import "github.com/soundshape/panelsync/internal/app"

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// CacheCapacity bounds the number of cached audio sessions.
	CacheCapacity int `koanf:"cache_capacity"`

	// ComputeURL is the base URL of the geometry compute service.
	ComputeURL string `koanf:"compute_url"`

	// ComputeTimeoutMS bounds one compute round trip.
	ComputeTimeoutMS int `koanf:"compute_timeout_ms"`

	// DataDir is the directory for the embedded persistence database.
	DataDir string `koanf:"data_dir"`

	// PersistQueueSize bounds the pending persistence write channel.
	PersistQueueSize int `koanf:"persist_queue_size"`

	// SizeDefaults maps size classes to their smart defaults.
	SizeDefaults map[string]app.SizeDefaults `koanf:"size_defaults"`

	// MaterialDefaults are the fallback species and grain direction.
	MaterialDefaults app.MaterialDefaults `koanf:"material_defaults"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		CacheCapacity:    5,
		ComputeURL:       "http://localhost:9090",
		ComputeTimeoutMS: 30_000,
		DataDir:          "data",
		PersistQueueSize: 256,
		SizeDefaults: map[string]app.SizeDefaults{
			"compact":  {NumberSlots: 8, Separation: 4.0},
			"standard": {NumberSlots: 12, Separation: 6.0},
			"wide":     {NumberSlots: 16, Separation: 8.0},
		},
		MaterialDefaults: app.MaterialDefaults{
			Species:        "oak",
			GrainDirection: "vertical",
		},
	}
}
