package app

import (
	"github.com/soundshape/panelsync/internal/adapters/compute"
	"github.com/soundshape/panelsync/internal/adapters/samplecache"
	"github.com/soundshape/panelsync/internal/domain/model"
	"github.com/soundshape/panelsync/pkg/logger"
)

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithCache sets the sample cache.
func WithCache(c samplecache.Cache) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.cache = c
		}
	}
}

// WithCompute sets the remote geometry compute service.
func WithCompute(svc compute.Service) Option {
	return func(p *Pipeline) {
		if svc != nil {
			p.compute = svc
		}
	}
}

// WithRenderer sets the render collaborator.
func WithRenderer(r Renderer) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.renderer = r
		}
	}
}

// WithPersister sets the persistence collaborator.
func WithPersister(ps Persister) Option {
	return func(p *Pipeline) {
		if ps != nil {
			p.persister = ps
		}
	}
}

// WithLogger sets a custom logger for the pipeline.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithSizeDefaults sets the size-class smart-defaults lookup table.
func WithSizeDefaults(defaults map[string]SizeDefaults) Option {
	return func(p *Pipeline) {
		if defaults != nil {
			p.sizeDefaults = defaults
		}
	}
}

// WithMaterialDefaults sets the fallback species and grain direction.
func WithMaterialDefaults(defaults MaterialDefaults) Option {
	return func(p *Pipeline) {
		if defaults.Species != "" {
			p.materialDefaults.Species = defaults.Species
		}
		if defaults.GrainDirection != "" {
			p.materialDefaults.GrainDirection = defaults.GrainDirection
		}
	}
}

// WithInitialSnapshot seeds the committed snapshot, used when restoring
// persisted state at startup.
func WithInitialSnapshot(snapshot model.CompositionSnapshot) Option {
	return func(p *Pipeline) {
		p.committed = snapshot.Clone()
	}
}
