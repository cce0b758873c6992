// Package app provides the sync pipeline that keeps the composition state
// aligned with the remote geometry computation.
//
// Every requested update is classified by diffing against the committed
// snapshot and routed through exactly one branch: no-op, material fast
// path, local rebin, or remote geometry. The two geometry branches end in
// a remote call; commit happens only after that call succeeds.
package app

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/soundshape/panelsync/internal/adapters/compute"
	"github.com/soundshape/panelsync/internal/adapters/persist"
	"github.com/soundshape/panelsync/internal/adapters/samplecache"
	"github.com/soundshape/panelsync/internal/domain/binning"
	"github.com/soundshape/panelsync/internal/domain/diff"
	"github.com/soundshape/panelsync/internal/domain/model"
	"github.com/soundshape/panelsync/pkg/logger"
	"github.com/soundshape/panelsync/pkg/metrics"
)

// physicalAmplitudeThreshold separates normalized from physical amplitude
// arrays. A committed array whose max absolute value exceeds this is in
// physical scale and must be divided through before transmission.
const physicalAmplitudeThreshold = 1.5

// Branch identifies which path an update took through the pipeline.
type Branch string

// Pipeline branches, in precedence order.
const (
	BranchNoop       Branch = "noop"
	BranchMaterials  Branch = "materials"
	BranchLocalRebin Branch = "local_rebin"
	BranchRemote     Branch = "remote"
)

// Fields whose change invalidates the current binning and requires a fresh
// envelope when a cached session is available.
var rebinFields = []string{ //nolint:gochecknoglobals // fixed classification table
	model.FieldNumberSections,
	model.FieldNumberSlots,
	model.FieldBinningMode,
}

// SizeDefaults are the smart defaults applied when the size class changes.
type SizeDefaults struct {
	NumberSlots int     `koanf:"number_slots" json:"number_slots"`
	Separation  float64 `koanf:"separation" json:"separation"`
}

// MaterialDefaults are the fallback species and grain direction used when
// a re-derived material list cannot inherit from the prior sections.
type MaterialDefaults struct {
	Species        string `koanf:"species" json:"species"`
	GrainDirection string `koanf:"grain_direction" json:"grain_direction"`
}

// Renderer receives fire-and-continue visual updates. The pipeline never
// consumes a return value from either call.
type Renderer interface {
	RenderComposition(ctx context.Context, payload compute.Response)
	ApplySectionMaterial(ctx context.Context, sectionID int)
}

// Persister stores committed state; no acknowledgment is consumed.
type Persister interface {
	PersistSnapshot(snapshot model.CompositionSnapshot)
	PersistSession(rec persist.SessionRecord)
}

// Observer is notified after a commit has been rendered.
type Observer func(snapshot model.CompositionSnapshot)

// Result reports how an update was classified and what was committed.
type Result struct {
	Branch        Branch                    `json:"branch"`
	ChangedParams []string                  `json:"changed_params"`
	Snapshot      model.CompositionSnapshot `json:"snapshot"`
}

// Pipeline routes composition updates between the local cache and the
// remote compute service while preserving the amplitude-scale handshake.
type Pipeline struct {
	mu        sync.Mutex
	committed model.CompositionSnapshot

	// Monotonic sequence guard: a remote response commits only if no
	// higher sequence has committed since it was dispatched. Local
	// commits advance the guard too, so they cannot be overwritten by
	// an older response still in flight.
	dispatchSeq  uint64
	committedSeq uint64

	cache     samplecache.Cache
	compute   compute.Service
	renderer  Renderer
	persister Persister
	observers []Observer

	sizeDefaults     map[string]SizeDefaults
	materialDefaults MaterialDefaults

	logger logger.Logger
}

// New constructs a Pipeline with default configuration.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		sizeDefaults: map[string]SizeDefaults{},
		materialDefaults: MaterialDefaults{
			Species:        "oak",
			GrainDirection: model.GrainVertical,
		},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Subscribe registers an observer for committed snapshots.
func (p *Pipeline) Subscribe(obs Observer) {
	if obs == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, obs)
}

// Composition returns a copy of the currently committed snapshot.
func (p *Pipeline) Composition(_ context.Context) model.CompositionSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.committed.Clone()
}

// StoreAudio fingerprints and caches an uploaded raw buffer and persists
// it for restore. Returns the fresh session id and the fingerprint.
func (p *Pipeline) StoreAudio(ctx context.Context, sourceLabel string, samples []float32) (string, string) {
	fingerprint := fingerprintSamples(samples)
	id := p.cache.Store(ctx, sourceLabel, fingerprint, samples)

	if p.persister != nil {
		p.persister.PersistSession(persist.SessionRecord{
			SessionID:   id,
			SourceLabel: sourceLabel,
			Fingerprint: fingerprint,
			Samples:     samples,
			CreatedAt:   time.Now(),
		})
	}

	return id, fingerprint
}

// CacheStats exposes sample-cache introspection.
func (p *Pipeline) CacheStats(ctx context.Context) samplecache.Stats {
	return p.cache.Stats(ctx)
}

// Update runs one composition update through the pipeline. Exactly one
// branch applies; on any error the committed state is left untouched.
func (p *Pipeline) Update(ctx context.Context, proposed model.CompositionSnapshot) (Result, error) {
	p.mu.Lock()
	current := p.committed.Clone()
	p.mu.Unlock()

	next := proposed.Clone()
	p.preNormalize(&next, current)

	changes := diff.Diff(current, next)

	// No-op: an empty change set always wins over any other classification.
	if changes.Empty() {
		p.commitLocal(next)
		metrics.RecordPipelineUpdate(string(BranchNoop))
		return Result{Branch: BranchNoop, ChangedParams: nil, Snapshot: next.Clone()}, nil
	}

	// Material fast path: a pure visual operation with no geometric
	// consequence, so the remote call is skipped entirely.
	if changes.Only(model.FieldSectionMaterials) {
		affected := affectedSections(current.SectionMaterials, next.SectionMaterials)
		p.commitLocal(next)
		if p.persister != nil {
			p.persister.PersistSnapshot(next.Clone())
		}
		if p.renderer != nil {
			for _, id := range affected {
				p.renderer.ApplySectionMaterial(ctx, id)
			}
		}
		p.notify(next)
		metrics.RecordPipelineUpdate(string(BranchMaterials))
		return Result{Branch: BranchMaterials, ChangedParams: changes.Sorted(), Snapshot: next.Clone()}, nil
	}

	// Geometry path: choose between a fresh local rebin and passing the
	// committed amplitudes through the scale handshake.
	branch := BranchRemote
	if changes.Intersects(rebinFields...) && next.Audio.SessionID != "" && p.cache.Has(ctx, next.Audio.SessionID) {
		rebinned, ok := p.cache.Rebin(ctx, next.Audio.SessionID, binning.Params{
			TargetSlotCount: next.NumberSections * next.NumberSlots,
			Mode:            next.BinningMode,
			FilterAmount:    next.FilterAmount,
			Exponent:        next.Exponent,
		})
		if !ok {
			// Abort the entire update: no local mutation, no remote
			// call, no notification.
			metrics.RecordPipelineUpdateError("rebin_unavailable")
			p.logf(ctx, "aborting update, cached session vanished", next.Audio.SessionID)
			return Result{}, fmt.Errorf("session %s: %w", next.Audio.SessionID, ErrRebinUnavailable)
		}
		// Normalized by construction; no scale detection needed.
		next.ProcessedAmplitudes = rebinned
		branch = BranchLocalRebin
	} else {
		next.ProcessedAmplitudes = outgoingAmplitudes(current.ProcessedAmplitudes)
	}

	p.mu.Lock()
	p.dispatchSeq++
	seq := p.dispatchSeq
	p.mu.Unlock()

	resp, err := p.compute.Recompute(ctx, compute.Request{
		State:                next,
		ChangedParams:        changes.Sorted(),
		PreviousMaxAmplitude: current.Audio.PreviousMaxAmplitudeLocal,
	})
	if err != nil {
		metrics.RecordPipelineUpdateError("remote_failed")
		if p.logger != nil {
			p.logger.Error(ctx, "geometry recompute failed, keeping committed state", logger.Error(err))
		}
		return Result{}, fmt.Errorf("%w: %w", ErrRemoteCompute, err)
	}

	committed, ok := p.commitRemote(seq, resp)
	if !ok {
		metrics.RecordStaleResponseDropped()
		return Result{}, fmt.Errorf("sequence %d: %w", seq, ErrStaleUpdate)
	}

	// Persist, render, then notify, so observers never see a state whose
	// render has not been requested.
	if p.persister != nil {
		p.persister.PersistSnapshot(committed.Clone())
	}
	if p.renderer != nil {
		p.renderer.RenderComposition(ctx, resp)
	}
	p.notify(committed)

	metrics.RecordPipelineUpdate(string(branch))
	return Result{Branch: branch, ChangedParams: changes.Sorted(), Snapshot: committed.Clone()}, nil
}

// preNormalize applies smart defaults before diffing. A size-class change
// pulls slot count and separation from the lookup table; a section-count
// change re-derives the material list.
func (p *Pipeline) preNormalize(next *model.CompositionSnapshot, current model.CompositionSnapshot) {
	if next.SizeClass != current.SizeClass {
		if d, ok := p.sizeDefaults[next.SizeClass]; ok {
			next.NumberSlots = d.NumberSlots
			next.Separation = d.Separation
		}
	}

	if next.NumberSections != current.NumberSections {
		next.SectionMaterials = p.deriveMaterials(next.NumberSections, current.SectionMaterials)
	}
}

// deriveMaterials builds a material list for a new section count. Species
// and grain are inherited when the prior set was unanimous, otherwise the
// configured defaults apply. A grain direction invalid for the new count
// is forced to the default direction.
func (p *Pipeline) deriveMaterials(count int, prior []model.SectionMaterial) []model.SectionMaterial {
	species := p.materialDefaults.Species
	grain := p.materialDefaults.GrainDirection

	if s, g, ok := unanimousMaterial(prior); ok {
		species, grain = s, g
	}
	if !model.ValidGrainDirection(grain, count) {
		grain = p.materialDefaults.GrainDirection
	}

	out := make([]model.SectionMaterial, count)
	for i := range out {
		out[i] = model.SectionMaterial{
			SectionID:      i + 1,
			Species:        species,
			GrainDirection: grain,
		}
	}
	return out
}

// unanimousMaterial reports the shared species and grain of a material
// list, if every section agrees.
func unanimousMaterial(materials []model.SectionMaterial) (string, string, bool) {
	if len(materials) == 0 {
		return "", "", false
	}
	species := materials[0].Species
	grain := materials[0].GrainDirection
	for _, m := range materials[1:] {
		if m.Species != species || m.GrainDirection != grain {
			return "", "", false
		}
	}
	return species, grain, true
}

// affectedSections returns the ids whose material record changed, aligned
// by section id. When the lists cannot be aligned, every section of the
// new list is affected.
func affectedSections(oldList, newList []model.SectionMaterial) []int {
	byID := make(map[int]model.SectionMaterial, len(oldList))
	for _, m := range oldList {
		byID[m.SectionID] = m
	}

	if len(oldList) != len(newList) {
		ids := make([]int, 0, len(newList))
		for _, m := range newList {
			ids = append(ids, m.SectionID)
		}
		return ids
	}

	var ids []int
	for _, m := range newList {
		prev, ok := byID[m.SectionID]
		if !ok || prev != m {
			ids = append(ids, m.SectionID)
		}
	}
	if len(ids) == 0 {
		// Change detected but no individual section stands out; apply all.
		for _, m := range newList {
			ids = append(ids, m.SectionID)
		}
	}
	return ids
}

// outgoingAmplitudes prepares committed amplitudes for transmission: drop
// non-finite entries, then detect the representation by the max absolute
// value. Above the threshold the array is in physical scale and is divided
// through; at or below it is assumed normalized and passed unchanged.
func outgoingAmplitudes(amps []float64) []float64 {
	out := make([]float64, 0, len(amps))
	maxAbs := 0.0
	for _, v := range amps {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
		if a := math.Abs(v); a > maxAbs {
			maxAbs = a
		}
	}

	if maxAbs > physicalAmplitudeThreshold {
		metrics.RecordAmplitudeRenormalization()
		for i := range out {
			out[i] /= maxAbs
		}
	}
	return out
}

// commitLocal replaces the committed snapshot and advances the sequence
// guard. A local commit counts as a dispatch of its own, so a remote
// response still in flight when it lands carries an older sequence and is
// dropped rather than overwriting this commit.
func (p *Pipeline) commitLocal(next model.CompositionSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dispatchSeq++
	p.committedSeq = p.dispatchSeq
	p.committed = next.Clone()
}

// commitRemote applies a remote response unless a newer update already
// committed. Returns the committed snapshot and whether the commit took.
func (p *Pipeline) commitRemote(seq uint64, resp compute.Response) (model.CompositionSnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if seq < p.committedSeq {
		return model.CompositionSnapshot{}, false
	}

	committed := resp.UpdatedState.Clone()
	scale := resp.MaxAmplitudeLocal
	committed.Audio.PreviousMaxAmplitudeLocal = &scale

	p.committed = committed
	p.committedSeq = seq
	return committed.Clone(), true
}

// notify invokes observers with a copy of the committed snapshot.
func (p *Pipeline) notify(snapshot model.CompositionSnapshot) {
	p.mu.Lock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.Unlock()

	for _, obs := range observers {
		obs(snapshot.Clone())
	}
}

// GetStats returns pipeline statistics for monitoring.
func (p *Pipeline) GetStats() map[string]interface{} {
	p.mu.Lock()
	committedSeq := p.committedSeq
	dispatchSeq := p.dispatchSeq
	sections := p.committed.NumberSections
	slots := p.committed.NumberSlots
	p.mu.Unlock()

	stats := map[string]interface{}{
		"dispatched_updates": dispatchSeq,
		"committed_sequence": committedSeq,
		"number_sections":    sections,
		"number_slots":       slots,
	}
	if p.cache != nil {
		cs := p.cache.Stats(context.Background())
		stats["cached_sessions"] = cs.SessionCount
		stats["cached_bytes"] = cs.TotalBytes
	}
	return stats
}

func (p *Pipeline) logf(ctx context.Context, msg, sessionID string) {
	if p.logger != nil {
		p.logger.Warn(ctx, msg, logger.String("sessionID", sessionID))
	}
}

// fingerprintSamples hashes the raw buffer's little-endian byte form.
func fingerprintSamples(samples []float32) string {
	h := sha256.New()
	var buf [4]byte
	for _, s := range samples {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(s))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
