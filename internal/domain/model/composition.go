// Package model contains domain models passed between layers.
package model

// Top-level field identifiers used by the differ and the compute request.
// All per-section material differences fold into FieldSectionMaterials.
const (
	FieldSizeClass           = "size_class"
	FieldPatternStyle        = "pattern_style"
	FieldNumberSections      = "number_sections"
	FieldNumberSlots         = "number_slots"
	FieldSeparation          = "separation"
	FieldBinningMode         = "binning_mode"
	FieldFilterAmount        = "filter_amount"
	FieldExponent            = "exponent"
	FieldSectionMaterials    = "section_materials"
	FieldProcessedAmplitudes = "processed_amplitudes"
	FieldAudioSession        = "audio_session"
)

// SectionMaterial assigns a wood species and grain direction to one panel
// section. SectionID is a stable identifier, so material lists compare
// order-insensitively.
type SectionMaterial struct {
	SectionID      int    `json:"section_id"`
	Species        string `json:"species"`
	GrainDirection string `json:"grain_direction"`
}

// AudioState tracks the cached audio session backing a composition and the
// last physical amplitude scale reported by the compute service.
type AudioState struct {
	SessionID                 string   `json:"session_id,omitempty"`
	PreviousMaxAmplitudeLocal *float64 `json:"previous_max_amplitude_local,omitempty"`
}

// CompositionSnapshot is one immutable-by-convention view of the panel
// configuration. ProcessedAmplitudes must be normalized to [0,1] whenever
// the snapshot leaves for the compute service, unless freshly rebinned
// (normalized by construction).
type CompositionSnapshot struct {
	SizeClass    string `json:"size_class"`
	PatternStyle string `json:"pattern_style"`

	NumberSections int     `json:"number_sections"`
	NumberSlots    int     `json:"number_slots"`
	Separation     float64 `json:"separation"`

	BinningMode  string   `json:"binning_mode"`
	FilterAmount *float64 `json:"filter_amount,omitempty"`
	Exponent     *float64 `json:"exponent,omitempty"`

	SectionMaterials    []SectionMaterial `json:"section_materials"`
	ProcessedAmplitudes []float64         `json:"processed_amplitudes"`

	Audio AudioState `json:"audio"`
}

// Clone returns a deep copy so callers can mutate freely without aliasing
// the committed state.
func (s CompositionSnapshot) Clone() CompositionSnapshot {
	out := s
	if s.FilterAmount != nil {
		v := *s.FilterAmount
		out.FilterAmount = &v
	}
	if s.Exponent != nil {
		v := *s.Exponent
		out.Exponent = &v
	}
	if s.SectionMaterials != nil {
		out.SectionMaterials = make([]SectionMaterial, len(s.SectionMaterials))
		copy(out.SectionMaterials, s.SectionMaterials)
	}
	if s.ProcessedAmplitudes != nil {
		out.ProcessedAmplitudes = make([]float64, len(s.ProcessedAmplitudes))
		copy(out.ProcessedAmplitudes, s.ProcessedAmplitudes)
	}
	if s.Audio.PreviousMaxAmplitudeLocal != nil {
		v := *s.Audio.PreviousMaxAmplitudeLocal
		out.Audio.PreviousMaxAmplitudeLocal = &v
	}
	return out
}
