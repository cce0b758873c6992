// Package diff computes the set of changed top-level fields between two
// composition snapshots.
//
// Generic fields compare on their serialized form. The per-section material
// list is order-insensitive: records carry a stable section id, so both
// sides are sorted by that key and compared element-wise; any mismatch
// folds into the single section_materials identifier.
package diff

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/soundshape/panelsync/internal/domain/model"
)

// Diff returns the change set between old and new. Diffing a snapshot
// against an identical copy always yields an empty set.
//
// Audio.PreviousMaxAmplitudeLocal is pipeline bookkeeping written back
// after every remote response; it is deliberately not a diffed field, or
// every commit would classify as a geometry change.
func Diff(oldSnap, newSnap model.CompositionSnapshot) model.ChangeSet {
	cs := model.NewChangeSet()

	if oldSnap.SizeClass != newSnap.SizeClass {
		cs.Add(model.FieldSizeClass)
	}
	if oldSnap.PatternStyle != newSnap.PatternStyle {
		cs.Add(model.FieldPatternStyle)
	}
	if oldSnap.NumberSections != newSnap.NumberSections {
		cs.Add(model.FieldNumberSections)
	}
	if oldSnap.NumberSlots != newSnap.NumberSlots {
		cs.Add(model.FieldNumberSlots)
	}
	if !sameSerialized(oldSnap.Separation, newSnap.Separation) {
		cs.Add(model.FieldSeparation)
	}
	if oldSnap.BinningMode != newSnap.BinningMode {
		cs.Add(model.FieldBinningMode)
	}
	if !sameSerialized(oldSnap.FilterAmount, newSnap.FilterAmount) {
		cs.Add(model.FieldFilterAmount)
	}
	if !sameSerialized(oldSnap.Exponent, newSnap.Exponent) {
		cs.Add(model.FieldExponent)
	}
	if !sameSerialized(oldSnap.ProcessedAmplitudes, newSnap.ProcessedAmplitudes) {
		cs.Add(model.FieldProcessedAmplitudes)
	}
	if oldSnap.Audio.SessionID != newSnap.Audio.SessionID {
		cs.Add(model.FieldAudioSession)
	}
	if !sameMaterials(oldSnap.SectionMaterials, newSnap.SectionMaterials) {
		cs.Add(model.FieldSectionMaterials)
	}

	return cs
}

// sameSerialized compares two values on their JSON form. Marshal errors are
// impossible for the plain value types diffed here.
func sameSerialized(a, b any) bool {
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return bytes.Equal(ja, jb)
}

// sameMaterials compares two material lists ignoring order. Sort both by
// section id, then compare (sectionID, species, grainDirection) per element.
func sameMaterials(a, b []model.SectionMaterial) bool {
	if len(a) != len(b) {
		return false
	}
	sa := sortedBySection(a)
	sb := sortedBySection(b)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func sortedBySection(materials []model.SectionMaterial) []model.SectionMaterial {
	out := make([]model.SectionMaterial, len(materials))
	copy(out, materials)
	sort.Slice(out, func(i, j int) bool { return out[i].SectionID < out[j].SectionID })
	return out
}
