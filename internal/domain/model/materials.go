package model

// Grain directions a section material can carry.
const (
	GrainVertical    = "vertical"
	GrainHorizontal  = "horizontal"
	GrainAlternating = "alternating"
)

// ValidGrainDirection reports whether the direction is usable with the
// given section count. Alternating grain needs at least two sections to
// alternate between.
func ValidGrainDirection(direction string, sectionCount int) bool {
	switch direction {
	case GrainVertical, GrainHorizontal:
		return true
	case GrainAlternating:
		return sectionCount >= 2
	default:
		return false
	}
}
