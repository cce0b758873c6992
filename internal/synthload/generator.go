package synthload

import (
	"math"
	"math/rand"

	"github.com/soundshape/panelsync/internal/domain/model"
)

// Buffer shapes the generator cycles through. Each exercises a different
// envelope: sweeps give smooth gradients, bursts give sparse peaks, noise
// gives dense mid-level content.
const (
	shapeSweep = iota
	shapeBurst
	shapeNoise
	shapeCount
)

const (
	twoPi          = 2 * math.Pi
	sweepStartHz   = 55.0
	sweepEndHz     = 3520.0
	burstsPerBuf   = 12
	sampleRate     = 44100.0
	noiseAmplitude = 0.6
)

var sizeClasses = []string{"compact", "standard", "wide"}

var binningModes = []string{"mean_abs", "min_max", "continuous"}

var species = []string{"oak", "walnut", "birch", "ash"}

// generateBuffer builds a synthetic sample buffer of the given shape.
func generateBuffer(rng *rand.Rand, shape, length int) []float32 {
	out := make([]float32, length)
	switch shape % shapeCount {
	case shapeSweep:
		// Exponential frequency sweep at full scale.
		for i := range out {
			t := float64(i) / sampleRate
			progress := float64(i) / float64(length)
			freq := sweepStartHz * math.Pow(sweepEndHz/sweepStartHz, progress)
			out[i] = float32(math.Sin(twoPi * freq * t))
		}
	case shapeBurst:
		// Mostly silence with short randomly placed bursts.
		burstLen := length / (burstsPerBuf * 4)
		if burstLen < 1 {
			burstLen = 1
		}
		for b := 0; b < burstsPerBuf; b++ {
			start := rng.Intn(length - burstLen)
			for i := start; i < start+burstLen; i++ {
				out[i] = float32(rng.Float64()*2 - 1)
			}
		}
	default:
		for i := range out {
			out[i] = float32((rng.Float64()*2 - 1) * noiseAmplitude)
		}
	}
	return out
}

// mutation applies one randomized parameter change to a snapshot. The
// distribution is weighted so every pipeline branch gets exercised:
// material-only edits, slot and section changes that trigger rebins, and
// continuous parameter nudges that go straight to the remote path.
func mutation(rng *rand.Rand, snap *model.CompositionSnapshot, sessions []Session) {
	switch rng.Intn(10) {
	case 0, 1:
		// Material edit on a random section.
		if len(snap.SectionMaterials) > 0 {
			i := rng.Intn(len(snap.SectionMaterials))
			snap.SectionMaterials[i].Species = species[rng.Intn(len(species))]
		}
	case 2:
		snap.SizeClass = sizeClasses[rng.Intn(len(sizeClasses))]
	case 3:
		snap.NumberSections = 2 + rng.Intn(5)
	case 4:
		snap.NumberSlots = 4 + rng.Intn(16)
	case 5:
		snap.BinningMode = binningModes[rng.Intn(len(binningModes))]
	case 6:
		amount := rng.Float64() * 0.4
		snap.FilterAmount = &amount
	case 7:
		exp := 0.5 + rng.Float64()*2.5
		snap.Exponent = &exp
	case 8:
		snap.Separation = 2.0 + rng.Float64()*10.0
	default:
		// Switch the active audio session, if any buffers were uploaded.
		if len(sessions) > 0 {
			snap.Audio.SessionID = sessions[rng.Intn(len(sessions))].SessionID
		}
	}
}

// initialSnapshot is the starting composition every run mutates from.
func initialSnapshot() model.CompositionSnapshot {
	return model.CompositionSnapshot{
		SizeClass:      "standard",
		PatternStyle:   "linear",
		NumberSections: 3,
		NumberSlots:    12,
		Separation:     6.0,
		BinningMode:    "mean_abs",
		SectionMaterials: []model.SectionMaterial{
			{SectionID: 1, Species: "oak", GrainDirection: model.GrainVertical},
			{SectionID: 2, Species: "oak", GrainDirection: model.GrainVertical},
			{SectionID: 3, Species: "oak", GrainDirection: model.GrainVertical},
		},
	}
}
