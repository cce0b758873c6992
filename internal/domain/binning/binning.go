// Package binning reduces raw audio sample buffers into a fixed number of
// normalized slot amplitudes.
//
// The transform order is fixed: partition, reduce, normalize, optional
// noise-floor filter, optional exponent reshape. The filter always runs
// before the exponent.
package binning

import (
	"math"
	"sort"
)

// Binning modes. An unknown mode falls back to ModeMeanAbs.
const (
	ModeMeanAbs    = "mean_abs"
	ModeMinMax     = "min_max"
	ModeContinuous = "continuous"
)

// renormEpsilon guards the post-filter renormalization: a filtered maximum
// at or below this is treated as silence and left untouched.
const renormEpsilon = 1e-9

// Params describes one rebin request. Transient; never stored.
type Params struct {
	// TargetSlotCount is the number of output slots. Must be positive.
	TargetSlotCount int

	// Mode selects the per-window reduction.
	Mode string

	// FilterAmount, when set and > 0, enables noise-floor filtering with
	// the given fraction in (0,1].
	FilterAmount *float64

	// Exponent, when set and != 1.0, reshapes the normalized curve.
	Exponent *float64
}

// Rebin computes slot amplitudes for the raw buffer. The result has exactly
// TargetSlotCount elements, each in [0,1]. Returns nil when TargetSlotCount
// is not positive.
func Rebin(samples []float32, p Params) []float64 {
	n := p.TargetSlotCount
	if n <= 0 {
		return nil
	}

	out := make([]float64, n)

	// Contiguous near-equal windows of floor(len/n) samples; trailing
	// samples beyond n*window are dropped.
	window := len(samples) / n
	if window > 0 {
		reduce := reducer(p.Mode)
		for i := 0; i < n; i++ {
			start := i * window
			end := start + window
			if end > len(samples) {
				end = len(samples)
			}
			out[i] = reduce(samples[start:end])
		}
	}

	normalize(out)

	if p.FilterAmount != nil && *p.FilterAmount > 0 {
		applyNoiseFloor(out, *p.FilterAmount)
	}

	// No renormalization after the exponent: values already lie in [0,1]
	// and a power curve preserves that range.
	if p.Exponent != nil && *p.Exponent != 1.0 {
		for i, v := range out {
			out[i] = math.Pow(v, *p.Exponent)
		}
	}

	return out
}

// reducer maps a binning mode to its window reduction. All reductions
// return non-negative values; an empty window reduces to 0.
func reducer(mode string) func([]float32) float64 {
	switch mode {
	case ModeMinMax:
		return maxAbs
	case ModeContinuous:
		return rms
	case ModeMeanAbs:
		return meanAbs
	default:
		return meanAbs
	}
}

func meanAbs(window []float32) float64 {
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, s := range window {
		sum += math.Abs(float64(s))
	}
	return sum / float64(len(window))
}

func maxAbs(window []float32) float64 {
	var peak float64
	for _, s := range window {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	return peak
}

func rms(window []float32) float64 {
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, s := range window {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(window)))
}

// normalize divides every element by the global maximum. An all-zero
// sequence stays all-zero.
func normalize(values []float64) {
	var peak float64
	for _, v := range values {
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		return
	}
	for i := range values {
		values[i] /= peak
	}
}

// applyNoiseFloor estimates the floor as the mean of the quietest
// max(1, floor(n*amount)) values, subtracts it clamped at zero, and
// renormalizes when the filtered maximum is still above renormEpsilon.
func applyNoiseFloor(values []float64, amount float64) {
	if len(values) == 0 {
		return
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	count := int(float64(len(sorted)) * amount)
	if count < 1 {
		count = 1
	}
	if count > len(sorted) {
		count = len(sorted)
	}
	var floor float64
	for _, v := range sorted[:count] {
		floor += v
	}
	floor /= float64(count)

	var peak float64
	for i, v := range values {
		v -= floor
		if v < 0 {
			v = 0
		}
		values[i] = v
		if v > peak {
			peak = v
		}
	}

	if peak > renormEpsilon {
		for i := range values {
			values[i] /= peak
		}
	}
}
