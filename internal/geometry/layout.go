package geometry

import "math"

// Layout is the solved track geometry for one marker set.
type Layout struct {
	ContentExtent float64   // total synthetic track length
	MinBound      float64   // first usable position (pad)
	MaxBound      float64   // last usable position (extent - pad)
	Positions     []float64 // solved positions, non-decreasing
	Adjusted      []float64 // positions normalized back to [0,1]
}

// Compute lays out raw fractions on a track of the given viewport height.
// The track grows just enough to fit every marker at MinGap but never
// shrinks below one viewport.
func Compute(raw []float64, viewportHeight float64, cfg Config) Layout {
	extent := ContentExtent(len(raw), viewportHeight, cfg)
	usable := math.Max(1, extent-2*cfg.Pad)
	minBound := cfg.Pad
	maxBound := cfg.Pad + usable

	positions := Solve(raw, minBound, maxBound, cfg.MinGap)
	adjusted := make([]float64, len(positions))
	for i, p := range positions {
		adjusted[i] = clamp01((p - minBound) / usable)
	}
	return Layout{
		ContentExtent: extent,
		MinBound:      minBound,
		MaxBound:      maxBound,
		Positions:     positions,
		Adjusted:      adjusted,
	}
}

// ContentExtent returns max(viewportHeight, 2*pad + (n-1)*minGap), rounded
// up to a whole unit.
func ContentExtent(n int, viewportHeight float64, cfg Config) float64 {
	need := viewportHeight
	if n > 0 {
		need = 2*cfg.Pad + float64(max(0, n-1))*cfg.MinGap
	}
	return math.Ceil(math.Max(viewportHeight, need))
}

// Scrollable reports whether the track content is taller than its viewport.
func (l Layout) Scrollable(viewportHeight float64) bool {
	return l.ContentExtent > viewportHeight+1
}

// Buffer is the extra distance rendered above and below the visible window.
func (c Config) Buffer(viewportHeight float64) float64 {
	return math.Max(c.MinBuffer, viewportHeight)
}
