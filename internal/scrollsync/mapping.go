// Package scrollsync links the host's real scroll position to the
// synthetic timeline track and decides which marker is active.
package scrollsync

import "math"

// ReferenceRatio places the reference line 45% from the top of the real
// viewport.
const ReferenceRatio = 0.45

// ReferenceLine returns the content offset of the reference line.
func ReferenceLine(scrollTop, viewportHeight float64) float64 {
	return scrollTop + viewportHeight*ReferenceRatio
}

// Mapping converts between real scroll offsets and synthetic track offsets.
type Mapping struct {
	FirstOffset   float64 // real offset of the first marker
	Span          float64 // real distance between first and last marker
	ContentExtent float64 // synthetic track length
	TrackHeight   float64 // synthetic track viewport
}

func (m Mapping) span() float64 {
	return math.Max(1, m.Span)
}

// SyntheticMax is the largest synthetic scroll offset.
func (m Mapping) SyntheticMax() float64 {
	return math.Max(0, m.ContentExtent-m.TrackHeight)
}

// Ratio is how far the reference line has travelled from the first to the
// last marker, clamped to [0,1].
func (m Mapping) Ratio(scrollTop, viewportHeight float64) float64 {
	ref := ReferenceLine(scrollTop, viewportHeight)
	return clamp01((ref - m.FirstOffset) / m.span())
}

// Synthetic returns the exact synthetic offset for a real scroll offset.
func (m Mapping) Synthetic(scrollTop, viewportHeight float64) float64 {
	return m.Ratio(scrollTop, viewportHeight) * m.SyntheticMax()
}

// Forward returns the synthetic offset to apply, rounded to a whole unit.
func (m Mapping) Forward(scrollTop, viewportHeight float64) float64 {
	return math.Round(m.Synthetic(scrollTop, viewportHeight))
}

// ShouldApply reports whether target differs enough from current to be
// worth writing. Sub-unit differences are rounding noise.
func ShouldApply(current, target float64) bool {
	return math.Abs(current-target) > 1
}

// Reverse maps a synthetic offset back to a real scroll offset, clamped to
// [0, totalScrollable]. It inverts Ratio, so Reverse(Synthetic(x)) == x for
// offsets whose reference line lies between the first and last marker.
func (m Mapping) Reverse(synthetic, viewportHeight, totalScrollable float64) float64 {
	maxSyn := m.SyntheticMax()
	r := 0.0
	if maxSyn > 0 {
		r = clamp01(synthetic / maxSyn)
	}
	top := m.FirstOffset + r*m.span() - viewportHeight*ReferenceRatio
	return math.Max(0, math.Min(top, math.Max(0, totalScrollable)))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
