// Package geometry maps normalized marker positions onto the synthetic
// timeline track while keeping a minimum gap between neighbours.
package geometry

import "math"

// Config holds the track constants that used to be read from computed
// style. Units are whatever the host measures in (CSS pixels in the
// browser, rows in the terminal).
type Config struct {
	Pad       float64 // padding above the first and below the last marker
	MinGap    float64 // minimum distance between consecutive markers
	MinBuffer float64 // lower bound for the virtualization buffer
}

// DefaultConfig matches the extension's CSS defaults.
func DefaultConfig() Config {
	return Config{Pad: 12, MinGap: 12, MinBuffer: 100}
}

// Solve places rawFractions on [minBound, maxBound], tracking the raw
// positions as closely as the minimum gap allows.
func Solve(rawFractions []float64, minBound, maxBound, minGap float64) []float64 {
	desired := make([]float64, len(rawFractions))
	span := maxBound - minBound
	for i, f := range rawFractions {
		desired[i] = minBound + clamp01(f)*span
	}
	return Enforce(desired, minBound, maxBound, minGap)
}

// Enforce applies the two-pass clamp-and-push to pixel positions.
// The result is non-decreasing and inside the bounds. When the gap cannot
// fit (minGap*(n-1) > maxBound-minBound) points coincide at the bounds
// instead of overflowing.
func Enforce(desired []float64, minBound, maxBound, minGap float64) []float64 {
	n := len(desired)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if minGap < 0 {
		minGap = 0
	}

	out[0] = clamp(desired[0], minBound, maxBound)
	for i := 1; i < n; i++ {
		out[i] = math.Max(desired[i], out[i-1]+minGap)
	}

	if out[n-1] > maxBound {
		out[n-1] = maxBound
		for i := n - 2; i >= 0; i-- {
			out[i] = math.Min(out[i], out[i+1]-minGap)
		}
		if out[0] < minBound {
			out[0] = minBound
			for i := 1; i < n; i++ {
				out[i] = math.Max(out[i], out[i-1]+minGap)
			}
		}
	}

	for i := range out {
		out[i] = clamp(out[i], minBound, maxBound)
	}
	return out
}

// LowerBound returns the first index whose value is >= x.
func LowerBound(sorted []float64, x float64) int {
	lo, hi := 0, len(sorted)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if sorted[mid] < x {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// UpperBound returns the last index whose value is <= x, or -1.
func UpperBound(sorted []float64, x float64) int {
	lo, hi := 0, len(sorted)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if sorted[mid] <= x {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo - 1
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
