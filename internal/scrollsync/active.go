package scrollsync

import "math"

// belowPenalty ranks visible candidates below the reference line after
// every candidate at or above it.
const belowPenalty = 10000

// ActiveIndex picks the marker currently being read.
//
// tops are marker offsets in document order. visible, when non-empty,
// lists indices the host reports as intersecting the reading band. The
// best visible candidate is the one closest to the reference line from
// above; if it sits at or above the line it wins. Otherwise (nothing
// visible, or only candidates below the line) the linear scan decides:
// the last marker whose top is at or above the line, or 0.
//
// Returns -1 when there are no markers.
func ActiveIndex(tops []float64, ref float64, visible []int) int {
	if len(tops) == 0 {
		return -1
	}

	best, bestScore := -1, math.Inf(1)
	for _, idx := range visible {
		if idx < 0 || idx >= len(tops) {
			continue
		}
		dy := ref - tops[idx]
		score := dy
		if dy < 0 {
			score = -dy + belowPenalty
		}
		if score < bestScore || (score == bestScore && idx < best) {
			best, bestScore = idx, score
		}
	}
	if best >= 0 && tops[best] <= ref {
		return best
	}

	active := 0
	for i, top := range tops {
		if top > ref {
			break
		}
		active = i
	}
	return active
}
