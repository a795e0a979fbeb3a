// Package virtualize keeps render handles only for markers near the
// visible part of the synthetic track.
package virtualize

import (
	"github.com/lotas/chatnav/internal/geometry"
)

// State is the display state a handle must reflect.
type State struct {
	Active  bool
	Starred bool
	Holding bool
}

// Handle is an opaque visual element owned by a Target.
type Handle any

// Target creates and destroys visual handles.
type Target interface {
	Create(index int, pos float64, st State) Handle
	Update(h Handle, pos float64, st State)
	Destroy(h Handle)
}

// Discard is a Target that draws nothing, for engines run without a
// display.
var Discard Target = discard{}

type discard struct{}

func (discard) Create(int, float64, State) Handle { return struct{}{} }
func (discard) Update(Handle, float64, State)     {}
func (discard) Destroy(Handle)                    {}

// Range is an inclusive index range. End < Start means empty.
type Range struct {
	Start int
	End   int
}

// EmptyRange is the range with no indices.
var EmptyRange = Range{Start: 0, End: -1}

// Empty reports whether r contains no indices.
func (r Range) Empty() bool { return r.End < r.Start }

// Contains reports whether i is inside r.
func (r Range) Contains(i int) bool { return i >= r.Start && i <= r.End }

// Len returns the number of indices in r.
func (r Range) Len() int {
	if r.Empty() {
		return 0
	}
	return r.End - r.Start + 1
}

// Stats counts handle churn for one commit.
type Stats struct {
	Created   int
	Destroyed int
	Updated   int
}

// Plan is a computed render window waiting to be committed.
type Plan struct {
	Range     Range
	Positions []float64
	version   uint64
}

// Virtualizer maintains handles for the markers in the current window.
// It is not safe for concurrent use; the engine serializes access.
type Virtualizer struct {
	target  Target
	cfg     geometry.Config
	handles []Handle
	rng     Range
	version uint64
}

// New creates a Virtualizer rendering into target.
func New(target Target, cfg geometry.Config) *Virtualizer {
	return &Virtualizer{target: target, cfg: cfg, rng: EmptyRange}
}

// Version returns the marker-set version. It advances on every Reset.
func (v *Virtualizer) Version() uint64 { return v.version }

// Range returns the committed window.
func (v *Virtualizer) Range() Range { return v.rng }

// Handle returns the live handle for index i, if any.
func (v *Virtualizer) Handle(i int) (Handle, bool) {
	if i < 0 || i >= len(v.handles) || v.handles[i] == nil {
		return nil, false
	}
	return v.handles[i], true
}

// Rendered returns the number of live handles.
func (v *Virtualizer) Rendered() int {
	n := 0
	for _, h := range v.handles {
		if h != nil {
			n++
		}
	}
	return n
}

// Reset drops every handle and prepares for a marker set of size count.
// Plans taken before Reset are stale afterwards.
func (v *Virtualizer) Reset(count int) {
	v.clear()
	v.handles = make([]Handle, count)
	v.rng = EmptyRange
	v.version++
}

// Plan computes the window for the given track scroll offset.
func (v *Virtualizer) Plan(positions []float64, scrollOffset, viewportHeight float64) Plan {
	buffer := v.cfg.Buffer(viewportHeight)
	start := geometry.LowerBound(positions, scrollOffset-buffer)
	end := max(start-1, geometry.UpperBound(positions, scrollOffset+viewportHeight+buffer))
	return Plan{
		Range:     Range{Start: start, End: end},
		Positions: positions,
		version:   v.version,
	}
}

// Commit applies p. It returns false without touching any handle when the
// marker set changed after p was planned.
func (v *Virtualizer) Commit(p Plan, stateOf func(i int) State) (Stats, bool) {
	var st Stats
	if p.version != v.version {
		return st, false
	}

	n := len(p.Positions)
	prev := v.rng
	if len(v.handles) != n || (!prev.Empty() && (prev.Start < 0 || prev.End >= n)) {
		st.Destroyed += v.clear()
		v.handles = make([]Handle, n)
		prev = EmptyRange
	}

	if !prev.Empty() {
		for i := prev.Start; i <= prev.End; i++ {
			if !p.Range.Contains(i) && v.handles[i] != nil {
				v.target.Destroy(v.handles[i])
				v.handles[i] = nil
				st.Destroyed++
			}
		}
	}

	for i := p.Range.Start; i <= p.Range.End; i++ {
		if v.handles[i] == nil {
			v.handles[i] = v.target.Create(i, p.Positions[i], stateOf(i))
			st.Created++
			continue
		}
		v.target.Update(v.handles[i], p.Positions[i], stateOf(i))
		st.Updated++
	}

	v.rng = p.Range
	return st, true
}

// Reconcile plans and commits in one step.
func (v *Virtualizer) Reconcile(positions []float64, scrollOffset, viewportHeight float64, stateOf func(i int) State) (Range, Stats) {
	st, _ := v.Commit(v.Plan(positions, scrollOffset, viewportHeight), stateOf)
	return v.rng, st
}

// Refresh pushes a new display state to the handle for i if it is live.
func (v *Virtualizer) Refresh(i int, pos float64, st State) {
	if h, ok := v.Handle(i); ok {
		v.target.Update(h, pos, st)
	}
}

func (v *Virtualizer) clear() int {
	n := 0
	for i, h := range v.handles {
		if h != nil {
			v.target.Destroy(h)
			v.handles[i] = nil
			n++
		}
	}
	v.rng = EmptyRange
	return n
}
