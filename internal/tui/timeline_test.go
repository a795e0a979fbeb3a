package tui

import (
	"strings"
	"testing"

	"github.com/lotas/chatnav/internal/config"
	"github.com/lotas/chatnav/internal/engine"
	"github.com/lotas/chatnav/internal/scrollsync"
	"github.com/lotas/chatnav/internal/virtualize"
)

func testTheme() Theme {
	return NewTheme(config.Default().Theme)
}

func TestTimelineHandles(t *testing.T) {
	tl := NewTimeline()
	a := tl.Create(0, 2, virtualize.State{})
	b := tl.Create(1, 6, virtualize.State{Active: true})
	if tl.Len() != 2 {
		t.Fatalf("Len = %d", tl.Len())
	}
	tl.Update(a, 3, virtualize.State{Starred: true})
	tl.Destroy(b)
	if tl.Len() != 1 {
		t.Fatalf("Len after destroy = %d", tl.Len())
	}
	if i, ok := tl.MarkerAt(3, 0); !ok || i != 0 {
		t.Errorf("MarkerAt(3) = %d, %v", i, ok)
	}
	if _, ok := tl.MarkerAt(6, 0); ok {
		t.Error("destroyed marker still hit")
	}
	// Track scroll shifts rows up.
	if i, ok := tl.MarkerAt(1, 2); !ok || i != 0 {
		t.Errorf("MarkerAt with scroll = %d, %v", i, ok)
	}

	// Foreign handles are ignored.
	tl.Update("nope", 1, virtualize.State{})
	tl.Destroy(42)
	if tl.Len() != 1 {
		t.Errorf("Len = %d", tl.Len())
	}
}

func TestTimelineView(t *testing.T) {
	tl := NewTimeline()
	tl.SetSize(20, 10)
	tl.Create(0, 1, virtualize.State{})
	tl.Create(1, 4, virtualize.State{Active: true})
	tl.Create(2, 7, virtualize.State{Starred: true})
	tl.Create(3, 30, virtualize.State{}) // below the column

	snap := engine.Snapshot{
		Markers: []engine.MarkerView{
			{Label: "first question"},
			{Label: "second question"},
			{Label: "a very long third question that does not fit"},
			{Label: "far away"},
		},
	}
	rows := strings.Split(tl.View(snap, testTheme()), "\n")
	if len(rows) != 10 {
		t.Fatalf("got %d rows, want 10", len(rows))
	}
	if !strings.Contains(rows[1], glyphMarker) || !strings.Contains(rows[1], "first question") {
		t.Errorf("row 1 = %q", rows[1])
	}
	if !strings.Contains(rows[4], glyphActive) {
		t.Errorf("row 4 = %q, want active glyph", rows[4])
	}
	if !strings.Contains(rows[7], glyphStar) || !strings.Contains(rows[7], "…") {
		t.Errorf("row 7 = %q, want star and truncated label", rows[7])
	}
	for i, r := range rows {
		if strings.Contains(r, "far away") {
			t.Errorf("row %d shows a marker outside the column", i)
		}
	}
}

func TestTimelineRail(t *testing.T) {
	tl := NewTimeline()
	tl.SetSize(10, 12)
	rail := scrollsync.Rail{Length: 6, Handle: 1}
	if got := tl.RailTop(rail); got != 3 {
		t.Errorf("RailTop = %d, want 3", got)
	}
	if !tl.OnRail(9) || tl.OnRail(8) {
		t.Error("rail should be the last column")
	}

	snap := engine.Snapshot{Slider: scrollsync.SliderVisible, Rail: rail, HandleTop: 2}
	rows := strings.Split(tl.View(snap, testTheme()), "\n")
	if !strings.Contains(rows[5], glyphHandle) {
		t.Errorf("row 5 = %q, want handle", rows[5])
	}
	if !strings.Contains(rows[3], glyphRail) || strings.Contains(rows[2], glyphRail) {
		t.Errorf("rail rows wrong: %q / %q", rows[2], rows[3])
	}

	snap.Slider = scrollsync.SliderHidden
	if strings.Contains(tl.View(snap, testTheme()), glyphRail) {
		t.Error("hidden slider drew a rail")
	}
}

func TestPadCells(t *testing.T) {
	if got := padCells("abc", 5); got != "abc  " {
		t.Errorf("padCells = %q", got)
	}
	if got := padCells("abcdef", 4); got != "abcd" {
		t.Errorf("padCells = %q", got)
	}
	if got := padCells("abc", 0); got != "" {
		t.Errorf("padCells = %q", got)
	}
}
