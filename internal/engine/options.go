package engine

import (
	"time"

	"github.com/lotas/chatnav/internal/clock"
	"github.com/lotas/chatnav/internal/geometry"
)

// Timing groups every delay the engine schedules.
type Timing struct {
	RebuildDelay   time.Duration // debounce for content changes
	ZeroRetryDelay time.Duration // wait between rebuilds that found no messages
	ZeroRetryMax   int
	ActiveInterval time.Duration // minimum time between active-marker changes
	FadeDelay      time.Duration // slider fade after the pointer leaves
	LongPress      time.Duration // hold time that toggles a star
	ClickSuppress  time.Duration // clicks ignored after a long press
	Smooth         time.Duration // jump animation length
	Frame          time.Duration // scroll pass interval
}

// DefaultTiming matches the browser extension.
func DefaultTiming() Timing {
	return Timing{
		RebuildDelay:   350 * time.Millisecond,
		ZeroRetryDelay: 350 * time.Millisecond,
		ZeroRetryMax:   10,
		ActiveInterval: 120 * time.Millisecond,
		FadeDelay:      1000 * time.Millisecond,
		LongPress:      550 * time.Millisecond,
		ClickSuppress:  350 * time.Millisecond,
		Smooth:         600 * time.Millisecond,
		Frame:          16 * time.Millisecond,
	}
}

func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.RebuildDelay <= 0 {
		t.RebuildDelay = d.RebuildDelay
	}
	if t.ZeroRetryDelay <= 0 {
		t.ZeroRetryDelay = d.ZeroRetryDelay
	}
	if t.ZeroRetryMax <= 0 {
		t.ZeroRetryMax = d.ZeroRetryMax
	}
	if t.ActiveInterval <= 0 {
		t.ActiveInterval = d.ActiveInterval
	}
	if t.FadeDelay <= 0 {
		t.FadeDelay = d.FadeDelay
	}
	if t.LongPress <= 0 {
		t.LongPress = d.LongPress
	}
	if t.ClickSuppress <= 0 {
		t.ClickSuppress = d.ClickSuppress
	}
	if t.Smooth <= 0 {
		t.Smooth = d.Smooth
	}
	if t.Frame <= 0 {
		t.Frame = d.Frame
	}
	return t
}

// RailConfig sizes the external slider rail.
type RailConfig struct {
	Min    float64
	Max    float64
	Handle float64
}

// DefaultRail is the browser rail: 120 to 240 px with a 22 px handle.
func DefaultRail() RailConfig {
	return RailConfig{Min: 120, Max: 240, Handle: 22}
}

// Options configures an Engine. Zero fields take the defaults.
type Options struct {
	ConversationID string
	Geometry       geometry.Config
	Timing         Timing
	Rail           RailConfig
	PressTolerance float64 // pointer travel that cancels a long press
	Clock          clock.Clock
	Store          Store
	Summarizer     Summarizer
	DisableAI      bool
}

func (o Options) withDefaults() Options {
	if o.Geometry == (geometry.Config{}) {
		o.Geometry = geometry.DefaultConfig()
	}
	o.Timing = o.Timing.withDefaults()
	if o.Rail == (RailConfig{}) {
		o.Rail = DefaultRail()
	}
	if o.PressTolerance <= 0 {
		o.PressTolerance = 6
	}
	if o.Clock == nil {
		o.Clock = clock.Real{}
	}
	return o
}
