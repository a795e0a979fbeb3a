// Package config loads the optional chatnav YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lotas/chatnav/internal/engine"
	"github.com/lotas/chatnav/internal/geometry"
)

// Config is the top-level configuration. Every field is optional.
type Config struct {
	Geometry GeometryConfig `yaml:"geometry"`
	Timing   TimingConfig   `yaml:"timing"`
	Theme    ThemeConfig    `yaml:"theme"`
	Server   ServerConfig   `yaml:"server"`
	Model    string         `yaml:"model"`
	Ollama   string         `yaml:"ollama_host"`
	DB       string         `yaml:"db"`
}

// GeometryConfig sizes the timeline column in terminal rows.
type GeometryConfig struct {
	Pad        float64 `yaml:"pad"`
	MinGap     float64 `yaml:"min_gap"`
	MinBuffer  float64 `yaml:"min_buffer"`
	RailMin    float64 `yaml:"rail_min"`
	RailMax    float64 `yaml:"rail_max"`
	RailHandle float64 `yaml:"rail_handle"`
	Width      int     `yaml:"width"` // timeline column width in cells
}

// TimingConfig overrides the timeline delays.
type TimingConfig struct {
	RebuildDelay     time.Duration `yaml:"rebuild_delay"`
	ActiveInterval   time.Duration `yaml:"active_interval"`
	FadeDelay        time.Duration `yaml:"fade_delay"`
	LongPress        time.Duration `yaml:"long_press"`
	Smooth           time.Duration `yaml:"smooth_scroll"`
	RouteSettle      time.Duration `yaml:"route_settle"`
	BootstrapTimeout time.Duration `yaml:"bootstrap_timeout"`
	Watch            time.Duration `yaml:"watch_delay"`
}

// ThemeConfig holds lipgloss colors.
type ThemeConfig struct {
	Accent string `yaml:"accent"`
	Star   string `yaml:"star"`
	Muted  string `yaml:"muted"`
	User   string `yaml:"user"`
}

// ServerConfig configures the extension bridge.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns the built-in configuration.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

// DefaultPath is ~/.config/chatnav/config.yaml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "chatnav", "config.yaml")
}

// LoadFile reads a YAML configuration file. A missing file yields the
// defaults.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	g := &c.Geometry
	if g.Pad <= 0 {
		g.Pad = 1
	}
	if g.MinGap <= 0 {
		g.MinGap = 1
	}
	if g.MinBuffer <= 0 {
		g.MinBuffer = 8
	}
	if g.RailMin <= 0 {
		g.RailMin = 4
	}
	if g.RailMax < g.RailMin {
		g.RailMax = max(12, g.RailMin)
	}
	if g.RailHandle <= 0 {
		g.RailHandle = 1
	}
	if g.Width <= 0 {
		g.Width = 28
	}

	d := engine.DefaultTiming()
	t := &c.Timing
	if t.RebuildDelay <= 0 {
		t.RebuildDelay = d.RebuildDelay
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
	if t.Smooth <= 0 {
		t.Smooth = d.Smooth
	}
	if t.RouteSettle <= 0 {
		t.RouteSettle = 300 * time.Millisecond
	}
	if t.BootstrapTimeout <= 0 {
		t.BootstrapTimeout = 5 * time.Second
	}
	if t.Watch <= 0 {
		t.Watch = 200 * time.Millisecond
	}

	if c.Theme.Accent == "" {
		c.Theme.Accent = "62"
	}
	if c.Theme.Star == "" {
		c.Theme.Star = "214"
	}
	if c.Theme.Muted == "" {
		c.Theme.Muted = "241"
	}
	if c.Theme.User == "" {
		c.Theme.User = "39"
	}
	if c.Server.Port <= 0 {
		c.Server.Port = 19192
	}
	if c.Model == "" {
		c.Model = "llama3.2"
	}
	if c.Ollama == "" {
		c.Ollama = "http://localhost:11434"
	}
}

// EngineOptions turns the geometry and timing sections into engine options.
func (c Config) EngineOptions() engine.Options {
	timing := engine.DefaultTiming()
	timing.RebuildDelay = c.Timing.RebuildDelay
	timing.ZeroRetryDelay = c.Timing.RebuildDelay
	timing.ActiveInterval = c.Timing.ActiveInterval
	timing.FadeDelay = c.Timing.FadeDelay
	timing.LongPress = c.Timing.LongPress
	timing.Smooth = c.Timing.Smooth
	return engine.Options{
		Geometry: geometry.Config{
			Pad:       c.Geometry.Pad,
			MinGap:    c.Geometry.MinGap,
			MinBuffer: c.Geometry.MinBuffer,
		},
		Timing: timing,
		Rail: engine.RailConfig{
			Min:    c.Geometry.RailMin,
			Max:    c.Geometry.RailMax,
			Handle: c.Geometry.RailHandle,
		},
		PressTolerance: 1,
	}
}
