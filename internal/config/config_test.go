package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	def := Default()
	if cfg.Geometry != def.Geometry || cfg.Timing != def.Timing {
		t.Errorf("got %+v, want defaults %+v", cfg, def)
	}
	if cfg.Timing.RebuildDelay != 350*time.Millisecond || cfg.Timing.BootstrapTimeout != 5*time.Second {
		t.Errorf("timing = %+v", cfg.Timing)
	}
	if cfg.Server.Port != 19192 || cfg.Model != "llama3.2" {
		t.Errorf("server=%d model=%q", cfg.Server.Port, cfg.Model)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
geometry:
  pad: 2
  min_gap: 3
  width: 40
timing:
  rebuild_delay: 500ms
  long_press: 1s
theme:
  star: "#ffcc00"
server:
  port: 20000
model: qwen2.5
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Geometry.Pad != 2 || cfg.Geometry.MinGap != 3 || cfg.Geometry.Width != 40 {
		t.Errorf("geometry = %+v", cfg.Geometry)
	}
	if cfg.Geometry.MinBuffer != 8 {
		t.Errorf("unset min_buffer should default, got %v", cfg.Geometry.MinBuffer)
	}
	if cfg.Timing.RebuildDelay != 500*time.Millisecond || cfg.Timing.LongPress != time.Second {
		t.Errorf("timing = %+v", cfg.Timing)
	}
	if cfg.Theme.Star != "#ffcc00" || cfg.Theme.Accent != "62" {
		t.Errorf("theme = %+v", cfg.Theme)
	}
	if cfg.Server.Port != 20000 || cfg.Model != "qwen2.5" {
		t.Errorf("server=%d model=%q", cfg.Server.Port, cfg.Model)
	}

	opts := cfg.EngineOptions()
	if opts.Geometry.MinGap != 3 || opts.Timing.RebuildDelay != 500*time.Millisecond {
		t.Errorf("engine options = %+v", opts)
	}
	if opts.Timing.ClickSuppress <= 0 || opts.Timing.Frame <= 0 {
		t.Errorf("unconfigured timings should keep defaults: %+v", opts.Timing)
	}
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("geometry: [not, a, map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error")
	}
}
