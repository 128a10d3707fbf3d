package main

import (
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-fog/engine/config"
	"github.com/Carmen-Shannon/oxy-fog/engine/density"
)

func TestFramePath(t *testing.T) {
	tests := []struct {
		path   string
		frame  int
		frames int
		want   string
	}{
		{"fog.exr", 0, 1, "fog.exr"},
		{"fog.exr", 3, 10, "fog_0003.exr"},
		{"out/fog.png", 12, 24, "out/fog_0012.png"},
		{"", 1, 4, ""},
	}
	for _, tt := range tests {
		if got := framePath(tt.path, tt.frame, tt.frames); got != tt.want {
			t.Errorf("framePath(%q, %d, %d) = %q, want %q", tt.path, tt.frame, tt.frames, got, tt.want)
		}
	}
}

func TestBakeField(t *testing.T) {
	cfg := config.Default()
	cfg.Density.Source = "sphere"
	cfg.Renderer.BakeResolution = 8
	path := filepath.Join(t.TempDir(), "sphere.fogvol")

	if err := bakeField(cfg, path); err != nil {
		t.Fatalf("bakeField() error = %v", err)
	}
	g, err := density.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	lvl, err := g.Level(0)
	if err != nil {
		t.Fatalf("Level(0) error = %v", err)
	}
	if lvl.Width != 8 || lvl.Height != 8 || lvl.Depth != 8 {
		t.Errorf("level 0 = %dx%dx%d, want 8x8x8", lvl.Width, lvl.Height, lvl.Depth)
	}
}
