package config

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-fog/engine/density"
	"github.com/Carmen-Shannon/oxy-fog/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := Default()
	if cfg.Width != def.Width || cfg.Height != def.Height || cfg.Volume.Radius != def.Volume.Radius {
		t.Errorf("Load() of a missing file = %+v, want defaults", cfg)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := writeFile(t, `{"width": 320, "fog": {"density_scale": 2.5}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Width != 320 || cfg.Height != 1080 {
		t.Errorf("resolution = %dx%d, want 320x1080", cfg.Width, cfg.Height)
	}
	if cfg.Fog.DensityScale != 2.5 {
		t.Errorf("DensityScale = %v, want 2.5", cfg.Fog.DensityScale)
	}
	if cfg.Fog.StepSize != 0.1 || cfg.Fog.LightAbsorb != [3]float32{0.15, 0.15, 0.15} {
		t.Errorf("fog defaults lost: %+v", cfg.Fog)
	}
	if len(cfg.Lights) != 1 || cfg.Lights[0].Type != "directional" {
		t.Errorf("Lights = %+v, want the default directional light", cfg.Lights)
	}
}

func TestLoadReplacesLights(t *testing.T) {
	path := writeFile(t, `{"lights": [{"type": "point", "position": [1, 2, 3]}]}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Lights) != 1 {
		t.Fatalf("len(Lights) = %d, want 1", len(cfg.Lights))
	}
	l := cfg.Lights[0]
	if l.Type != "point" || l.Position != [3]float32{1, 2, 3} {
		t.Errorf("light = %+v", l)
	}
	if l.Direction != ([3]float32{}) {
		t.Errorf("default light direction leaked into file light: %v", l.Direction)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		invalid  bool
	}{
		{"malformed json", `{"width": `, false},
		{"zero width", `{"width": 0}`, true},
		{"negative radius", `{"volume": {"radius": -1}}`, true},
		{"zero step", `{"fog": {"step_size": 0}}`, true},
		{"bad clip", `{"camera": {"near": 10, "far": 1}}`, true},
		{"unknown light", `{"lights": [{"type": "area"}]}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.contents))
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if got := errors.Is(err, ErrInvalidConfig); got != tt.invalid {
				t.Errorf("errors.Is(err, ErrInvalidConfig) = %v, want %v (err %v)", got, tt.invalid, err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Width = 640
	cfg.Density.Source = "uniform"
	path := filepath.Join(t.TempDir(), "out.json")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Width != 640 || got.Density.Source != "uniform" {
		t.Errorf("round trip = %+v", got)
	}
}

func TestNewField(t *testing.T) {
	tests := []struct {
		source string
		levels int
	}{
		{"uniform", 4},
		{"sphere", 4},
		{"cutoff", 1},
		{"cloud", 4},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			cfg := Default()
			cfg.Density.Source = tt.source
			cfg.Density.Size = 16
			cfg.Density.Cutoff = 0.5
			f, err := cfg.NewField()
			if err != nil {
				t.Fatalf("NewField() error = %v", err)
			}
			if tt.source != "cloud" && f.Levels() != tt.levels {
				t.Errorf("Levels() = %d, want %d", f.Levels(), tt.levels)
			}
		})
	}

	t.Run("file", func(t *testing.T) {
		g, err := density.Generate(4, 4, 4, func(mgl32.Vec3) float32 { return 0.25 })
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		path := filepath.Join(t.TempDir(), "vol.fogvol")
		if err := density.Save(path, g); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		cfg := Default()
		cfg.Density = DensityConfig{Source: "file", Path: path}
		f, err := cfg.NewField()
		if err != nil {
			t.Fatalf("NewField() error = %v", err)
		}
		if f.Levels() != g.Levels() {
			t.Errorf("Levels() = %d, want %d", f.Levels(), g.Levels())
		}
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := Default()
		cfg.Density.Source = "smoke"
		if _, err := cfg.NewField(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("NewField() error = %v, want ErrInvalidConfig", err)
		}
	})
}

func TestNewLights(t *testing.T) {
	cfg := Default()
	cfg.Lights = []LightConfig{
		{Type: "Spot", Position: [3]float32{0, 5, 0}, Direction: [3]float32{0, -1, 0}, InnerDeg: 10, OuterDeg: 20},
		{Type: "point", Disabled: true},
	}

	lights, err := cfg.NewLights()
	if err != nil {
		t.Fatalf("NewLights() error = %v", err)
	}
	if len(lights) != 2 {
		t.Fatalf("len(lights) = %d, want 2", len(lights))
	}
	if lights[0].Type() != light.LightTypeSpot {
		t.Errorf("Type() = %v, want spot", lights[0].Type())
	}
	if lights[0].OuterCone() >= lights[0].InnerCone() {
		t.Errorf("cone cosines inner %v outer %v, want inner > outer", lights[0].InnerCone(), lights[0].OuterCone())
	}
	if lights[1].Enabled() {
		t.Error("disabled light reported enabled")
	}
}

func TestSceneOptions(t *testing.T) {
	cfg := Default()
	cfg.Density.Size = 16
	cfg.Volume.AngleDeg = 90

	opts, err := cfg.SceneOptions()
	if err != nil {
		t.Fatalf("SceneOptions() error = %v", err)
	}
	if len(opts) != 5 {
		t.Errorf("len(opts) = %d, want 5", len(opts))
	}

	s := cfg.Settings()
	if s.FixedLOD != -1 || s.FogColor != (mgl32.Vec3{1, 1, 1}) {
		t.Errorf("Settings() = %+v", s)
	}
}

func TestKernelOptions(t *testing.T) {
	tests := []struct {
		name     string
		renderer RendererConfig
		want     int
	}{
		{"defaults", RendererConfig{Workers: 2}, 1},
		{"tile", RendererConfig{Workers: 2, Tile: [2]int{32, 8}}, 2},
		{"half tile ignored", RendererConfig{Tile: [2]int{32, 0}}, 1},
		{"all", RendererConfig{Tile: [2]int{8, 8}, QueueSize: 16, IdleTimeoutMs: 500}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Renderer = tt.renderer
			if got := len(cfg.KernelOptions()); got != tt.want {
				t.Errorf("len(KernelOptions()) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPreviewOptions(t *testing.T) {
	cfg := Default()
	if got := len(cfg.PreviewOptions()); got != 0 {
		t.Errorf("default PreviewOptions() has %d options, want 0", got)
	}
	cfg.Preview = PreviewConfig{CommandBuffer: 8, WriteTimeoutMs: 100, AllowOrigins: []string{"localhost:3000"}}
	if got := len(cfg.PreviewOptions()); got != 3 {
		t.Errorf("PreviewOptions() has %d options, want 3", got)
	}
}

func TestOriginCheck(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin header", []string{"a.test"}, "", true},
		{"same host", []string{"a.test"}, "http://preview.test:8080", true},
		{"listed host", []string{"a.test"}, "http://A.test", true},
		{"unlisted host", []string{"a.test"}, "http://b.test", false},
		{"wildcard", []string{"*"}, "http://b.test", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://preview.test:8080/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := originCheck(tt.allowed)(r); got != tt.want {
				t.Errorf("originCheck(%v) for %q = %v, want %v", tt.allowed, tt.origin, got, tt.want)
			}
		})
	}
}

func TestNewCameraUpFallback(t *testing.T) {
	cfg := Default()
	cfg.Camera.Up = [3]float32{}
	if got := cfg.NewCamera().Up(); got != (mgl32.Vec3{0, 1, 0}) {
		t.Errorf("Up() = %v, want +Y for a zero up vector", got)
	}
	cfg.Camera.Up = [3]float32{0, 0, 2}
	if got := cfg.NewCamera().Up(); got != (mgl32.Vec3{0, 0, 1}) {
		t.Errorf("Up() = %v, want normalized +Z", got)
	}
}
