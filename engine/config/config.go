// Package config loads the JSON scene description used by the fogsphere tool and
// turns it into cameras, lights, density fields and scene options.
package config

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/Carmen-Shannon/oxy-fog/engine/camera"
	"github.com/Carmen-Shannon/oxy-fog/engine/density"
	"github.com/Carmen-Shannon/oxy-fog/engine/fog"
	"github.com/Carmen-Shannon/oxy-fog/engine/light"
	"github.com/Carmen-Shannon/oxy-fog/engine/preview"
	"github.com/Carmen-Shannon/oxy-fog/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrInvalidConfig is returned when a loaded file fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the on-disk scene description. Keys missing from a file keep their
// Default values.
type Config struct {
	Width  int `json:"width"`
	Height int `json:"height"`

	Camera   CameraConfig   `json:"camera"`
	Volume   VolumeConfig   `json:"volume"`
	Fog      FogConfig      `json:"fog"`
	Density  DensityConfig  `json:"density"`
	Lights   []LightConfig  `json:"lights"`
	Output   OutputConfig   `json:"output"`
	Renderer RendererConfig `json:"renderer"`
	Preview  PreviewConfig  `json:"preview"`
}

// CameraConfig describes the orbit camera.
type CameraConfig struct {
	Fov       float32    `json:"fov"` // degrees
	Near      float32    `json:"near"`
	Far       float32    `json:"far"`
	Target    [3]float32 `json:"target"`
	Radius    float32    `json:"radius"`
	Azimuth   float32    `json:"azimuth"`   // degrees
	Elevation float32    `json:"elevation"` // degrees
	Up        [3]float32 `json:"up"`
	ZoomSpeed float32    `json:"zoom_speed"`
}

// VolumeConfig places the fog sphere.
type VolumeConfig struct {
	Center   [3]float32 `json:"center"`
	Radius   float32    `json:"radius"`
	Axis     [3]float32 `json:"axis"`
	AngleDeg float32    `json:"angle"`
}

// FogConfig holds the appearance values forwarded to the kernel.
type FogConfig struct {
	DensityScale         float32    `json:"density_scale"`
	StepSize             float32    `json:"step_size"`
	MaxDistance          float32    `json:"max_distance"`
	NoiseInfluence       float32    `json:"noise_influence"`
	NoiseScale           float32    `json:"noise_scale"`
	FogColor             [3]float32 `json:"fog_color"`
	LightAbsorb          [3]float32 `json:"light_absorb"`
	InitialTransmittance float32    `json:"initial_transmittance"`
	LOD                  int        `json:"lod"` // -1 selects from distance

	// ShadowColor and DarknessThreshold are accepted for older scene files.
	// The kernel does not read them.
	ShadowColor       [3]float32 `json:"shadow_color"`
	DarknessThreshold float32    `json:"darkness_threshold"`
}

// DensityConfig selects the density source.
type DensityConfig struct {
	// Source is one of uniform, sphere, cutoff, cloud or file.
	Source    string  `json:"source"`
	Value     float32 `json:"value"`
	Levels    int     `json:"levels"`
	Cutoff    float32 `json:"cutoff"`
	Size      int     `json:"size"`
	Frequency float32 `json:"frequency"`
	Octaves   int     `json:"octaves"`
	Path      string  `json:"path"`
}

// LightConfig describes one light.
type LightConfig struct {
	// Type is one of directional, point or spot.
	Type        string     `json:"type"`
	Position    [3]float32 `json:"position"`
	Direction   [3]float32 `json:"direction"`
	Color       [3]float32 `json:"color"`
	Intensity   float32    `json:"intensity"`
	Attenuation [3]float32 `json:"attenuation"` // constant, linear, quadratic
	InnerDeg    float32    `json:"inner"`
	OuterDeg    float32    `json:"outer"`
	Disabled    bool       `json:"disabled"`
}

// OutputConfig names the files a batch render writes.
type OutputConfig struct {
	EXR        string     `json:"exr"`
	PNG        string     `json:"png"`
	Background [3]float32 `json:"background"`
	Exposure   float32    `json:"exposure"`
}

// RendererConfig picks the kernel backend and tunes it.
type RendererConfig struct {
	GPU            bool `json:"gpu"`
	Workers        int  `json:"workers"`
	BakeResolution int  `json:"bake_resolution"`

	// GPU only.
	Software bool `json:"software"`
	LowPower bool `json:"low_power"`

	// CPU only. Zero keeps the kernel defaults.
	Tile          [2]int `json:"tile"`
	QueueSize     int    `json:"queue_size"`
	IdleTimeoutMs int    `json:"idle_timeout_ms"`
}

// PreviewConfig tunes the websocket preview server. Zero values keep the server defaults.
type PreviewConfig struct {
	CommandBuffer  int `json:"command_buffer"`
	WriteTimeoutMs int `json:"write_timeout_ms"`

	// AllowOrigins lists extra hosts allowed to open the socket. "*" allows any.
	AllowOrigins []string `json:"allow_origins"`
}

// Default returns the stock scene: a 1920x1080 view of a radius-10 cloud lit by a
// single white directional light.
func Default() Config {
	return Config{
		Width:  1920,
		Height: 1080,
		Camera: CameraConfig{
			Fov:       60,
			Near:      0.1,
			Far:       1000,
			Radius:    30,
			Elevation: 15,
			Up:        [3]float32{0, 1, 0},
			ZoomSpeed: 1,
		},
		Volume: VolumeConfig{
			Radius: 10,
			Axis:   [3]float32{0, 1, 0},
		},
		Fog: FogConfig{
			DensityScale:         1,
			StepSize:             0.1,
			MaxDistance:          100,
			NoiseScale:           1,
			FogColor:             [3]float32{1, 1, 1},
			LightAbsorb:          [3]float32{0.15, 0.15, 0.15},
			InitialTransmittance: 1,
			LOD:                  -1,
		},
		Density: DensityConfig{
			Source:    "cloud",
			Value:     0.6,
			Levels:    4,
			Size:      64,
			Frequency: 4,
			Octaves:   4,
		},
		Lights: []LightConfig{{
			Type:      "directional",
			Direction: [3]float32{-0.4, -1, -0.3},
			Color:     [3]float32{1, 1, 1},
			Intensity: 1,
		}},
		Output: OutputConfig{
			EXR:      "fog.exr",
			Exposure: 1,
		},
	}
}

// Load reads a scene file over the defaults. A missing file yields the defaults.
//
// Parameters:
//   - path: the JSON file to read
//
// Returns:
//   - Config: the loaded config
//   - error: a read, decode or validation error
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[Config] %s not found, using defaults", path)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	// Decoding into a populated slice merges into its elements, so the default
	// lights are only restored when the file has no lights key.
	defaultLights := cfg.Lights
	cfg.Lights = nil
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err == nil {
		if _, ok := keys["lights"]; !ok {
			cfg.Lights = defaultLights
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes c as indented JSON.
//
// Parameters:
//   - path: the destination file
//
// Returns:
//   - error: an encode or write error
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// Validate checks the values the kernel would otherwise reject later.
func (c Config) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidConfig)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fail("resolution %dx%d", c.Width, c.Height)
	}
	if c.Volume.Radius <= 0 {
		return fail("volume radius %v must be positive", c.Volume.Radius)
	}
	if c.Fog.StepSize <= 0 {
		return fail("step size %v must be positive", c.Fog.StepSize)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return fail("clip range [%v, %v]", c.Camera.Near, c.Camera.Far)
	}
	for i, l := range c.Lights {
		if _, ok := lightTypes[strings.ToLower(l.Type)]; !ok {
			return fail("light %d: unknown type %q", i, l.Type)
		}
	}
	return nil
}

// KernelOptions returns the CPU kernel options described by c.Renderer.
func (c Config) KernelOptions() []fog.KernelBuilderOption {
	rc := c.Renderer
	opts := []fog.KernelBuilderOption{fog.WithWorkers(rc.Workers)}
	if rc.Tile[0] > 0 && rc.Tile[1] > 0 {
		opts = append(opts, fog.WithTileSize(rc.Tile[0], rc.Tile[1]))
	}
	if rc.QueueSize > 0 {
		opts = append(opts, fog.WithQueueSize(rc.QueueSize))
	}
	if rc.IdleTimeoutMs > 0 {
		opts = append(opts, fog.WithIdleTimeout(time.Duration(rc.IdleTimeoutMs)*time.Millisecond))
	}
	return opts
}

// PreviewOptions returns the preview server options described by c.Preview.
func (c Config) PreviewOptions() []preview.ServerBuilderOption {
	pc := c.Preview
	var opts []preview.ServerBuilderOption
	if pc.CommandBuffer > 0 {
		opts = append(opts, preview.WithCommandBuffer(pc.CommandBuffer))
	}
	if pc.WriteTimeoutMs > 0 {
		opts = append(opts, preview.WithWriteTimeout(time.Duration(pc.WriteTimeoutMs)*time.Millisecond))
	}
	if len(pc.AllowOrigins) > 0 {
		opts = append(opts, preview.WithCheckOrigin(originCheck(pc.AllowOrigins)))
	}
	return opts
}

// originCheck accepts requests without an Origin header, same-host requests and
// requests whose origin host is listed.
func originCheck(allowed []string) func(r *http.Request) bool {
	allowAll := slices.Contains(allowed, "*")
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host) || slices.ContainsFunc(allowed, func(h string) bool {
			return strings.EqualFold(h, u.Host)
		})
	}
}

var lightTypes = map[string]light.LightType{
	"directional": light.LightTypeDirectional,
	"point":       light.LightTypePoint,
	"spot":        light.LightTypeSpot,
}

// NewCamera builds the orbit camera described by c.
func (c Config) NewCamera() camera.Camera {
	cc := c.Camera
	up := mgl32.Vec3(cc.Up)
	if up.Len() == 0 {
		up = mgl32.Vec3{0, 1, 0}
	}
	return camera.NewCamera(
		camera.WithFov(cc.Fov),
		camera.WithUp(up.Normalize()),
		camera.WithAspect(float32(c.Width)/float32(c.Height)),
		camera.WithClip(cc.Near, cc.Far),
		camera.WithController(camera.NewOrbitController(
			camera.WithTarget(mgl32.Vec3(cc.Target)),
			camera.WithRadius(cc.Radius),
			camera.WithAzimuth(mgl32.DegToRad(cc.Azimuth)),
			camera.WithElevation(mgl32.DegToRad(cc.Elevation)),
			camera.WithRadiusBounds(c.Volume.Radius*0.5, max(cc.Far*0.5, cc.Radius)),
			camera.WithZoomSpeed(cmp.Or(cc.ZoomSpeed, 1)),
		)),
	)
}

// NewLights builds the lights described by c.
//
// Returns:
//   - []light.Light: the lights in file order
//   - error: an unknown light type
func (c Config) NewLights() ([]light.Light, error) {
	lights := make([]light.Light, 0, len(c.Lights))
	for i, lc := range c.Lights {
		t, ok := lightTypes[strings.ToLower(lc.Type)]
		if !ok {
			return nil, fmt.Errorf("light %d: unknown type %q: %w", i, lc.Type, ErrInvalidConfig)
		}
		opts := []light.LightBuilderOption{
			light.WithPosition(lc.Position[0], lc.Position[1], lc.Position[2]),
			light.WithEnabled(!lc.Disabled),
		}
		if lc.Direction != ([3]float32{}) {
			opts = append(opts, light.WithDirection(lc.Direction[0], lc.Direction[1], lc.Direction[2]))
		}
		if lc.Color != ([3]float32{}) {
			opts = append(opts, light.WithColor(lc.Color[0], lc.Color[1], lc.Color[2]))
		}
		if lc.Intensity > 0 {
			opts = append(opts, light.WithIntensity(lc.Intensity))
		}
		if lc.Attenuation != ([3]float32{}) {
			opts = append(opts, light.WithAttenuation(lc.Attenuation[0], lc.Attenuation[1], lc.Attenuation[2]))
		}
		if lc.OuterDeg > 0 {
			opts = append(opts, light.WithSpotCone(lc.InnerDeg, lc.OuterDeg))
		}
		lights = append(lights, light.NewLight(t, opts...))
	}
	return lights, nil
}

// NewField builds the density source described by c.
//
// Returns:
//   - density.Field: the field
//   - error: an unknown source or a generator/load failure
func (c Config) NewField() (density.Field, error) {
	d := c.Density
	switch strings.ToLower(d.Source) {
	case "uniform":
		return density.Uniform(d.Value, d.Levels), nil
	case "sphere":
		return density.SoftSphere(d.Value, d.Levels), nil
	case "cutoff":
		return density.HardCutoff(d.Value, d.Cutoff), nil
	case "cloud":
		g, err := density.Cloud(d.Size, d.Frequency, d.Octaves, d.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to generate cloud: %w", err)
		}
		return g, nil
	case "file":
		g, err := density.Load(d.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to load density volume: %w", err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown density source %q: %w", d.Source, ErrInvalidConfig)
	}
}

// Settings converts the fog block into scene settings.
func (c Config) Settings() scene.Settings {
	f := c.Fog
	return scene.Settings{
		DensityScale:         f.DensityScale,
		StepSize:             f.StepSize,
		MaxDistance:          f.MaxDistance,
		NoiseInfluence:       f.NoiseInfluence,
		NoiseScale:           f.NoiseScale,
		FogColor:             mgl32.Vec3(f.FogColor),
		LightAbsorb:          mgl32.Vec3(f.LightAbsorb),
		InitialTransmittance: f.InitialTransmittance,
		FixedLOD:             f.LOD,
	}
}

// SceneOptions returns the scene options for the volume, fog settings, field
// and lights described by c.
//
// Returns:
//   - []scene.SceneBuilderOption: the options
//   - error: a field or light construction error
func (c Config) SceneOptions() ([]scene.SceneBuilderOption, error) {
	field, err := c.NewField()
	if err != nil {
		return nil, err
	}
	lights, err := c.NewLights()
	if err != nil {
		return nil, err
	}

	orientation := mgl32.QuatIdent()
	if axis := mgl32.Vec3(c.Volume.Axis); c.Volume.AngleDeg != 0 && axis.Len() > 0 {
		orientation = mgl32.QuatRotate(mgl32.DegToRad(c.Volume.AngleDeg), axis.Normalize())
	}

	return []scene.SceneBuilderOption{
		scene.WithField(field),
		scene.WithVolume(mgl32.Vec3(c.Volume.Center), c.Volume.Radius),
		scene.WithOrientation(orientation),
		scene.WithSettings(c.Settings()),
		scene.WithLights(lights...),
	}, nil
}
