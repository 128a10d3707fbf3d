package scene

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-fog/common"
	"github.com/Carmen-Shannon/oxy-fog/engine/camera"
	"github.com/Carmen-Shannon/oxy-fog/engine/density"
	"github.com/Carmen-Shannon/oxy-fog/engine/fog"
	"github.com/Carmen-Shannon/oxy-fog/engine/framebuffer"
	"github.com/Carmen-Shannon/oxy-fog/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrNoField is returned by Params and Render when the scene has no density field.
var ErrNoField = errors.New("scene has no density field")

// Dispatcher runs the fog kernel over a target. Both the CPU fog.Kernel and the
// GPU renderer.Renderer satisfy it.
type Dispatcher interface {
	Dispatch(ctx context.Context, params fog.Params, field density.Field, target *framebuffer.Target) (fog.Stats, error)
}

// Volume places the fog sphere in world space.
type Volume struct {
	// Center is the world-space sphere center.
	Center mgl32.Vec3
	// Radius is the sphere radius in world units.
	Radius float32
	// Orientation rotates the volume's local frame into world space.
	Orientation mgl32.Quat
}

// Settings are the fog appearance values the scene forwards to every dispatch.
// Zero values fall back to the fog.DefaultParams values.
type Settings struct {
	DensityScale         float32
	StepSize             float32
	MaxDistance          float32
	NoiseInfluence       float32
	NoiseScale           float32
	FogColor             mgl32.Vec3
	LightAbsorb          mgl32.Vec3
	InitialTransmittance float32

	// FixedLOD pins both blended levels to one index. Negative selects the
	// levels from the camera distance.
	FixedLOD int

	DisableEarlyTermination bool
}

// DefaultSettings returns settings with distance-based LOD selection and every
// other value left to the fog defaults.
func DefaultSettings() Settings {
	return Settings{FixedLOD: -1}
}

// RenderStats reports one Render call.
type RenderStats struct {
	fog.Stats

	// Culled is true when the sphere was outside the view frustum and no
	// dispatch ran.
	Culled bool
}

// scene is the implementation of the Scene interface.
type scene struct {
	mu *sync.Mutex

	name       string
	camera     camera.Camera
	dispatcher Dispatcher
	field      density.Field
	volume     Volume
	settings   Settings
	lights     []light.Light
}

// Scene ties a camera, a light list, a density field and a fog volume to a
// Dispatcher and turns them into per-frame kernel params.
// Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// Camera returns the scene's camera.
	Camera() camera.Camera

	// SetCamera replaces the scene's camera. Panics if cam is nil.
	//
	// Parameters:
	//   - cam: the new camera
	SetCamera(cam camera.Camera)

	// Dispatcher returns the kernel the scene renders with.
	Dispatcher() Dispatcher

	// SetDispatcher replaces the kernel. Panics if d is nil.
	//
	// Parameters:
	//   - d: the CPU kernel or GPU renderer
	SetDispatcher(d Dispatcher)

	// Field returns the density field, or nil if none is set.
	Field() density.Field

	// SetField replaces the density field.
	//
	// Parameters:
	//   - f: the density field
	SetField(f density.Field)

	// Volume returns the fog sphere placement.
	Volume() Volume

	// SetVolume replaces the fog sphere placement.
	//
	// Parameters:
	//   - v: the new placement
	SetVolume(v Volume)

	// Settings returns a copy of the fog settings.
	Settings() Settings

	// UpdateSettings applies fn to the settings under the scene lock.
	//
	// Parameters:
	//   - fn: the mutation to apply
	UpdateSettings(fn func(s *Settings))

	// AddLight adds a world-space light. The set is checked against the per-type
	// capacity when params are built.
	//
	// Parameters:
	//   - l: the light to add
	AddLight(l light.Light)

	// RemoveLight removes a light by reference.
	//
	// Parameters:
	//   - l: the light to remove
	RemoveLight(l light.Light)

	// Lights returns a copy of the scene's light list.
	Lights() []light.Light

	// Params builds the kernel params for one frame at the given resolution.
	// The camera aspect is set to width/height before the matrices are read.
	//
	// Parameters:
	//   - width, height: the output resolution
	//
	// Returns:
	//   - fog.Params: the frame params
	//   - error: ErrNoField, a light capacity error, or a wrapped fog.ErrInvalidParams
	Params(width, height int) (fog.Params, error)

	// Visible reports whether the fog sphere intersects the camera frustum.
	Visible() bool

	// Render builds params for target's resolution and dispatches them. When the
	// sphere is outside the frustum the target is cleared and nothing is dispatched.
	//
	// Parameters:
	//   - ctx: cancellation for the dispatch
	//   - target: the output planes
	//
	// Returns:
	//   - RenderStats: the dispatch counters
	//   - error: a params or dispatch error
	Render(ctx context.Context, target *framebuffer.Target) (RenderStats, error)
}

var _ Scene = &scene{}

// NewScene creates a Scene with the given name, camera and dispatcher.
// The volume defaults to a radius-10 sphere at the origin with no rotation.
// Panics if cam or d is nil.
//
// Parameters:
//   - name: the scene identifier
//   - cam: the camera to render from
//   - d: the kernel to render with
//   - options: functional options for the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, cam camera.Camera, d Dispatcher, options ...SceneBuilderOption) Scene {
	if cam == nil {
		panic("scene: camera must not be nil")
	}
	if d == nil {
		panic("scene: dispatcher must not be nil")
	}

	s := &scene{
		mu:         &sync.Mutex{},
		name:       name,
		camera:     cam,
		dispatcher: d,
		volume: Volume{
			Radius:      10,
			Orientation: mgl32.QuatIdent(),
		},
		settings: DefaultSettings(),
	}

	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) Camera() camera.Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera
}

func (s *scene) SetCamera(cam camera.Camera) {
	if cam == nil {
		panic("scene: camera must not be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera = cam
}

func (s *scene) Dispatcher() Dispatcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatcher
}

func (s *scene) SetDispatcher(d Dispatcher) {
	if d == nil {
		panic("scene: dispatcher must not be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatcher = d
}

func (s *scene) Field() density.Field {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.field
}

func (s *scene) SetField(f density.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.field = f
}

func (s *scene) Volume() Volume {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *scene) SetVolume(v Volume) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
}

func (s *scene) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *scene) UpdateSettings(fn func(*Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.settings)
}

func (s *scene) AddLight(l light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lights = append(s.lights, l)
}

func (s *scene) RemoveLight(l light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.Index(s.lights, l); i >= 0 {
		s.lights = slices.Delete(s.lights, i, i+1)
	}
}

func (s *scene) Lights() []light.Light {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lights)
}

func (s *scene) Params(width, height int) (fog.Params, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params(width, height)
}

// params builds the frame params. Caller must hold the mutex.
func (s *scene) params(width, height int) (fog.Params, error) {
	if s.field == nil {
		return fog.Params{}, ErrNoField
	}
	if height > 0 {
		s.camera.SetAspect(float32(width) / float32(height))
	}
	s.camera.Update()

	set, err := light.NewSet(s.lights...)
	if err != nil {
		return fog.Params{}, fmt.Errorf("failed to build light set: %w", err)
	}

	p := fog.DefaultParams(width, height)
	p.Projection = s.camera.Projection()
	p.InverseProjection = s.camera.InverseProjection()
	p.View = s.camera.View()
	p.InverseView = s.camera.InverseView()
	p.Lights = set

	p.Center = p.View.Mul4x1(s.volume.Center.Vec4(1)).Vec3()
	p.Radius = common.Coalesce(s.volume.Radius, p.Radius)
	p.Rotation = s.volume.Orientation.Conjugate().Mat4().Mat3()

	st := s.settings
	p.DensityScale = common.Coalesce(st.DensityScale, p.DensityScale)
	p.StepSize = common.Coalesce(st.StepSize, p.StepSize)
	p.MaxDistance = common.Coalesce(st.MaxDistance, p.MaxDistance)
	p.NoiseScale = common.Coalesce(st.NoiseScale, p.NoiseScale)
	p.FogColor = common.Coalesce(st.FogColor, p.FogColor)
	p.LightAbsorb = common.Coalesce(st.LightAbsorb, p.LightAbsorb)
	p.InitialTransmittance = common.Coalesce(st.InitialTransmittance, p.InitialTransmittance)
	p.NoiseInfluence = st.NoiseInfluence
	p.DisableEarlyTermination = st.DisableEarlyTermination

	if st.FixedLOD >= 0 {
		p.LODFloor, p.LODCeil, p.LODBlend = st.FixedLOD, st.FixedLOD, 0
	} else {
		dist := s.camera.Position().Sub(s.volume.Center).Len()
		p.LODFloor, p.LODCeil, p.LODBlend = fog.SelectLOD(dist, p.Radius, s.field.Levels())
	}

	if err := p.Validate(s.field.Levels()); err != nil {
		return fog.Params{}, err
	}
	return p, nil
}

func (s *scene) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera.Update()
	return s.camera.Frustum().SphereVisible(s.volume.Center, s.volume.Radius)
}

func (s *scene) Render(ctx context.Context, target *framebuffer.Target) (RenderStats, error) {
	if target == nil {
		return RenderStats{}, fmt.Errorf("nil target: %w", fog.ErrInvalidParams)
	}

	s.mu.Lock()
	p, err := s.params(target.Width, target.Height)
	if err != nil {
		s.mu.Unlock()
		return RenderStats{}, err
	}
	visible := s.camera.Frustum().SphereVisible(s.volume.Center, p.Radius)
	d, field := s.dispatcher, s.field
	s.mu.Unlock()

	if !visible {
		target.Clear()
		return RenderStats{Stats: fog.Stats{Pixels: int64(target.Width * target.Height)}, Culled: true}, nil
	}

	stats, err := d.Dispatch(ctx, p, field, target)
	if err != nil {
		return RenderStats{}, fmt.Errorf("failed to render scene %q: %w", s.name, err)
	}
	return RenderStats{Stats: stats}, nil
}
