package fog

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-fog/common"
	"github.com/Carmen-Shannon/oxy-fog/engine/density"
	"github.com/Carmen-Shannon/oxy-fog/engine/light"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// densityThreshold is the per-step density below which lighting is skipped.
	densityThreshold = 0.01

	// terminationThreshold is the transmittance magnitude at which a ray stops.
	terminationThreshold = 0.01

	// FarDepth is the depth written for rays that never enter the volume.
	FarDepth = 1.0
)

// MarchState is the lifecycle of one primary ray.
type MarchState int

const (
	// StateNotEntered means no sample has landed inside the sphere yet.
	StateNotEntered MarchState = iota
	// StateInVolume means at least one sample landed inside the sphere.
	StateInVolume
	// StateTerminated means transmittance fell to the termination threshold.
	StateTerminated
)

// Sample is the per-step record passed to a trace callback.
type Sample struct {
	Step          int
	Position      mgl32.Vec3
	Density       float32
	Luminance     mgl32.Vec3
	Scattering    mgl32.Vec3
	Transmittance mgl32.Vec3
	Lit           bool
}

// Result is the resolved output of one primary ray.
type Result struct {
	// Color is scattering·fogColor with opacity in alpha.
	Color mgl32.Vec4
	// Depth is the nearest normalized device depth inside the volume, in [0, 1].
	Depth float32

	Scattering    mgl32.Vec3
	Transmittance mgl32.Vec3
	OpticalDepth  float32
	State         MarchState
	Samples       int
}

// Frame is the read-only state shared by every pixel of one dispatch: validated
// params, the bound density sampler and the camera-space lights.
type Frame struct {
	params  Params
	sampler Sampler
	lights  light.Set

	radiusSq    float32
	minDistance float32
	maxDistance float32
	lightSteps  int
}

// NewFrame validates p against the field and precomputes the per-dispatch state.
//
// Parameters:
//   - p: the dispatch params
//   - field: the density field
//
// Returns:
//   - *Frame: the prepared frame
//   - error: a wrapped ErrInvalidParams when a precondition fails
func NewFrame(p Params, field density.Field) (*Frame, error) {
	if field == nil {
		return nil, fmt.Errorf("nil density field: %w", ErrInvalidParams)
	}
	if err := p.Validate(field.Levels()); err != nil {
		return nil, err
	}

	// The entry bound assumes the camera looks down -z toward the sphere.
	dz := math32.Abs(p.Center.Z())
	f := &Frame{
		params:      p,
		lights:      p.Lights.ToView(p.View),
		radiusSq:    p.Radius * p.Radius,
		minDistance: dz - p.Radius,
		maxDistance: min(p.MaxDistance, dz+p.Radius),
		lightSteps:  int(math32.Ceil(2 * p.Radius / p.StepSize)),
	}
	f.sampler = NewSampler(&f.params, field)
	return f, nil
}

// Params returns the validated params the frame was built from.
func (f *Frame) Params() Params {
	return f.params
}

// Sampler returns the frame's density sampler.
func (f *Frame) Sampler() *Sampler {
	return &f.sampler
}

// Lights returns the camera-space light set.
func (f *Frame) Lights() light.Set {
	return f.lights
}

// RayDirection unprojects pixel (x, y) at the far plane and returns the
// normalized camera-space view direction. Pixel rows grow upward.
func (f *Frame) RayDirection(x, y int) mgl32.Vec3 {
	ndc := mgl32.Vec4{
		float32(x)/float32(f.params.Width)*2 - 1,
		float32(y)/float32(f.params.Height)*2 - 1,
		1,
		1,
	}
	view := f.params.InverseProjection.Mul4x1(ndc)
	return view.Vec3().Mul(1 / view.W()).Normalize()
}

// March runs the primary ray for pixel (x, y).
func (f *Frame) March(x, y int) Result {
	return f.MarchRay(f.RayDirection(x, y), nil)
}

// inSphere reports whether a camera-space point lies inside the fog sphere.
func (f *Frame) inSphere(p mgl32.Vec3) bool {
	d := p.Sub(f.params.Center)
	return d.Dot(d) <= f.radiusSq
}

// MarchRay marches a unit camera-space direction through the volume and resolves
// the result. When trace is non-nil it receives every in-volume sample.
//
// Parameters:
//   - dir: the normalized view direction
//   - trace: optional per-sample callback
//
// Returns:
//   - Result: the resolved ray
func (f *Frame) MarchRay(dir mgl32.Vec3, trace func(Sample)) Result {
	p := &f.params
	scattering := mgl32.Vec3{}
	t0 := p.InitialTransmittance
	transmittance := mgl32.Vec3{t0, t0, t0}
	var opticalDepth float32
	depth := float32(FarDepth)
	state := StateNotEntered
	samples := 0

	for i := 0; ; i++ {
		// Indexed so the distance keeps advancing where StepSize is small next to |center.z|.
		distance := f.minDistance + float32(i)*p.StepSize
		if distance >= f.maxDistance {
			break
		}
		pos := dir.Mul(distance)
		if !f.inSphere(pos) {
			continue
		}
		if state == StateNotEntered {
			state = StateInVolume
		}
		samples++

		clip := p.Projection.Mul4x1(pos.Vec4(1))
		depth = min(depth, clip.Z()/clip.W()*0.5+0.5)

		d := f.sampler.Density(pos) * p.DensityScale
		opticalDepth += d

		if d < densityThreshold {
			if trace != nil {
				trace(Sample{Step: samples - 1, Position: pos, Density: d, Scattering: scattering, Transmittance: transmittance})
			}
			continue
		}

		luminance := f.inScatter(pos, dir)
		stepT := common.ExpVec3(p.LightAbsorb.Mul(-d * p.StepSize))
		stepScatter := mgl32.Vec3{
			luminance[0] * (1 - stepT[0]),
			luminance[1] * (1 - stepT[1]),
			luminance[2] * (1 - stepT[2]),
		}

		scattering = scattering.Add(common.MulVec3(transmittance, stepScatter))
		transmittance = common.MulVec3(transmittance, stepT)

		if trace != nil {
			trace(Sample{Step: samples - 1, Position: pos, Density: d, Luminance: luminance, Scattering: scattering, Transmittance: transmittance, Lit: true})
		}

		if !p.DisableEarlyTermination && transmittance.Len() <= terminationThreshold {
			transmittance = mgl32.Vec3{}
			state = StateTerminated
			break
		}
	}

	transmittance = common.SaturateVec3(transmittance)
	return f.resolve(scattering, transmittance, opticalDepth, depth, state, samples)
}

// inScatter sums the energy every live light scatters toward the eye at pos.
// Lights are visited directional, then point, then spot.
func (f *Frame) inScatter(pos, dir mgl32.Vec3) mgl32.Vec3 {
	var luminance mgl32.Vec3

	for i := 0; i < f.lights.DirectionalCount; i++ {
		l := &f.lights.Directional[i]
		mu := dir.Dot(l.Direction)
		luminance = luminance.Add(common.MulVec3(l.Diffuse, f.LightEnergy(pos, l.Direction, mu)))
	}

	for i := 0; i < f.lights.PointCount; i++ {
		l := &f.lights.Point[i]
		toLight := l.Position.Sub(pos)
		atten := common.Saturate(l.AttenuationAt(toLight.Len()))
		if atten == 0 {
			continue
		}
		lightDir := toLight.Normalize()
		mu := dir.Dot(lightDir)
		luminance = luminance.Add(common.MulVec3(l.Diffuse, f.LightEnergy(pos, lightDir, mu)).Mul(atten))
	}

	for i := 0; i < f.lights.SpotCount; i++ {
		l := &f.lights.Spot[i]
		toLight := l.Position.Sub(pos)
		lightDir := toLight.Normalize()
		atten := common.Saturate(l.AttenuationAt(toLight.Len()) * l.SpotFactor(lightDir.Mul(-1).Dot(l.Direction)))
		if atten == 0 {
			continue
		}
		mu := dir.Dot(lightDir)
		luminance = luminance.Add(common.MulVec3(l.Diffuse, f.LightEnergy(pos, lightDir, mu)).Mul(atten))
	}
	return luminance
}

// resolve converts the accumulated ray state into the pixel output.
func (f *Frame) resolve(scattering, transmittance mgl32.Vec3, opticalDepth, depth float32, state MarchState, samples int) Result {
	rgb := common.MulVec3(scattering, f.params.FogColor)
	return Result{
		Color:         rgb.Vec4(Opacity(opticalDepth, scattering)),
		Depth:         depth,
		Scattering:    scattering,
		Transmittance: transmittance,
		OpticalDepth:  opticalDepth,
		State:         state,
		Samples:       samples,
	}
}
