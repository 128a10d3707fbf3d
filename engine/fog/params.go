package fog

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-fog/common"
	"github.com/Carmen-Shannon/oxy-fog/engine/light"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrInvalidParams is returned when a dispatch is rejected by a precondition check.
var ErrInvalidParams = errors.New("invalid fog params")

// Params is the immutable configuration of a single kernel dispatch. It is built
// by the caller once per frame and shared read-only by every pixel task.
type Params struct {
	// Width and Height are the output resolution in pixels.
	Width, Height int

	// Projection maps camera space to clip space (OpenGL convention, depth in [-1, 1]).
	Projection mgl32.Mat4
	// InverseProjection maps clip space back to camera space.
	InverseProjection mgl32.Mat4
	// View maps world space to camera space.
	View mgl32.Mat4
	// InverseView maps camera space to world space.
	InverseView mgl32.Mat4

	// Center is the fog sphere center in camera space.
	Center mgl32.Vec3
	// Radius is the fog sphere radius.
	Radius float32
	// Rotation maps world space into the volume's local frame.
	Rotation mgl32.Mat3

	// DensityScale multiplies every density sample.
	DensityScale float32
	// StepSize is the distance between primary and light march samples.
	StepSize float32
	// MaxDistance caps the primary march distance.
	MaxDistance float32

	// LODFloor and LODCeil are the two density levels read per sample, blended by LODBlend.
	LODFloor, LODCeil int
	LODBlend          float32

	// NoiseInfluence is how far procedural noise may thin the density, in [0, 1].
	NoiseInfluence float32
	// NoiseScale is the noise lattice frequency per unit of local space.
	NoiseScale float32

	// FogColor tints the accumulated scattering.
	FogColor mgl32.Vec3
	// LightAbsorb is the per-channel absorption coefficient.
	LightAbsorb mgl32.Vec3
	// InitialTransmittance seeds every channel of the transmittance accumulator.
	InitialTransmittance float32

	// Lights are the world-space light arrays. They are moved into camera space
	// once per dispatch.
	Lights light.Set

	// DisableEarlyTermination marches every ray to its upper bound. Used to build
	// reference images.
	DisableEarlyTermination bool
}

// DefaultParams returns params with the stock fog settings for the given
// resolution: radius 10, density scale 1, step 0.1, max distance 100, white fog
// and an absorption of 0.15 per channel. Camera matrices are identity and must be
// filled in by the caller.
//
// Parameters:
//   - width, height: the output resolution
//
// Returns:
//   - Params: the default params
func DefaultParams(width, height int) Params {
	return Params{
		Width:                width,
		Height:               height,
		Projection:           mgl32.Ident4(),
		InverseProjection:    mgl32.Ident4(),
		View:                 mgl32.Ident4(),
		InverseView:          mgl32.Ident4(),
		Center:               mgl32.Vec3{0, 0, -20},
		Radius:               10,
		Rotation:             mgl32.Ident3(),
		DensityScale:         1,
		StepSize:             0.1,
		MaxDistance:          100,
		NoiseScale:           1,
		FogColor:             mgl32.Vec3{1, 1, 1},
		LightAbsorb:          mgl32.Vec3{0.15, 0.15, 0.15},
		InitialTransmittance: 1,
	}
}

// Validate checks every precondition the kernel relies on. The kernel itself
// never re-checks them.
//
// Parameters:
//   - levels: the number of levels of detail the density field exposes
//
// Returns:
//   - error: a wrapped ErrInvalidParams describing the first failure, or nil
func (p *Params) Validate(levels int) error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidParams)
	}

	if p.Width <= 0 || p.Height <= 0 {
		return fail("resolution %dx%d", p.Width, p.Height)
	}
	matrices := []struct {
		name string
		m    mgl32.Mat4
	}{
		{"projection", p.Projection},
		{"inverse projection", p.InverseProjection},
		{"view", p.View},
		{"inverse view", p.InverseView},
	}
	for _, mat := range matrices {
		if !common.IsFiniteMat4(mat.m) {
			return fail("%s matrix is not finite", mat.name)
		}
	}
	if !common.IsFiniteMat3(p.Rotation) {
		return fail("volume rotation is not finite")
	}
	if !common.IsFiniteVec3(p.Center) {
		return fail("volume center %v is not finite", p.Center)
	}
	if !common.IsFinite(p.Radius) || p.Radius <= 0 {
		return fail("radius %v must be positive", p.Radius)
	}
	if !common.IsFinite(p.StepSize) || p.StepSize <= 0 {
		return fail("step size %v must be positive", p.StepSize)
	}
	if !common.IsFinite(p.MaxDistance) || p.MaxDistance <= 0 {
		return fail("max distance %v must be positive", p.MaxDistance)
	}
	if far := math32.Abs(p.Center.Z()) + p.Radius; math32.Nextafter(far, math32.Inf(1))-far > p.StepSize {
		return fail("step size %v is below the float32 spacing at distance %v", p.StepSize, far)
	}
	if !common.IsFinite(p.DensityScale) || p.DensityScale < 0 {
		return fail("density scale %v must be non-negative", p.DensityScale)
	}
	if p.LODFloor < 0 || p.LODCeil < p.LODFloor || p.LODCeil >= levels {
		return fail("lod range [%d, %d] outside field levels [0, %d)", p.LODFloor, p.LODCeil, levels)
	}
	if !(p.LODBlend >= 0 && p.LODBlend <= 1) {
		return fail("lod blend %v outside [0, 1]", p.LODBlend)
	}
	if !(p.NoiseInfluence >= 0 && p.NoiseInfluence <= 1) {
		return fail("noise influence %v outside [0, 1]", p.NoiseInfluence)
	}
	if !common.IsFinite(p.NoiseScale) || p.NoiseScale < 0 {
		return fail("noise scale %v must be non-negative", p.NoiseScale)
	}
	if !common.IsFiniteVec3(p.FogColor) {
		return fail("fog color %v is not finite", p.FogColor)
	}
	if !common.IsFiniteVec3(p.LightAbsorb) || p.LightAbsorb.X() < 0 || p.LightAbsorb.Y() < 0 || p.LightAbsorb.Z() < 0 {
		return fail("light absorption %v must be finite and non-negative", p.LightAbsorb)
	}
	if !(p.InitialTransmittance > 0 && p.InitialTransmittance <= 1) {
		return fail("initial transmittance %v outside (0, 1]", p.InitialTransmittance)
	}
	if err := p.Lights.Validate(); err != nil {
		return fmt.Errorf("lights: %w: %w", err, ErrInvalidParams)
	}
	return nil
}
